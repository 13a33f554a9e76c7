package main

import "github.com/tokenized/pollr/cmd/pollr/cmd"

// Pollr CLI
func main() {
	cmd.Execute()
}
