package cmd

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tokenized/pollr/pkg/client"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	FlagNode = "node"
	FlagKey  = "key"
)

var pollrCmd = &cobra.Command{
	Use:   "pollr",
	Short: "Pollr CLI",
}

func Execute() {
	pollrCmd.PersistentFlags().String(FlagNode, nodeURL(), "pollrd node URL")

	pollrCmd.AddCommand(cmdKeygen)
	pollrCmd.AddCommand(cmdOpen)
	pollrCmd.AddCommand(cmdVote)
	pollrCmd.AddCommand(cmdClose)
	pollrCmd.AddCommand(cmdParse)
	pollrCmd.AddCommand(cmdSubmit)
	pollrCmd.AddCommand(cmdLookup)
	pollrCmd.AddCommand(cmdTally)

	if err := pollrCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func nodeURL() string {
	if url := os.Getenv("POLLR_NODE_URL"); len(url) > 0 {
		return url
	}
	return "http://localhost:8080"
}

func newClient(c *cobra.Command) *client.HTTPClient {
	url, _ := c.Flags().GetString(FlagNode)
	return client.NewHTTPClient(strings.TrimRight(url, "/"))
}

// privateKey returns the key given by the key flag, or by POLLR_KEY, as WIF or hex.
func privateKey(c *cobra.Command) (*btcec.PrivateKey, error) {
	keyText, _ := c.Flags().GetString(FlagKey)
	if len(keyText) == 0 {
		keyText = os.Getenv("POLLR_KEY")
	}
	keyText = strings.TrimSpace(keyText)
	if len(keyText) == 0 {
		return nil, errors.New("Missing key (--key or POLLR_KEY)")
	}

	if wif, err := btcutil.DecodeWIF(keyText); err == nil {
		return wif.PrivKey, nil
	}

	b, err := hex.DecodeString(keyText)
	if err != nil {
		return nil, errors.Wrap(err, "decode key")
	}
	if len(b) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("Key is %d bytes, should be %d", len(b), btcec.PrivKeyBytesLen)
	}

	key, _ := btcec.PrivKeyFromBytes(btcec.S256(), b)
	return key, nil
}

// publicKeyHex is the identity written into tokens for the key.
func publicKeyHex(key *btcec.PrivateKey) string {
	return hex.EncodeToString(key.PubKey().SerializeCompressed())
}

func dumpJSON(o interface{}) error {
	js, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal json")
	}

	fmt.Printf("%s\n", js)
	return nil
}

func hexArg(arg string) ([]byte, error) {
	return hex.DecodeString(strings.Trim(arg, "\n "))
}

func commandContext() context.Context {
	return context.Background()
}
