package cmd

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/tokenized/pollr/pkg/pollr"
	"github.com/tokenized/pollr/pkg/pushdrop"

	"github.com/btcsuite/btcd/btcec"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	FlagDescription = "description"
	FlagMedia       = "media"
)

var cmdOpen = &cobra.Command{
	Use:     "open <name> <option> [option...]",
	Short:   "Builds the locking script of a new poll",
	Example: "pollr open \"Lunch\" Pizza Tacos --key <key hex> --description \"Friday lunch\"",
	RunE: func(c *cobra.Command, args []string) error {
		if len(args) < 2 {
			return errors.New("Missing name or options")
		}

		key, err := privateKey(c)
		if err != nil {
			return err
		}

		description, _ := c.Flags().GetString(FlagDescription)
		media, _ := c.Flags().GetBool(FlagMedia)

		token := &pollr.OpenToken{
			CreatorKey:  publicKeyHex(key),
			Name:        args[0],
			Description: description,
			OptionsType: pollr.OptionsText,
			CreatedAt:   uint64(time.Now().Unix()),
			Options:     args[1:],
		}
		if media {
			token.OptionsType = pollr.OptionsMedia
		}

		return printToken(key, token)
	},
}

// printToken prints the token, its payload and the PushDrop locking script for it.
func printToken(key *btcec.PrivateKey, token pollr.Token) error {
	payload := pollr.Serialize(token)

	if err := dumpJSON(token); err != nil {
		return err
	}
	fmt.Printf("Payload : %s\n", hex.EncodeToString(payload))
	fmt.Printf("Script : %s\n", hex.EncodeToString(pushdrop.Lock(key.PubKey(), [][]byte{payload})))
	return nil
}

func init() {
	cmdOpen.Flags().String(FlagKey, "", "creator key, WIF or hex")
	cmdOpen.Flags().String(FlagDescription, "", "poll description")
	cmdOpen.Flags().Bool(FlagMedia, false, "options reference media")
}
