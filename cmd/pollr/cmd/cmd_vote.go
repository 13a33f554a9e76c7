package cmd

import (
	"github.com/tokenized/pollr/pkg/pollr"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var cmdVote = &cobra.Command{
	Use:   "vote <poll txid> <option>",
	Short: "Builds the locking script of a vote",
	RunE: func(c *cobra.Command, args []string) error {
		if len(args) != 2 {
			return errors.New("Incorrect argument count")
		}

		key, err := privateKey(c)
		if err != nil {
			return err
		}

		return printToken(key, &pollr.VoteToken{
			VoterKey:     publicKeyHex(key),
			PollTxid:     args[0],
			ChosenOption: args[1],
		})
	},
}

func init() {
	cmdVote.Flags().String(FlagKey, "", "voter key, WIF or hex")
}
