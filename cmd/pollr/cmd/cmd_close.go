package cmd

import (
	"fmt"

	"github.com/tokenized/pollr/pkg/pollr"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	FlagOffline = "offline"
)

var cmdClose = &cobra.Command{
	Use:   "close <poll txid> | --offline <open payload hex> [vote payload hex...]",
	Short: "Builds the locking script that closes a poll",
	Long: "Builds the locking script that closes a poll. The tally and the outputs to spend come " +
		"from the node, or with --offline the tally is counted from the given payloads.",
	RunE: func(c *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("Missing poll")
		}

		key, err := privateKey(c)
		if err != nil {
			return err
		}

		offline, _ := c.Flags().GetBool(FlagOffline)
		if offline {
			closeToken, err := closeOffline(args)
			if err != nil {
				return err
			}
			return printToken(key, closeToken)
		}

		closure, err := newClient(c).Close(commandContext(), args[0])
		if err != nil {
			return errors.Wrap(err, "close")
		}

		if closure.Token.CreatorKey != publicKeyHex(key) {
			fmt.Printf("Warning : key is not the poll creator\n")
		}

		if err := printToken(key, closure.Token); err != nil {
			return err
		}

		fmt.Printf("Spend :\n")
		for _, outpoint := range closure.Spends {
			fmt.Printf("  %s\n", outpoint)
		}
		return nil
	},
}

// closeOffline tallies vote payloads against an open payload.
func closeOffline(args []string) (*pollr.CloseToken, error) {
	open, err := parseTokenHex(args[0])
	if err != nil {
		return nil, errors.Wrap(err, "open payload")
	}
	openToken, ok := open.(*pollr.OpenToken)
	if !ok {
		return nil, fmt.Errorf("First payload is a %s token", open.Type())
	}

	var votes []*pollr.VoteToken
	for i, arg := range args[1:] {
		token, err := parseTokenHex(arg)
		if err != nil {
			return nil, errors.Wrapf(err, "vote payload %d", i)
		}
		vote, ok := token.(*pollr.VoteToken)
		if !ok {
			return nil, fmt.Errorf("Vote payload %d is a %s token", i, token.Type())
		}
		votes = append(votes, vote)
	}

	closeToken, tally := pollr.ClosePoll(openToken, votes)
	for _, vote := range tally.Discarded {
		fmt.Printf("Discarded vote by %s for unknown option %q\n", vote.VoterKey,
			vote.ChosenOption)
	}

	return closeToken, nil
}

func parseTokenHex(arg string) (pollr.Token, error) {
	b, err := hexArg(arg)
	if err != nil {
		return nil, errors.Wrap(err, "decode hex")
	}

	return pollr.Deserialize(b)
}

func init() {
	cmdClose.Flags().String(FlagKey, "", "creator key, WIF or hex")
	cmdClose.Flags().Bool(FlagOffline, false, "tally the given payloads instead of asking the node")
}
