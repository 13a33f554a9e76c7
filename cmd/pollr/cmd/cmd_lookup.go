package cmd

import (
	"github.com/tokenized/pollr/pkg/pollr"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	FlagTxid   = "txid"
	FlagVoter  = "voter"
	FlagStatus = "status"
)

var cmdLookup = &cobra.Command{
	Use:     "lookup <vote|poll|allvotesfor|allpolls>",
	Short:   "Asks the node's lookup service a question",
	Example: "pollr lookup allpolls --status closed",
	RunE: func(c *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("Missing query type")
		}

		txid, _ := c.Flags().GetString(FlagTxid)
		voter, _ := c.Flags().GetString(FlagVoter)
		status, _ := c.Flags().GetString(FlagStatus)

		question := &pollr.Question{
			Service: pollr.ServiceName,
			Query: &pollr.Query{
				Type:    pollr.QueryType(args[0]),
				Txid:    txid,
				VoterID: voter,
				Status:  pollr.PollStatus(status),
			},
		}

		result, err := newClient(c).Lookup(commandContext(), question)
		if err != nil {
			return errors.Wrap(err, "lookup")
		}

		return dumpJSON(result)
	},
}

var cmdTally = &cobra.Command{
	Use:   "tally <poll txid>",
	Short: "Shows the vote count of a poll",
	RunE: func(c *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("Missing poll txid")
		}

		tally, err := newClient(c).Tally(commandContext(), args[0])
		if err != nil {
			return errors.Wrap(err, "tally")
		}

		return dumpJSON(tally)
	},
}

func init() {
	cmdLookup.Flags().String(FlagTxid, "", "poll txid")
	cmdLookup.Flags().String(FlagVoter, "", "voter key")
	cmdLookup.Flags().String(FlagStatus, "", "poll status, open or closed")
}
