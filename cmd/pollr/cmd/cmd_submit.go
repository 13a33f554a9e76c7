package cmd

import (
	"github.com/tokenized/pollr/pkg/pollr"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var cmdSubmit = &cobra.Command{
	Use:   "submit <raw tx hex> [topic...]",
	Short: "Submits a transaction to the node",
	RunE: func(c *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("Missing transaction")
		}

		rawTx, err := hexArg(args[0])
		if err != nil {
			return errors.Wrap(err, "decode tx hex")
		}

		topics := args[1:]
		if len(topics) == 0 {
			topics = []string{pollr.TopicName}
		}

		steak, err := newClient(c).Submit(commandContext(), rawTx, topics)
		if err != nil {
			return errors.Wrap(err, "submit")
		}

		return dumpJSON(steak)
	},
}
