package cmd

import (
	"bytes"
	"fmt"

	"github.com/tokenized/pollr/pkg/pollr"
	"github.com/tokenized/pollr/pkg/pushdrop"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tokenized/pkg/wire"
)

var cmdParse = &cobra.Command{
	Use:   "parse <hex>",
	Short: "Parse a hexadecimal representation of a TX, locking script or token payload, and output the result.",
	RunE: func(c *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("Missing hex input")
		}

		data, err := hexArg(args[0])
		if err != nil {
			return errors.Wrap(err, "decode hex")
		}

		if parseTx(data) == nil {
			return nil
		}

		if parseScript(data) == nil {
			return nil
		}

		token, err := pollr.Deserialize(data)
		if err != nil {
			return errors.Wrap(err, "not a tx, PushDrop script or token payload")
		}

		fmt.Printf("type : %s\n\n", token.Type())
		return dumpJSON(token)
	},
}

func parseTx(rawTx []byte) error {
	tx := wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		return errors.Wrap(err, "decode tx")
	}

	fmt.Printf("txid : %s\n\n", tx.TxHash())

	for index, txOut := range tx.TxOut {
		fmt.Printf("output %d : ", index)
		if err := parseScript(txOut.PkScript); err != nil {
			fmt.Printf("%s\n", err)
		}
	}

	return nil
}

func parseScript(script []byte) error {
	pd, err := pushdrop.Decode(script)
	if err != nil {
		return err
	}

	token, err := pollr.Deserialize(pd.Fields[0])
	if err != nil {
		return errors.Wrap(err, "decode token")
	}

	fmt.Printf("type : %s (locked to %x)\n\n", token.Type(), pd.LockingKey.SerializeCompressed())
	return dumpJSON(token)
}
