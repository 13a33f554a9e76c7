package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var cmdKeygen = &cobra.Command{
	Use:   "keygen",
	Short: "Generates a key for creating polls and voting",
	RunE: func(c *cobra.Command, args []string) error {
		if len(args) != 0 {
			return errors.New("Incorrect argument count")
		}

		key, err := btcec.NewPrivateKey(btcec.S256())
		if err != nil {
			return errors.Wrap(err, "generate key")
		}

		wif, err := btcutil.NewWIF(key, &chaincfg.MainNetParams, true)
		if err != nil {
			return errors.Wrap(err, "encode wif")
		}

		address, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(key.PubKey().SerializeCompressed()),
			&chaincfg.MainNetParams)
		if err != nil {
			return errors.Wrap(err, "create address")
		}

		fmt.Printf("WIF : %s\n", wif.String())
		fmt.Printf("Key : %s\n", hex.EncodeToString(key.Serialize()))
		fmt.Printf("PubKey : %s\n", publicKeyHex(key))
		fmt.Printf("Addr : %s\n", address.EncodeAddress())
		return nil
	},
}
