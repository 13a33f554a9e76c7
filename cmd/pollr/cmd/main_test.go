package cmd

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil"
	"github.com/spf13/cobra"
)

func TestPrivateKey(t *testing.T) {
	key, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		t.Fatalf("Failed to generate key : %s", err)
	}

	wif, err := btcutil.NewWIF(key, &chaincfg.MainNetParams, true)
	if err != nil {
		t.Fatalf("Failed to encode wif : %s", err)
	}

	for _, text := range []string{wif.String(), hex.EncodeToString(key.Serialize())} {
		c := &cobra.Command{}
		c.Flags().String(FlagKey, "", "")
		if err := c.Flags().Set(FlagKey, text); err != nil {
			t.Fatalf("Failed to set flag : %s", err)
		}

		got, err := privateKey(c)
		if err != nil {
			t.Fatalf("Failed to parse key %s : %s", text, err)
		}
		if !bytes.Equal(got.Serialize(), key.Serialize()) {
			t.Fatalf("Wrong key from %s", text)
		}
	}

	c := &cobra.Command{}
	c.Flags().String(FlagKey, "", "")
	c.Flags().Set(FlagKey, "abcd")
	if _, err := privateKey(c); err == nil {
		t.Fatalf("Parsed short key")
	}
}
