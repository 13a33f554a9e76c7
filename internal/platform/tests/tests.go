// Package tests holds helpers shared by package tests: logging contexts, in memory databases, keys
// and transactions carrying Pollr tokens.
package tests

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"testing"
	"time"

	"github.com/tokenized/pollr/internal/platform/db"
	"github.com/tokenized/pollr/pkg/pollr"
	"github.com/tokenized/pollr/pkg/pushdrop"
	"github.com/tokenized/pollr/pkg/storage"

	"github.com/btcsuite/btcd/btcec"
	"github.com/tokenized/pkg/bitcoin"
	"github.com/tokenized/pkg/logger"
	"github.com/tokenized/pkg/wire"
)

// Context returns a context that logs everything to stdout.
func Context() context.Context {
	logConfig := logger.NewDevelopmentConfig()
	logConfig.Main.SetWriter(os.Stdout)
	logConfig.Main.Format |= logger.IncludeSystem | logger.IncludeMicro
	logConfig.Main.MinLevel = logger.LevelDebug

	return logger.ContextWithLogConfig(context.Background(), logConfig)
}

// NewMasterDB returns a DB over new in memory storage.
func NewMasterDB() *db.DB {
	return db.NewWithStorage(storage.NewMockStorage())
}

// GenerateKey returns a new random key.
func GenerateKey(t testing.TB) *btcec.PrivateKey {
	key, err := btcec.NewPrivateKey(btcec.S256())
	if err != nil {
		t.Fatalf("Failed to generate key : %s", err)
	}
	return key
}

// KeyHex returns the hex of the compressed public key, which is how Pollr identifies creators and
// voters.
func KeyHex(key *btcec.PrivateKey) string {
	return hex.EncodeToString(key.PubKey().SerializeCompressed())
}

// OpenToken returns a text poll created by creator.
func OpenToken(creator, name string, options ...string) *pollr.OpenToken {
	return &pollr.OpenToken{
		CreatorKey:  creator,
		Name:        name,
		Description: "Test poll " + name,
		OptionsType: pollr.OptionsText,
		CreatedAt:   uint64(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Unix()),
		Options:     options,
	}
}

func VoteToken(voter, pollTxid, option string) *pollr.VoteToken {
	return &pollr.VoteToken{
		VoterKey:     voter,
		PollTxid:     pollTxid,
		ChosenOption: option,
	}
}

// TokenScript returns a PushDrop locking script carrying the token.
func TokenScript(t testing.TB, token pollr.Token) []byte {
	return pushdrop.Lock(GenerateKey(t).PubKey(), [][]byte{pollr.Serialize(token)})
}

// Tx returns a transaction spending the outpoints, with one output per locking script. A random
// funding input is always added so every transaction has a unique txid.
func Tx(t testing.TB, spends []*wire.OutPoint, lockingScripts ...[]byte) *wire.MsgTx {
	tx := wire.NewMsgTx(1)

	random := make([]byte, 32)
	if _, err := rand.Read(random); err != nil {
		t.Fatalf("Failed to read random : %s", err)
	}
	fundingHash, err := bitcoin.NewHash32(random)
	if err != nil {
		t.Fatalf("Failed to create funding hash : %s", err)
	}
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(fundingHash, 0), make([]byte, 107)))

	for _, spend := range spends {
		tx.AddTxIn(wire.NewTxIn(spend, make([]byte, 107)))
	}

	for _, script := range lockingScripts {
		tx.AddTxOut(wire.NewTxOut(1, script))
	}

	return tx
}

// RawTx returns the wire serialization of the transaction.
func RawTx(t testing.TB, tx *wire.MsgTx) []byte {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		t.Fatalf("Failed to serialize tx : %s", err)
	}
	return buf.Bytes()
}

// Outpoint returns the outpoint of the transaction's output.
func Outpoint(tx *wire.MsgTx, index uint32) pollr.Outpoint {
	return pollr.Outpoint{
		Txid:        tx.TxHash().String(),
		OutputIndex: index,
	}
}

// WireOutpoint returns the outpoint of the transaction's output for spending it.
func WireOutpoint(tx *wire.MsgTx, index uint32) *wire.OutPoint {
	return wire.NewOutPoint(tx.TxHash(), index)
}
