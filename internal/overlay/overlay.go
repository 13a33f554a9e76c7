// Package overlay is a minimal overlay node engine. Submitted transactions are run through topic
// managers, the admitted outputs are stored per topic, and lookup services are told about
// admissions, spends and evictions.
package overlay

import (
	"context"

	"github.com/tokenized/pollr/pkg/pollr"

	"github.com/pkg/errors"
)

var (
	// ErrUnknownTopic is returned when a submission names a topic with no topic manager.
	ErrUnknownTopic = errors.New("Unknown topic")

	// ErrMalformedTransaction is returned when submitted bytes aren't a transaction.
	ErrMalformedTransaction = errors.New("Malformed transaction")
)

// AdmittanceInstructions is a topic manager's decision on a transaction.
type AdmittanceInstructions struct {
	// OutputsToAdmit are the indexes of the outputs admitted to the topic.
	OutputsToAdmit []uint32 `json:"outputsToAdmit"`

	// CoinsToRetain are the input indexes, taken from previous coins, of spent outputs the topic
	// keeps.
	CoinsToRetain []uint32 `json:"coinsToRetain"`
}

// Steak is the result of a submission: the admittance instructions for each topic.
type Steak map[string]AdmittanceInstructions

// MetaData describes a topic manager or lookup service.
type MetaData struct {
	Name             string `json:"name"`
	ShortDescription string `json:"shortDescription"`
	IconURL          string `json:"iconURL,omitempty"`
	Version          string `json:"version,omitempty"`
	InformationURL   string `json:"informationURL,omitempty"`
}

// TopicManager decides which outputs of a transaction belong to a topic.
type TopicManager interface {
	// IdentifyAdmissibleOutputs returns the outputs of the raw transaction to admit. previousCoins
	// are the indexes of the inputs that spend outputs already admitted to the topic.
	IdentifyAdmissibleOutputs(ctx context.Context, rawTx []byte,
		previousCoins []uint32) (AdmittanceInstructions, error)

	Documentation() string
	MetaData() MetaData
}

// LookupService indexes admitted outputs and answers questions about them.
type LookupService interface {
	OutputAdmittedByTopic(ctx context.Context, topic string, outpoint pollr.Outpoint,
		lockingScript []byte) error

	// OutputSpent is called for each admitted output the transaction spendingTxid spends and
	// the topic doesn't retain. It is called after the transaction's own outputs are admitted.
	OutputSpent(ctx context.Context, topic string, outpoint pollr.Outpoint,
		spendingTxid string) error

	OutputEvicted(ctx context.Context, outpoint pollr.Outpoint) error

	Lookup(ctx context.Context, question *pollr.Question) ([]pollr.Outpoint, error)

	Documentation() string
	MetaData() MetaData
}
