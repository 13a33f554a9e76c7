// Package topic is the admission engine for the tm_pollr topic. It decides which outputs of a
// transaction are valid Pollr tokens.
package topic

import (
	"bytes"
	"context"
	"fmt"

	"github.com/tokenized/pollr/internal/overlay"
	"github.com/tokenized/pollr/internal/platform/metrics"
	"github.com/tokenized/pollr/internal/platform/node"
	"github.com/tokenized/pollr/pkg/pollr"
	"github.com/tokenized/pollr/pkg/pushdrop"

	"github.com/pkg/errors"
	"github.com/tokenized/pkg/wire"
	"go.opencensus.io/trace"
)

// Resolver answers lookup questions about the current poll index. The lookup service is the
// resolver in a running node.
type Resolver interface {
	Lookup(ctx context.Context, question *pollr.Question) ([]pollr.Outpoint, error)
}

// Manager is the topic manager for Pollr tokens.
type Manager struct {
	resolver Resolver
	metrics  *metrics.Metrics
}

// NewManager returns a topic manager that checks votes with resolver. m may be nil.
func NewManager(resolver Resolver, m *metrics.Metrics) *Manager {
	return &Manager{
		resolver: resolver,
		metrics:  m,
	}
}

// IdentifyAdmissibleOutputs returns the indexes of the outputs that carry valid Pollr tokens.
// Every output is judged on its own, so one bad output never rejects the others. A transaction
// that can't be parsed admits nothing and isn't an error. Pollr never retains spent coins.
func (m *Manager) IdentifyAdmissibleOutputs(ctx context.Context, rawTx []byte,
	previousCoins []uint32) (overlay.AdmittanceInstructions, error) {

	ctx, span := trace.StartSpan(ctx, "internal.topic.IdentifyAdmissibleOutputs")
	defer span.End()

	result := overlay.AdmittanceInstructions{
		OutputsToAdmit: []uint32{},
		CoinsToRetain:  []uint32{},
	}

	tx := &wire.MsgTx{}
	if err := tx.Deserialize(bytes.NewReader(rawTx)); err != nil {
		node.LogWarn(ctx, "Failed to parse transaction : %s", err)
		return result, nil
	}

	// Votes admitted earlier in this transaction, since the index doesn't have them yet.
	voted := make(map[string]bool)

	for index, output := range tx.TxOut {
		token, err := m.admit(ctx, tx, previousCoins, output.PkScript, voted)
		if err != nil {
			m.metrics.OutputRejected(rejectionReason(err))
			node.LogWarn(ctx, "Rejected output %d : %s", index, err)
			continue
		}

		m.metrics.OutputAdmitted(token.Type().String())
		node.LogVerbose(ctx, "Admitted %s output %d", token.Type(), index)
		result.OutputsToAdmit = append(result.OutputsToAdmit, uint32(index))
	}

	return result, nil
}

// admit returns the token in the locking script if the output is admissible.
func (m *Manager) admit(ctx context.Context, tx *wire.MsgTx, previousCoins []uint32,
	lockingScript []byte, voted map[string]bool) (pollr.Token, error) {

	payload, err := pushdrop.Payload(lockingScript)
	if err != nil {
		return nil, err
	}

	token, err := pollr.Deserialize(payload)
	if err != nil {
		return nil, err
	}

	switch t := token.(type) {
	case *pollr.OpenToken:
		// Structure checks are all that apply.
	case *pollr.CloseToken:
		if err := m.checkClose(ctx, tx, previousCoins); err != nil {
			return nil, err
		}
	case *pollr.VoteToken:
		key := t.PollTxid + "/" + t.VoterKey
		if voted[key] {
			return nil, errors.Wrap(pollr.ErrDuplicateVote, "earlier output in transaction")
		}
		if err := m.checkVote(ctx, t); err != nil {
			return nil, err
		}
		voted[key] = true
	default:
		return nil, errors.Wrapf(pollr.ErrUnknownTokenType, "%T", token)
	}

	return token, nil
}

// checkVote verifies the vote is for exactly one open poll and the voter hasn't voted on it.
func (m *Manager) checkVote(ctx context.Context, vote *pollr.VoteToken) error {
	polls, err := m.resolver.Lookup(ctx, pollr.PollQuestion(vote.PollTxid, pollr.StatusOpen))
	if err != nil {
		return errors.Wrap(err, "lookup poll")
	}
	if len(polls) != 1 {
		return errors.Wrapf(pollr.ErrInvalidPollReference, "%d open polls with txid %s",
			len(polls), vote.PollTxid)
	}

	votes, err := m.resolver.Lookup(ctx, pollr.VoteQuestion(vote.PollTxid, vote.VoterKey))
	if err != nil {
		return errors.Wrap(err, "lookup vote")
	}
	if len(votes) != 0 {
		return errors.Wrapf(pollr.ErrDuplicateVote, "voter %s already voted at %s", vote.VoterKey,
			votes[0])
	}

	return nil
}

// checkClose verifies the transaction spends the output of an open poll. The index binds the close
// to the poll it spends when the spend is recorded.
func (m *Manager) checkClose(ctx context.Context, tx *wire.MsgTx, previousCoins []uint32) error {
	for _, coin := range previousCoins {
		if int(coin) >= len(tx.TxIn) {
			continue
		}

		previous := tx.TxIn[coin].PreviousOutPoint
		spent := pollr.Outpoint{
			Txid:        previous.Hash.String(),
			OutputIndex: previous.Index,
		}

		polls, err := m.resolver.Lookup(ctx, pollr.PollQuestion(spent.Txid, pollr.StatusOpen))
		if err != nil {
			return errors.Wrap(err, "lookup poll")
		}

		for _, poll := range polls {
			if poll == spent {
				return nil
			}
		}
	}

	return errors.Wrap(pollr.ErrInvalidPollReference, "close spends no open poll")
}

func rejectionReason(err error) string {
	switch errors.Cause(err) {
	case pushdrop.ErrNotPushDrop, pushdrop.ErrNoFields:
		return metrics.ReasonNotPushDrop
	case pollr.ErrMalformedToken, pollr.ErrStructuralMismatch:
		return metrics.ReasonMalformed
	case pollr.ErrUnknownTokenType:
		return metrics.ReasonUnknownType
	case pollr.ErrInvalidPollReference:
		return metrics.ReasonInvalidPoll
	case pollr.ErrDuplicateVote:
		return metrics.ReasonDuplicateVote
	}

	return metrics.ReasonResolverFailure
}

// Documentation returns the markdown documentation of the topic.
func (m *Manager) Documentation() string {
	return fmt.Sprintf(`# Pollr Topic Manager

Topic: %s

Admits PushDrop outputs whose first field is a Pollr token. Token fields are each prefixed with a
Bitcoin varint length.

- open: "open", creator key, name, description, option count, options type, created at, then one
  field per option.
- vote: "vote", voter key, poll txid, chosen option. The poll must be open and the voter must not
  have voted on it.
- close: "close", the open token's metadata, then an option and its vote count for each option.
  The transaction must spend the output of the open poll it closes.

Spent Pollr outputs are never retained.
`, pollr.TopicName)
}

// MetaData returns the topic manager's meta data.
func (m *Manager) MetaData() overlay.MetaData {
	return overlay.MetaData{
		Name:             "Pollr Topic Manager",
		ShortDescription: "Manages pollr outputs",
	}
}
