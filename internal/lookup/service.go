// Package lookup is the ls_pollr lookup service. It keeps the poll index in step with the outputs
// admitted to tm_pollr and answers questions about polls and votes.
package lookup

import (
	"context"

	"github.com/tokenized/pollr/internal/index"
	"github.com/tokenized/pollr/internal/overlay"
	"github.com/tokenized/pollr/internal/platform/metrics"
	"github.com/tokenized/pollr/internal/platform/node"
	"github.com/tokenized/pollr/pkg/pollr"
	"github.com/tokenized/pollr/pkg/pushdrop"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

var (
	// ErrPollNotFound is returned when no open or closed poll has the txid.
	ErrPollNotFound = errors.New("Poll not found")

	// ErrPollClosed is returned when an operation needs an open poll.
	ErrPollClosed = errors.New("Poll closed")
)

// Service is the lookup service for Pollr.
type Service struct {
	store   *index.Store
	metrics *metrics.Metrics
}

// NewService returns a lookup service over the store. m may be nil.
func NewService(store *index.Store, m *metrics.Metrics) *Service {
	return &Service{
		store:   store,
		metrics: m,
	}
}

// OutputAdmittedByTopic indexes the token in the locking script of an output admitted to
// tm_pollr. Other topics are ignored.
func (s *Service) OutputAdmittedByTopic(ctx context.Context, topic string,
	outpoint pollr.Outpoint, lockingScript []byte) error {

	if topic != pollr.TopicName {
		return nil
	}

	ctx, span := trace.StartSpan(ctx, "internal.lookup.OutputAdmittedByTopic")
	defer span.End()

	payload, err := pushdrop.Payload(lockingScript)
	if err != nil {
		return errors.Wrapf(err, "decode %s", outpoint)
	}

	if err := s.store.RecordAdmitted(ctx, outpoint, payload); err != nil {
		return errors.Wrapf(err, "record %s", outpoint)
	}

	return nil
}

// OutputSpent removes a spent tm_pollr output from the index. A poll spent by a transaction
// carrying its close token is closed by that token. Other topics are ignored.
func (s *Service) OutputSpent(ctx context.Context, topic string, outpoint pollr.Outpoint,
	spendingTxid string) error {

	if topic != pollr.TopicName {
		return nil
	}

	ctx, span := trace.StartSpan(ctx, "internal.lookup.OutputSpent")
	defer span.End()

	removed, err := s.store.Spend(ctx, outpoint, spendingTxid)
	if err != nil {
		return errors.Wrapf(err, "spend %s", outpoint)
	}

	if removed {
		node.LogVerbose(ctx, "Removed output %s spent by %s", outpoint, spendingTxid)
	}
	return nil
}

// OutputEvicted removes an evicted output from the index.
func (s *Service) OutputEvicted(ctx context.Context, outpoint pollr.Outpoint) error {
	ctx, span := trace.StartSpan(ctx, "internal.lookup.OutputEvicted")
	defer span.End()

	removed, err := s.store.RemoveOutpoint(ctx, outpoint)
	if err != nil {
		return errors.Wrapf(err, "remove %s", outpoint)
	}

	if removed {
		node.LogVerbose(ctx, "Removed evicted output %s", outpoint)
	}
	return nil
}

// Lookup answers a question addressed to ls_pollr. A question for another service returns
// pollr.ErrUnknownService and a question without a query returns pollr.ErrInvalidQuery. Questions
// that are otherwise unsupported or incomplete have an empty answer.
//
// The status of poll and allpolls questions defaults to open.
func (s *Service) Lookup(ctx context.Context, question *pollr.Question) ([]pollr.Outpoint, error) {
	ctx, span := trace.StartSpan(ctx, "internal.lookup.Lookup")
	defer span.End()

	if question == nil {
		return nil, errors.Wrap(pollr.ErrInvalidQuery, "missing question")
	}

	if question.Service != pollr.ServiceName {
		return nil, errors.Wrap(pollr.ErrUnknownService, question.Service)
	}

	if question.Query == nil {
		return nil, errors.Wrap(pollr.ErrInvalidQuery, "missing query")
	}

	query := question.Query
	result := []pollr.Outpoint{}

	switch query.Type {
	case pollr.QueryVote:
		if len(query.Txid) == 0 || len(query.VoterID) == 0 {
			break
		}
		if record := s.store.Vote(query.Txid, query.VoterID); record != nil {
			result = append(result, record.Outpoint)
		}

	case pollr.QueryPoll:
		if len(query.Txid) == 0 {
			break
		}
		switch statusOrOpen(query.Status) {
		case pollr.StatusOpen:
			if record := s.store.OpenPoll(query.Txid); record != nil {
				result = append(result, record.Outpoint)
			}
		case pollr.StatusClosed:
			if record := s.store.ClosedPoll(query.Txid); record != nil {
				result = append(result, record.Outpoint)
			}
		}

	case pollr.QueryAllVotesFor:
		if len(query.Txid) == 0 {
			break
		}
		for _, record := range s.store.VotesFor(query.Txid) {
			result = append(result, record.Outpoint)
		}

	case pollr.QueryAllPolls:
		switch statusOrOpen(query.Status) {
		case pollr.StatusOpen:
			for _, record := range s.store.OpenPolls() {
				result = append(result, record.Outpoint)
			}
		case pollr.StatusClosed:
			for _, record := range s.store.ClosedPolls() {
				result = append(result, record.Outpoint)
			}
		}

	default:
		node.LogVerbose(ctx, "Unsupported query type %q", query.Type)
	}

	return result, nil
}

func statusOrOpen(status pollr.PollStatus) pollr.PollStatus {
	if len(status) == 0 {
		return pollr.StatusOpen
	}
	return status
}

// Documentation returns the markdown documentation of the lookup service.
func (s *Service) Documentation() string {
	return `# Pollr Lookup Service

Tracks open polls, closed polls and votes admitted to tm_pollr.

Queries:
- {"type": "vote", "txid": <poll txid>, "voterId": <voter key>} returns the voter's vote.
- {"type": "poll", "txid": <txid>, "status": "open" | "closed"} returns the poll.
- {"type": "allvotesfor", "txid": <poll txid>} returns every vote on the poll.
- {"type": "allpolls", "status": "open" | "closed"} returns every poll with the status.

The status of poll and allpolls queries is optional. An omitted or empty status means "open".

A close token closes a poll only when its transaction spends the poll's output.
`
}

// MetaData returns the lookup service's meta data.
func (s *Service) MetaData() overlay.MetaData {
	return overlay.MetaData{
		Name:             "PollrLookupService",
		ShortDescription: "Tracks and validates polls and votes",
		Version:          "1.0",
		InformationURL:   "/docs/lookup",
	}
}
