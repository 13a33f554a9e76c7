package lookup

import (
	"context"

	"github.com/tokenized/pollr/pkg/pollr"

	"github.com/pkg/errors"
	"github.com/tokenized/pkg/logger"
	"go.opencensus.io/trace"
)

// TallyResult is the current count of a poll's votes.
type TallyResult struct {
	PollTxid string              `json:"pollTxid"`
	Status   pollr.PollStatus    `json:"status"`
	Results  []pollr.OptionCount `json:"results"`

	// Discarded is the number of votes for options the poll doesn't have.
	Discarded int `json:"discarded"`
}

// Closure is what a poll's creator needs to close it: the close token and the outputs the close
// transaction spends.
type Closure struct {
	Token  *pollr.CloseToken `json:"token"`
	Spends []pollr.Outpoint  `json:"spends"`
}

// Tally returns the counts of an open poll's live votes, or the final counts of a closed poll.
func (s *Service) Tally(ctx context.Context, pollTxid string) (*TallyResult, error) {
	ctx, span := trace.StartSpan(ctx, "internal.lookup.Tally")
	defer span.End()

	if open := s.store.OpenPoll(pollTxid); open != nil {
		tally := s.tallyOpen(ctx, open.Token, pollTxid)
		return &TallyResult{
			PollTxid:  pollTxid,
			Status:    pollr.StatusOpen,
			Results:   tally.Counts,
			Discarded: len(tally.Discarded),
		}, nil
	}

	if closed := s.store.ClosedPoll(pollTxid); closed != nil {
		return &TallyResult{
			PollTxid: closed.PollTxid,
			Status:   pollr.StatusClosed,
			Results:  closed.Token.Results,
		}, nil
	}

	return nil, errors.Wrap(ErrPollNotFound, pollTxid)
}

// Close tallies an open poll and returns the close token along with the poll and vote outputs a
// close transaction spends.
func (s *Service) Close(ctx context.Context, pollTxid string) (*Closure, error) {
	ctx, span := trace.StartSpan(ctx, "internal.lookup.Close")
	defer span.End()

	open := s.store.OpenPoll(pollTxid)
	if open == nil {
		if s.store.ClosedPoll(pollTxid) != nil {
			return nil, errors.Wrap(ErrPollClosed, pollTxid)
		}
		return nil, errors.Wrap(ErrPollNotFound, pollTxid)
	}

	votes := s.store.VotesFor(pollTxid)
	tokens := make([]*pollr.VoteToken, len(votes))
	result := &Closure{
		Spends: []pollr.Outpoint{open.Outpoint},
	}
	for i, vote := range votes {
		tokens[i] = vote.Token
		result.Spends = append(result.Spends, vote.Outpoint)
	}

	closeToken, tally := pollr.ClosePoll(open.Token, tokens)
	s.logDiscarded(ctx, pollTxid, tally.Discarded)
	result.Token = closeToken

	return result, nil
}

func (s *Service) tallyOpen(ctx context.Context, open *pollr.OpenToken,
	pollTxid string) pollr.Tally {

	votes := s.store.VotesFor(pollTxid)
	tokens := make([]*pollr.VoteToken, len(votes))
	for i, vote := range votes {
		tokens[i] = vote.Token
	}

	tally := pollr.TallyVotes(open, tokens)
	s.logDiscarded(ctx, pollTxid, tally.Discarded)
	return tally
}

// logDiscarded records votes the tally ignored so they are never dropped silently.
func (s *Service) logDiscarded(ctx context.Context, pollTxid string, discarded []*pollr.VoteToken) {
	if len(discarded) == 0 {
		return
	}

	for _, vote := range discarded {
		logger.Warn(ctx, "Discarded vote on %s by %s for unknown option %q", pollTxid,
			vote.VoterKey, vote.ChosenOption)
	}
	s.metrics.VotesDiscarded(len(discarded))
}
