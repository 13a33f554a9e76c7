package handlers

import (
	"context"
	"net/http"

	"github.com/tokenized/pollr/internal/lookup"
	"github.com/tokenized/pollr/internal/platform/node"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// Polls serves tallies and closures of indexed polls.
type Polls struct {
	Service *lookup.Service
}

// Tally responds with the current vote counts of a poll.
func (p *Polls) Tally(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	ctx, span := trace.StartSpan(ctx, "handlers.Polls.Tally")
	defer span.End()

	txid := node.Params(r)["txid"]

	result, err := p.Service.Tally(ctx, txid)
	if err != nil {
		if errors.Cause(err) == lookup.ErrPollNotFound {
			return node.NewRequestError(err, http.StatusNotFound)
		}
		return errors.Wrap(err, "tally")
	}

	return node.Respond(ctx, w, result, http.StatusOK)
}

// Close responds with the close token of an open poll and the outputs its close transaction
// spends.
func (p *Polls) Close(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	ctx, span := trace.StartSpan(ctx, "handlers.Polls.Close")
	defer span.End()

	txid := node.Params(r)["txid"]

	closure, err := p.Service.Close(ctx, txid)
	if err != nil {
		switch errors.Cause(err) {
		case lookup.ErrPollNotFound:
			return node.NewRequestError(err, http.StatusNotFound)
		case lookup.ErrPollClosed:
			return node.NewRequestError(err, http.StatusConflict)
		}
		return errors.Wrap(err, "close")
	}

	return node.Respond(ctx, w, closure, http.StatusOK)
}
