package handlers

import (
	"context"
	"encoding/hex"
	"net/http"

	"github.com/tokenized/pollr/internal/overlay"
	"github.com/tokenized/pollr/internal/platform/node"
	"github.com/tokenized/pollr/pkg/pollr"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// SubmitRequest is the body of a submission.
type SubmitRequest struct {
	RawTx  string   `json:"rawTx"`
	Topics []string `json:"topics"`
}

// Overlay exposes the overlay engine.
type Overlay struct {
	Engine *overlay.Engine
}

// Submit runs a hex encoded transaction through the requested topics and responds with the
// admittance instructions per topic.
func (o *Overlay) Submit(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	ctx, span := trace.StartSpan(ctx, "handlers.Overlay.Submit")
	defer span.End()

	request := &SubmitRequest{}
	if err := node.DecodeJSON(r, request); err != nil {
		return errors.Wrap(err, "decode request")
	}

	rawTx, err := hex.DecodeString(request.RawTx)
	if err != nil {
		return node.NewRequestError(errors.Wrap(err, "decode tx hex"), http.StatusBadRequest)
	}

	if len(request.Topics) == 0 {
		request.Topics = []string{pollr.TopicName}
	}

	steak, err := o.Engine.Submit(ctx, rawTx, request.Topics)
	if err != nil {
		switch errors.Cause(err) {
		case overlay.ErrUnknownTopic, overlay.ErrMalformedTransaction:
			return node.NewRequestError(err, http.StatusBadRequest)
		}
		return errors.Wrap(err, "submit")
	}

	return node.Respond(ctx, w, steak, http.StatusOK)
}

// Lookup answers a lookup question.
func (o *Overlay) Lookup(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	ctx, span := trace.StartSpan(ctx, "handlers.Overlay.Lookup")
	defer span.End()

	question := &pollr.Question{}
	if err := node.DecodeJSON(r, question); err != nil {
		return errors.Wrap(err, "decode question")
	}

	result, err := o.Engine.Lookup(ctx, question)
	if err != nil {
		switch errors.Cause(err) {
		case pollr.ErrInvalidQuery:
			return node.NewRequestError(err, http.StatusBadRequest)
		case pollr.ErrUnknownService:
			return node.NewRequestError(err, http.StatusNotFound)
		}
		return errors.Wrap(err, "lookup")
	}

	return node.Respond(ctx, w, result, http.StatusOK)
}

// Evict removes every admitted output of a transaction and puts back the outputs it spent.
func (o *Overlay) Evict(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	ctx, span := trace.StartSpan(ctx, "handlers.Overlay.Evict")
	defer span.End()

	txid := node.Params(r)["txid"]

	evicted, err := o.Engine.Evict(ctx, txid)
	if err != nil {
		return errors.Wrap(err, "evict")
	}

	if evicted == nil {
		evicted = []pollr.Outpoint{}
	}
	return node.Respond(ctx, w, evicted, http.StatusOK)
}

// Topics lists the topic managers.
func (o *Overlay) Topics(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return node.Respond(ctx, w, o.Engine.ListTopics(), http.StatusOK)
}

// LookupServices lists the lookup services.
func (o *Overlay) LookupServices(ctx context.Context, w http.ResponseWriter,
	r *http.Request) error {
	return node.Respond(ctx, w, o.Engine.ListLookupServices(), http.StatusOK)
}

// Documentation responds with the markdown documentation of a topic manager or lookup service.
func (o *Overlay) Documentation(ctx context.Context, w http.ResponseWriter,
	r *http.Request) error {

	name := node.Params(r)["name"]
	docs, exists := o.Engine.Documentation(name)
	if !exists {
		return errors.Wrap(node.ErrNotFound, name)
	}

	if v, ok := ctx.Value(node.KeyValues).(*node.Values); ok {
		v.StatusCode = http.StatusOK
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(docs)); err != nil {
		return errors.Wrap(err, "write documentation")
	}
	return nil
}
