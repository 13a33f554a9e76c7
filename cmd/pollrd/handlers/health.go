package handlers

import (
	"context"
	"net/http"

	"github.com/tokenized/pollr/internal/platform/db"
	"github.com/tokenized/pollr/internal/platform/node"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
)

// Health reports whether the node can reach its storage.
type Health struct {
	MasterDB *db.DB
}

// Check validates the service is healthy and ready to accept requests.
func (h *Health) Check(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	ctx, span := trace.StartSpan(ctx, "handlers.Health.Check")
	defer span.End()

	status := struct {
		Status string `json:"status"`
	}{
		Status: "ok",
	}

	if err := h.MasterDB.StatusCheck(ctx); err != nil {
		node.LogError(ctx, "Storage status check failed : %s", err)
		status.Status = "db not ready"
		return node.Respond(ctx, w, status, http.StatusInternalServerError)
	}

	return errors.Wrap(node.Respond(ctx, w, status, http.StatusOK), "respond")
}
