package handlers

import (
	"context"
	"net/http"

	"github.com/tokenized/pollr/internal/lookup"
	"github.com/tokenized/pollr/internal/overlay"
	"github.com/tokenized/pollr/internal/platform/config"
	"github.com/tokenized/pollr/internal/platform/db"
	"github.com/tokenized/pollr/internal/platform/node"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// API returns a handler for the overlay and poll routes. The context carries the logging
// configuration for requests.
func API(ctx context.Context, cfg *config.Config, engine *overlay.Engine, service *lookup.Service,
	masterDB *db.DB, gatherer prometheus.Gatherer) http.Handler {

	app := node.New(ctx, node.RequestLogger, node.ErrorHandler)

	h := Health{
		MasterDB: masterDB,
	}

	app.Handle("GET", "/health", h.Check)

	// Register overlay routes.
	o := Overlay{
		Engine: engine,
	}

	limit := node.LimitBody(cfg.Server.MaxBodyBytes)

	app.Handle("POST", "/submit", o.Submit, limit)
	app.Handle("POST", "/lookup", o.Lookup, limit)

	// Operator routes.
	if len(cfg.Server.AdminKey) > 0 {
		app.Handle("POST", "/evict/{txid}", o.Evict, node.RequireKey(cfg.Server.AdminKey))
	}
	app.Handle("GET", "/topics", o.Topics)
	app.Handle("GET", "/lookups", o.LookupServices)
	app.Handle("GET", "/docs/{name}", o.Documentation)

	// Register poll routes.
	p := Polls{
		Service: service,
	}

	app.Handle("GET", "/polls/{txid}/tally", p.Tally)
	app.Handle("GET", "/polls/{txid}/close", p.Close)

	if gatherer != nil {
		app.Mount("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return app
}
