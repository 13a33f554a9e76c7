package bootstrap

import (
	"context"
	"encoding/json"

	"github.com/tokenized/pollr/internal/index"
	"github.com/tokenized/pollr/internal/lookup"
	"github.com/tokenized/pollr/internal/overlay"
	"github.com/tokenized/pollr/internal/platform/config"
	"github.com/tokenized/pollr/internal/platform/db"
	"github.com/tokenized/pollr/internal/platform/metrics"
	"github.com/tokenized/pollr/internal/platform/node"
	"github.com/tokenized/pollr/internal/topic"
	"github.com/tokenized/pollr/pkg/pollr"
	"github.com/tokenized/pollr/pkg/scheduler"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tokenized/pkg/logger"
)

// NewContextWithTextLogger returns a context that logs text at info level until the configuration
// is loaded.
func NewContextWithTextLogger() context.Context {
	ctx, _ := node.ContextWithLogger(context.Background(), false, true, "")
	return ctx
}

// NewContextWithLogger returns a context that logs as the configuration specifies. A log file that
// can't be opened is fatal.
func NewContextWithLogger(cfg *config.Config) context.Context {
	ctx, err := node.ContextWithLogger(context.Background(), cfg.Log.Development,
		node.IsTextFormat(cfg.Log.Format), cfg.Log.FilePath, scheduler.SubSystem)
	if err != nil {
		logger.Fatal(ctx, "Logging : %s", err)
	}
	return ctx
}

func NewConfigFromEnv(ctx context.Context) *config.Config {
	cfg, err := config.Environment()
	if err != nil {
		logger.Fatal(ctx, "Parsing Config : %s", err)
	}

	// Mask sensitive values
	cfgSafe := config.SafeConfig(*cfg)
	cfgJSON, err := json.MarshalIndent(cfgSafe, "", "    ")
	if err != nil {
		logger.Fatal(ctx, "Marshalling Config to JSON : %s", err)
	}
	logger.Info(ctx, "Config : %v", string(cfgJSON))

	return cfg
}

func NewMasterDB(ctx context.Context, cfg *config.Config) *db.DB {
	masterDB, err := db.New(&db.StorageConfig{
		Bucket:     cfg.Storage.Bucket,
		Root:       cfg.Storage.Root,
		MaxRetries: cfg.AWS.MaxRetries,
		RetryDelay: cfg.AWS.RetryDelay,
		Region:     cfg.AWS.Region,
		AccessKey:  cfg.AWS.AccessKeyID,
		Secret:     cfg.AWS.SecretAccessKey,
	})
	if err != nil {
		logger.Fatal(ctx, "Register DB : %s", err)
	}

	if err := masterDB.StatusCheck(ctx); err != nil {
		logger.Fatal(ctx, "DB status check : %s", err)
	}

	return masterDB
}

func NewMetrics(ctx context.Context, reg prometheus.Registerer) *metrics.Metrics {
	m, err := metrics.New(reg)
	if err != nil {
		logger.Fatal(ctx, "Register metrics : %s", err)
	}

	return m
}

func LoadIndexFromDB(ctx context.Context, masterDB *db.DB, m *metrics.Metrics) *index.Store {
	store, err := index.Load(ctx, masterDB, m)
	if err != nil {
		logger.Fatal(ctx, "Load index : %s", err)
	}

	return store
}

// NewEngine wires the Pollr topic manager and lookup service into an overlay engine.
func NewEngine(masterDB *db.DB, service *lookup.Service, m *metrics.Metrics) *overlay.Engine {
	topics := map[string]overlay.TopicManager{
		pollr.TopicName: topic.NewManager(service, m),
	}
	lookups := map[string]overlay.LookupService{
		pollr.ServiceName: service,
	}

	return overlay.NewEngine(masterDB, topics, lookups, m)
}
