package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"invoicematch/internal/activities"
	"invoicematch/internal/config"
	"invoicematch/internal/documents"
	"invoicematch/internal/extraction"
	"invoicematch/internal/index"
	"invoicematch/internal/logging"
	"invoicematch/internal/metrics"
	"invoicematch/internal/storage"
	"invoicematch/internal/util"
	"invoicematch/internal/workflows"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "invoicematch worker:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load(".env")
	cfg, err := config.Load(os.Getenv("INVOICEMATCH_CONFIG"))
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	db, err := storage.NewDB(dbCtx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(dbCtx); err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()

	catalogRepo := storage.NewCatalogRepo(db)
	snapshots := index.NewProvider(catalogRepo, log,
		index.NewRedisStore(rdb, cfg.Catalog.RedisKey, cfg.Redis.TTL),
		index.FileStore{Path: cfg.Catalog.SnapshotPath},
	)
	catalogSize := 0
	if snap, err := snapshots.Current(ctx); err != nil {
		// matching retries through the provider; an empty catalog is not fatal at boot
		log.Warn("catalog snapshot not loaded", zap.Error(err))
	} else {
		catalogSize = snap.Len()
	}
	go snapshots.Run(ctx, cfg.Catalog.RefreshInterval)

	httpLog := logging.NewHTTPLogger(log)
	acts := activities.New(cfg.Matching.Engine(), activities.Deps{
		Extractor: extraction.NewClient(cfg.Extraction.BaseURL, cfg.Extraction.Token,
			util.NewRetryableClient(cfg.Extraction.Timeout, cfg.Extraction.RetryMax, httpLog)),
		Documents: documents.NewClient(cfg.Documents.BaseURL, cfg.Documents.Token,
			util.NewRetryableClient(cfg.Documents.Timeout, cfg.Documents.RetryMax, httpLog)),
		Invoices:  storage.NewInvoiceRepo(db),
		Scores:    storage.NewScoreRepo(db, cfg.Pipeline.ScoreBatchSize),
		Audit:     storage.NewAuditRepo(db),
		Snapshots: snapshots,
	}, log)

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.Address,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logging.NewTemporalLogger(log.Named("temporal")),
	})
	if err != nil {
		return fmt.Errorf("dial temporal: %w", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})
	workflows.Register(w)
	activities.Register(w, acts)

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(cfg.Metrics.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	log.Info("invoicematch worker started",
		zap.String("temporal", cfg.Temporal.Address),
		zap.String("queue", cfg.Temporal.TaskQueue),
		zap.Int("catalog_entries", catalogSize))

	interrupt := make(chan interface{})
	go func() {
		<-ctx.Done()
		close(interrupt)
	}()
	return w.Run(interrupt)
}
