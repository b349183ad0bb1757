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

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	tclient "go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"invoicematch/internal/api"
	"invoicematch/internal/config"
	"invoicematch/internal/documents"
	"invoicematch/internal/export"
	"invoicematch/internal/logging"
	"invoicematch/internal/storage"
	"invoicematch/internal/util"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "invoicematch api:", err)
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
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

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

	tc, err := tclient.Dial(tclient.Options{
		HostPort:  cfg.Temporal.Address,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logging.NewTemporalLogger(log.Named("temporal")),
	})
	if err != nil {
		return fmt.Errorf("dial temporal: %w", err)
	}
	defer tc.Close()

	publisher := export.NewKafkaPublisher(cfg.Kafka, log)
	defer publisher.Close()

	srv := api.NewServer(cfg.API, api.Deps{
		Documents: documents.NewClient(cfg.Documents.BaseURL, cfg.Documents.Token,
			util.NewRetryableClient(cfg.Documents.Timeout, cfg.Documents.RetryMax, logging.NewHTTPLogger(log))),
		Audit:     storage.NewAuditRepo(db),
		Invoices:  storage.NewInvoiceRepo(db),
		Scores:    storage.NewScoreRepo(db, cfg.Pipeline.ScoreBatchSize),
		Exporter:  publisher,
		Workflows: api.NewTemporalWorkflows(tc, cfg),
	}, log)

	httpSrv := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("invoicematch api listening", zap.String("addr", cfg.API.Addr), zap.String("queue", cfg.Temporal.TaskQueue))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	return httpSrv.Shutdown(shutdownCtx)
}
