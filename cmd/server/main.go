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

	"go.uber.org/zap"

	"github.com/wakala/settlement/internal/api"
	"github.com/wakala/settlement/internal/config"
	"github.com/wakala/settlement/internal/ingestion"
	"github.com/wakala/settlement/internal/logger"
	"github.com/wakala/settlement/internal/orchestration"
	"github.com/wakala/settlement/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("initializing database", zap.String("path", cfg.DBPath))
	db, err := repository.InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}
	defer db.Close()

	// Create repositories.
	repos := orchestration.Repos{
		Transactions:   repository.NewTransactionRepo(db),
		Reconciliation: repository.NewReconciliationRepo(db),
		Deposits:       repository.NewDepositRepo(db),
		Ledgers:        repository.NewLedgerRepo(db),
		Holidays:       repository.NewHolidayRepo(db),
	}

	// Holiday snapshot: configured fixed list plus the persisted add-on list.
	addOn, err := repos.Holidays.List(ctx)
	if err != nil {
		return fmt.Errorf("load add-on holidays: %w", err)
	}
	holidays, err := cfg.Holidays(addOn)
	if err != nil {
		return err
	}
	log.Info("holiday calendar loaded",
		zap.Int("fixed", holidays.FixedCount()),
		zap.Int("add_on", len(addOn)),
	)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Create services.
	syncSvc := orchestration.NewService(repos, holidays, orchestration.Options{
		MaxRollDays:  cfg.Settlement.MaxRollDays,
		LookbackDays: cfg.Settlement.LookbackDays,
		Variant:      cfg.AgentVariant(),
	})
	ingestionSvc := ingestion.NewService(repos.Transactions, loc)

	if err := seed(ctx, cfg.SeedFiles(), repos.Transactions, ingestionSvc); err != nil {
		log.Warn("seeding failed", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(repos, syncSvc, ingestionSvc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening",
			zap.String("addr", "http://localhost:"+cfg.Port),
			zap.String("api_base", "/api/v1"),
			zap.String("timezone", cfg.Timezone),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// seed ingests the configured batch files into an empty database.
func seed(ctx context.Context, files []string, txns *repository.TransactionRepo, svc *ingestion.Service) error {
	if len(files) == 0 {
		return nil
	}

	count, err := txns.Count(ctx)
	if err != nil {
		return fmt.Errorf("count transactions: %w", err)
	}
	if count > 0 {
		zap.L().Info("database already has transactions, skipping seed", zap.Int("count", count))
		return nil
	}

	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		res, err := svc.IngestBatch(ctx, data)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		zap.L().Info("seeded transactions",
			zap.String("file", path),
			zap.String("source", string(res.Source)),
			zap.Int("ingested", res.RecordsIngested),
			zap.Int("rejected", res.Rejected),
		)
	}
	return nil
}
