package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"collections-etl-go/internal/config"
	"collections-etl-go/internal/logger"
	"collections-etl-go/internal/pipeline"
	"collections-etl-go/internal/report"
	"collections-etl-go/internal/warehouse"
)

func main() {
	_ = godotenv.Load() // loads .env

	log := logger.New().WithField("service", "collections-etl-go")
	log.Info("starting run")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to open warehouse connection")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.WithError(err).Fatal("warehouse unreachable")
	}

	partitionFields := map[string]string{}
	for _, table := range config.Tables {
		partitionFields[cfg.TableName(table)] = cfg.PartitionField(table)
	}

	source := warehouse.NewSource(pool, cfg)
	sink := warehouse.NewSink(pool, partitionFields)

	p, err := pipeline.New(cfg, source, sink)
	if err != nil {
		log.WithError(err).Fatal("failed to build pipeline")
	}

	res := p.Run(ctx)

	resLog := log.WithField("run_id", res.RunID).
		WithField("processed", res.PeriodsProcessed).
		WithField("failed", res.PeriodsFailed).
		WithField("rows", res.RowsWritten)

	if cfg.ReportPath != "" {
		if err := report.Write(cfg.ReportPath, cfg, res); err != nil {
			resLog.WithError(err).Warn("could not write run report")
		}
	}

	if !res.Success {
		resLog.WithField("error", res.ErrorMessage).Error("run finished with failures")
		os.Exit(1)
	}
	resLog.Info("run finished")
}
