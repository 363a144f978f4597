package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fraudwatch/pkg/bus"
	"fraudwatch/pkg/config"
	"fraudwatch/pkg/features"
	"fraudwatch/pkg/metrics"
	"fraudwatch/pkg/ml"
	"fraudwatch/pkg/models"
	otelobs "fraudwatch/pkg/observability/otel"
	"fraudwatch/pkg/pipeline"
	"fraudwatch/pkg/retry"
	"fraudwatch/pkg/scoring"
	"fraudwatch/pkg/store"
	"fraudwatch/pkg/structlog"
)

func main() {
	cfg := config.Load()

	log := structlog.NewLogger(cfg.ServiceName, structlog.ParseLevel(cfg.LogLevel), os.Stdout)
	structlog.SetDefaultLogger(log)

	shutdownTracer := otelobs.InitTracer(cfg.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics registry + scrape endpoint.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	pm := metrics.NewPipeline(reg)
	metricsSrv := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", structlog.Fields{"error": err.Error()})
		}
	}()

	policy := retry.Policy{
		MaxAttempts:     cfg.RetryMaxAttempts,
		InitialInterval: cfg.RetryInitialInterval,
		Multiplier:      cfg.RetryMultiplier,
		MaxInterval:     cfg.RetryMaxInterval,
	}

	// Transport.
	b, err := bus.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, log)
	if err != nil {
		log.Fatal("redis connect failed", structlog.Fields{"error": err.Error()})
	}
	defer b.Close()

	// Persistence.
	fs, err := store.Open(store.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, policy, log)
	if err != nil {
		log.Fatal("fraud store connect failed", structlog.Fields{"error": err.Error()})
	}
	defer fs.Close()

	// Scoring model is loaded once at startup and shared read-only across all
	// workers; a disabled or missing model selects the rule strategy.
	var model ml.Classifier
	if cfg.ModelEnabled {
		m, err := ml.LoadLogisticModel(cfg.ModelPath)
		if err != nil {
			log.Fatal("scoring model load failed", structlog.Fields{
				"path":  cfg.ModelPath,
				"error": err.Error(),
			})
		}
		model = m
	}
	extractor := features.NewExtractor(features.DefaultWidth)
	scorer, err := scoring.Select(model, extractor, cfg.FraudThreshold, cfg.HighValueCeiling, log)
	if err != nil {
		log.Fatal("scorer construction failed", structlog.Fields{"error": err.Error()})
	}

	alerts := pipeline.NewAlertPublisher(b, cfg.AlertChannel, log)
	consumer := pipeline.NewConsumer(scorer, fs, alerts, pm, log)
	dispatcher := pipeline.NewDispatcher(func(ctx context.Context, tx *models.Transaction) error {
		consumer.Handle(ctx, tx)
		return nil
	}, b, policy, pm, log)

	var wg sync.WaitGroup

	// One worker per partition; ordering holds within a partition, partitions
	// run concurrently.
	for p := 0; p < cfg.Partitions; p++ {
		reader, err := b.NewGroupReader(ctx, cfg.Channel, p, cfg.Group, consumerName(cfg.Group, p))
		if err != nil {
			log.Fatal("group reader init failed", structlog.Fields{
				"partition": p,
				"error":     err.Error(),
			})
		}
		w := pipeline.NewWorker(reader, dispatcher, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}

	// Passive dead-letter monitor.
	dltReader, err := b.NewDeadLetterReader(ctx, cfg.Channel, cfg.DLTGroup, consumerName(cfg.DLTGroup, 0))
	if err != nil {
		log.Fatal("dead-letter reader init failed", structlog.Fields{"error": err.Error()})
	}
	monitor := pipeline.NewDeadLetterMonitor(dltReader, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		monitor.Run(ctx)
	}()

	log.Info("fraud consumer started", structlog.Fields{
		"channel":    cfg.Channel,
		"group":      cfg.Group,
		"partitions": cfg.Partitions,
		"metrics":    cfg.MetricsAddr,
	})

	<-ctx.Done()
	log.Info("shutdown signal received, draining workers", nil)
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	_ = shutdownTracer(shutdownCtx)

	log.Info("fraud consumer stopped", nil)
}

func consumerName(group string, partition int) string {
	host, err := os.Hostname()
	if err != nil {
		host = "local"
	}
	return fmt.Sprintf("%s-%s-%d", group, host, partition)
}
