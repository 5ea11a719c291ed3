package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"example.com/nannytracker/internal/app"
	"example.com/nannytracker/internal/config"
	"example.com/nannytracker/internal/consumer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	if !cfg.EventsEnabled() {
		log.Fatalf("KAFKA_BROKERS is required for the shift ledger consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := app.OpenPostgres(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	handler := consumer.NewLedgerHandler(pool)

	metricsAddr := cfg.MetricsAddress
	if metricsAddr == "" {
		metricsAddr = ":9102"
	}
	metricsSrv := &http.Server{Addr: metricsAddr, Handler: promhttp.Handler()}
	go func() {
		log.Printf("consumer metrics listening on %s", metricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.KafkaBrokers,
		GroupID:         cfg.ConsumerGroupID,
		Topic:           cfg.ShiftEventsTopic,
		MinBytes:        1,
		MaxBytes:        10e6,
		CommitInterval:  time.Second,
		ReadLagInterval: -1,
	})
	proc := consumer.NewProcessor(reader, handler)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer reader.Close()

		log.Printf("consumer started (topic=%s, group=%s)", cfg.ShiftEventsTopic, cfg.ConsumerGroupID)
		if err := proc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("consumer stopped with error (topic=%s): %v", cfg.ShiftEventsTopic, err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("consumer shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}

	<-done
}
