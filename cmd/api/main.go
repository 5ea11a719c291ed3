package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/nannytracker/internal/api"
	"example.com/nannytracker/internal/app"
	"example.com/nannytracker/internal/config"
	"example.com/nannytracker/internal/role"
	"example.com/nannytracker/internal/summary"
	httptransport "example.com/nannytracker/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	infra, err := app.SetupInfra(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to set up infrastructure: %v", err)
	}
	defer infra.Close()

	service := app.NewService(cfg, infra)
	summarizer := app.NewSummarizer(cfg, summary.WithLocation(loc))

	handler := api.NewHandler(service, api.WithSummarizer(summarizer), api.WithLocation(loc))
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	var metricsSrv *http.Server
	if cfg.MetricsAddress == "" {
		mux.Handle("/metrics", promhttp.Handler())
	} else {
		metricsSrv = &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}
		go func() {
			log.Printf("metrics listening on %s", cfg.MetricsAddress)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("metrics server error: %v", err)
			}
		}()
	}

	server := httptransport.NewServer(httptransport.DefaultServerConfig(cfg.HTTPAddress), httptransport.Chain(mux,
		httptransport.RequestLogger(log.Default()),
		httptransport.CORS(cfg.CORSOrigin),
		role.Middleware{}.Wrap,
	))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("nanny-tracker api listening on %s (storage=%s)", cfg.HTTPAddress, cfg.StorageBackend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("metrics shutdown error: %v", err)
		}
	}
}
