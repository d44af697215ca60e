package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"melodex/internal/catalog"
	"melodex/internal/handlers"
	"melodex/internal/logging"
	"melodex/internal/middleware"
	"melodex/internal/scanner"
	"melodex/internal/share"
	"melodex/internal/startup"
	"melodex/internal/store"
	"melodex/internal/tags"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	storeStart := time.Now()
	kv, err := store.New(context.Background(), config.DatabasePath)
	if err != nil {
		logging.Fatal("Failed to initialize store: %v", err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logging.Warn("Store close error: %v", err)
		}
	}()
	kv.SetBatchSize(config.SweepBatchSize)
	startup.LogStoreInit(time.Since(storeStart))

	cat := catalog.New(kv)
	shares := share.NewManager(cat)

	startup.LogScannerInit(config.ScanInterval)
	discovery := scanner.NewDiscovery(config.MusicDirs, config.AudioExtensions)
	svc := scanner.NewService(cat, discovery, tags.NewReader(), config.ArtistSeparators, config.ScanInterval)
	svc.SetOnScanComplete(func(result *scanner.SweepResult) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := shares.EnsureAll(ctx); err != nil {
			logging.Error("Auto-share pass failed: %v", err)
		}
	})
	svc.Start(context.Background())
	startup.LogScannerStarted()

	h := handlers.New(cat, svc, shares)

	router := mux.NewRouter()
	h.RegisterRoutes(router)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)
	handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)

	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:         ":" + config.MetricsPort,
			Handler:      metricsMux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	go handleShutdown(srv, metricsSrv, svc)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("Server error: %v", err)
	}
}

func handleShutdown(srv, metricsSrv *http.Server, svc *scanner.Service) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping scanner")
	svc.Stop()
	startup.LogShutdownStepComplete("Scanner stopped")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
