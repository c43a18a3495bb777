// Command jaspynotesd serves the note API. The persistence and blob backends
// are selected through JASPYNOTES_* environment variables (see
// core.OpenStore and blob.Open).
package main

import (
	"context"
	"errors"
	"expvar"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jaspynotes/internal/adapters/httpapi"
	"jaspynotes/internal/auth"
	"jaspynotes/internal/blob"
	"jaspynotes/internal/core"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()
	if err := run(*addr); err != nil {
		fmt.Fprintln(os.Stderr, "jaspynotesd:", err)
		os.Exit(1)
	}
}

func run(addr string) error {
	logger := core.NewJSONLogger(os.Stdout)

	store, err := core.OpenStore()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	service := core.NewService(store,
		core.WithLogger(logger),
		core.WithMetricsRecorder(metrics),
		core.WithAuditRecorder(core.NewMemoryAuditRecorder()),
	)
	authService := auth.NewService(store)

	blobs, err := blob.Open(context.Background())
	if err != nil {
		return fmt.Errorf("open blob store: %w", err)
	}

	api := httpapi.NewHandler(service, authService)
	api.Exporter = core.NewSnapshotExporter(service, blobs)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/debug/vars", expvar.Handler())
	mux.Handle("/", api)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "db_driver", os.Getenv("JASPYNOTES_DB_DRIVER"))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return server.Shutdown(shutdownCtx)
}
