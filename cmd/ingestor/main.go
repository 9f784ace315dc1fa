package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/peoplecounter/internal/config"
	"github.com/your-org/peoplecounter/internal/ingest"
	"github.com/your-org/peoplecounter/internal/observability"
	"github.com/your-org/peoplecounter/internal/queue"
	"github.com/your-org/peoplecounter/internal/storage"
)

// The ingestor relays camera detection documents from a directory or a
// bucket onto the DETECTIONS stream, optionally archiving them to MinIO.
func main() {
	configPath := flag.String("config", "", "path to config file (defaults and PC_* env when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting detection ingestor", "source", cfg.Source.Kind)

	if cfg.Source.Kind == config.SourceNATS {
		slog.Error("ingestor needs a dir or minio source")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	var minioStore *storage.MinIOStore
	if cfg.Source.Kind == config.SourceMinIO || cfg.MinIO.Archive {
		minioStore, err = storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			slog.Error("connect to minio", "error", err)
			os.Exit(1)
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			slog.Warn("ensure minio bucket", "error", err)
		}
	}

	var source ingest.Source
	if cfg.Source.Kind == config.SourceMinIO {
		source = ingest.NewBucketPoller(minioStore, cfg.Source.Prefix, cfg.Source.PollInterval, cfg.Source.ProcessedCap)
	} else {
		source = ingest.NewDirWatcher(cfg.Source.Dir, cfg.Source.ProcessedCap)
	}

	records := make(chan ingest.Record, cfg.Source.Buffer)
	go func() {
		defer close(records)
		if err := source.Run(ctx, records); err != nil {
			slog.Error("detection source stopped", "error", err)
		}
	}()

	archive := cfg.MinIO.Archive && cfg.Source.Kind == config.SourceDir
	go func() {
		for rec := range records {
			msgID := filepath.Base(rec.Name)
			if err := producer.PublishDetection(ctx, string(cfg.Source.Kind), msgID, rec.Raw); err != nil {
				slog.Error("relay detection", "error", err, "name", msgID)
				continue
			}
			observability.FramesProcessed.WithLabelValues("relay").Inc()

			if archive {
				if _, err := minioStore.ArchiveDocument(ctx, cfg.Source.Prefix, msgID, rec.Raw); err != nil {
					slog.Warn("archive detection", "error", err, "name", msgID)
				}
			}
		}
	}()

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		slog.Info("ingestor metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down ingestor...")
	cancel()

	// Give the relay time to drain
	time.Sleep(500 * time.Millisecond)
	slog.Info("ingestor stopped")
}
