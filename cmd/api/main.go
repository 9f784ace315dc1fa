package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/your-org/peoplecounter/internal/api"
	"github.com/your-org/peoplecounter/internal/api/handlers"
	"github.com/your-org/peoplecounter/internal/api/ws"
	"github.com/your-org/peoplecounter/internal/config"
	"github.com/your-org/peoplecounter/internal/guard"
	"github.com/your-org/peoplecounter/internal/ingest"
	"github.com/your-org/peoplecounter/internal/observability"
	"github.com/your-org/peoplecounter/internal/pipeline"
	"github.com/your-org/peoplecounter/internal/queue"
	"github.com/your-org/peoplecounter/internal/state"
	"github.com/your-org/peoplecounter/internal/storage"
	"github.com/your-org/peoplecounter/internal/tracking"
	"github.com/your-org/peoplecounter/pkg/dto"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults and PC_* env when empty)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting people counter",
		"port", cfg.Server.Port,
		"source", cfg.Source.Kind,
		"line_x", cfg.Counting.LineX,
		"confidence_threshold", cfg.Counting.ConfidenceThreshold,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := state.New(state.Options{
		HistoryCapacity: cfg.Aggregation.HistoryCapacity,
		LockTimeout:     cfg.Aggregation.LockTimeout,
	})
	settings := config.NewSettings(cfg)

	hub := ws.NewHub()
	go hub.Run(ctx)

	deps := map[string]handlers.Pinger{}
	opts := []pipeline.Option{
		pipeline.WithBroadcaster(hub),
		pipeline.WithSource(string(cfg.Source.Kind)),
	}

	// NATS is optional for the directory source: crossings are still
	// counted and served locally without it.
	var producer *queue.Producer
	var consumer *queue.Consumer
	var backlog handlers.Backlog
	if cfg.NATS.Enabled {
		producer, err = queue.NewProducer(cfg.NATS.URL)
		if err != nil {
			slog.Error("connect to nats", "error", err)
			os.Exit(1)
		}
		defer producer.Close()

		if err := producer.EnsureStreams(ctx); err != nil {
			slog.Warn("ensure nats streams", "error", err)
		}

		consumer, err = queue.NewConsumer(cfg.NATS.URL)
		if err != nil {
			slog.Error("create nats consumer", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()

		if _, err := consumer.SubscribeControl(func(msg dto.ControlMessage) {
			handleControl(ctx, st, settings, msg)
		}); err != nil {
			slog.Warn("subscribe to control", "error", err)
		}

		opts = append(opts, pipeline.WithPublisher(producer))
		backlog = producer
		deps["nats"] = handlers.PingFunc(func(context.Context) error { return producer.Ping() })
	}

	var source ingest.Source
	switch cfg.Source.Kind {
	case config.SourceDir:
		source = ingest.NewDirWatcher(cfg.Source.Dir, cfg.Source.ProcessedCap)
	case config.SourceMinIO:
		minioStore, err := storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			slog.Error("connect to minio", "error", err)
			os.Exit(1)
		}
		deps["minio"] = minioStore
		source = ingest.NewBucketPoller(minioStore, cfg.Source.Prefix, cfg.Source.PollInterval, cfg.Source.ProcessedCap)
	case config.SourceNATS:
		source = ingest.NewNATSSource(consumer, "counter", cfg.Source.ProcessedCap)
	}

	records := make(chan ingest.Record, cfg.Source.Buffer)
	go func() {
		defer close(records)
		if err := source.Run(ctx, records); err != nil {
			slog.Error("detection source stopped", "error", err)
		}
	}()

	counter := pipeline.New(tracking.NewTracker(), st, settings, cfg.Counting, opts...)
	go counter.Run(ctx, ingest.Events(ctx, records))

	go hub.PushSnapshots(ctx,
		func(ctx context.Context) (*dto.DataResponse, error) {
			snap, err := st.Snapshot(guard.WithFlow(ctx, "ws"))
			if err != nil {
				return nil, err
			}
			return handlers.NewDataResponse(snap, cfg.Counting.LineX), nil
		},
		func() time.Duration {
			return time.Duration(settings.Get().UpdateFrequencyMs) * time.Millisecond
		},
	)

	router := api.NewRouter(api.RouterConfig{
		State:    st,
		Settings: settings,
		LineX:    cfg.Counting.LineX,
		Source:   string(cfg.Source.Kind),
		Hub:      hub,
		Backlog:  backlog,
		Deps:     deps,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down people counter...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("people counter stopped")
}

// handleControl applies a command received on the control subject.
func handleControl(ctx context.Context, st *state.AggregationState, settings *config.Settings, msg dto.ControlMessage) {
	ctx = guard.WithFlow(ctx, "control")
	switch msg.Action {
	case "reset":
		if err := st.Reset(ctx); err != nil {
			slog.Error("control reset", "error", err)
			return
		}
		slog.Info("counts reset via control subject")
	case "settings":
		if msg.Settings == nil {
			slog.Warn("settings control message without settings")
			return
		}
		values, err := settings.Apply(config.SettingsUpdate{
			UpdateFrequencyMs:   msg.Settings.UpdateFrequency,
			ConfidenceThreshold: msg.Settings.ConfidenceThreshold,
		})
		if err != nil {
			slog.Warn("control settings rejected", "error", err)
			return
		}
		slog.Info("settings updated via control subject",
			"update_frequency_ms", values.UpdateFrequencyMs,
			"confidence_threshold", values.ConfidenceThreshold,
		)
	default:
		slog.Warn("unknown control action", "action", msg.Action)
	}
}
