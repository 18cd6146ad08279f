package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maxpert/mxbridge/api"
	"github.com/maxpert/mxbridge/bridge"
	"github.com/maxpert/mxbridge/cfg"
	"github.com/maxpert/mxbridge/encoding"
	"github.com/maxpert/mxbridge/engine"
	"github.com/maxpert/mxbridge/engine/lite"
	"github.com/maxpert/mxbridge/engine/matlab"
	"github.com/maxpert/mxbridge/journal"
	"github.com/maxpert/mxbridge/telemetry"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	flag.Parse()

	// Load configuration
	err := cfg.Load(*cfg.ConfigPathFlag)
	if err != nil {
		panic(err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid configuration: %v", err))
	}

	// Setup logging
	var writer io.Writer = zerolog.NewConsoleWriter()
	if cfg.Config.Logging.Format == "json" {
		writer = os.Stderr
	}
	gLog := zerolog.New(writer).
		With().
		Timestamp().
		Uint64("instance_id", cfg.Config.InstanceID).
		Logger()

	if cfg.Config.Logging.Verbose {
		log.Logger = gLog.Level(zerolog.DebugLevel)
	} else {
		log.Logger = gLog.Level(zerolog.InfoLevel)
	}

	eng, err := selectEngine(cfg.Config.Engine.Backend)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to select engine backend")
		return
	}

	// One-shot mode: evaluate, print, exit
	if *cfg.CommandFlag != "" {
		os.Exit(runOnce(eng, *cfg.CommandFlag, *cfg.ResultFlag))
	}

	log.Info().Str("backend", eng.Name()).Msg("mxbridge - numeric engine bridge")
	log.Debug().Msg("Initializing telemetry")
	telemetry.InitializeTelemetry()
	telemetry.InitMetrics()

	var store *journal.Store
	if cfg.Config.Journal.Enabled {
		store, err = journal.Open(
			cfg.GetJournalPath(),
			cfg.Config.Journal.BatchSize,
			time.Duration(cfg.Config.Journal.FlushIntervalMS)*time.Millisecond,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open evaluation journal")
			return
		}
		defer store.Close()
		log.Info().Str("path", cfg.GetJournalPath()).Msg("Evaluation journal opened")
	}

	opts, err := sessionOptions(store)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid engine settings")
		return
	}
	sessions := api.NewSessionManager(eng, cfg.Config.API.MaxSessions, opts...)

	if cfg.Config.Prometheus.Enabled {
		collector := telemetry.NewMetricsCollector(sessions, time.Duration(cfg.Config.Prometheus.CollectIntervalSeconds)*time.Second)
		collector.Start()
		defer collector.Stop()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Config.API.Enabled {
		srv, err := newHTTPServer(sessions, store)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to configure host API")
			return
		}
		go func() {
			log.Info().Str("addr", srv.Addr).Msg("Host API listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Host API server failed")
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("Host API shutdown failed")
			}
		}()
	}

	log.Info().
		Uint64("instance_id", cfg.Config.InstanceID).
		Str("data_dir", cfg.Config.DataDir).
		Msg("mxbridge started")

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sessions.CloseAll(closeCtx); err != nil {
		log.Warn().Err(err).Msg("Some sessions did not close cleanly")
	}
}

func selectEngine(backend string) (engine.Engine, error) {
	switch backend {
	case cfg.BackendLite:
		return lite.New(), nil
	case cfg.BackendMatlab:
		if !matlab.Available() {
			log.Warn().Str("library", matlab.LibraryName).Msg("Engine library not found on the library path")
		}
		return matlab.New(), nil
	}
	return nil, fmt.Errorf("unknown engine backend %q", backend)
}

// sessionOptions builds the per-session options from configuration.
// store may be nil.
func sessionOptions(store *journal.Store) ([]bridge.Option, error) {
	debug, err := cfg.ParseDebugFlag(cfg.Config.Engine.Debug)
	if err != nil {
		return nil, err
	}

	opts := []bridge.Option{
		bridge.WithDebug(debug),
		bridge.WithOutputCapacity(cfg.Config.Engine.OutputCapacity),
		bridge.WithCloseAfterEval(cfg.Config.Engine.CloseAfterEval),
		bridge.WithStartEngine(cfg.Config.Engine.StartEngine),
		bridge.WithCallTimeout(time.Duration(cfg.Config.Engine.CallTimeoutMS) * time.Millisecond),
	}
	if store != nil {
		opts = append(opts, bridge.WithJournal(store))
	}
	return opts, nil
}

func newHTTPServer(sessions *api.SessionManager, store *journal.Store) (*http.Server, error) {
	filter, err := api.NewVariableFilter(cfg.Config.API.VariablePatterns)
	if err != nil {
		return nil, err
	}

	var history api.History
	if store != nil {
		history = store
	}
	handlers := api.NewHandlers(sessions, filter, history, cfg.Config.Engine.StartCommand, cfg.Config.Journal.HistoryLimit)

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, handlers, cfg.Config.API.Secret, encoding.NewZstd(cfg.Config.API.CompressionLevel))
	if h := telemetry.GetMetricsHandler(); h != nil {
		mux.Handle("/metrics", h)
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Config.API.BindAddress, cfg.Config.API.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// runOnce opens a session, evaluates command and prints the result value
// followed by the console output. It returns the process exit code.
func runOnce(eng engine.Engine, command, result string) int {
	opts, err := sessionOptions(nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx := context.Background()
	s := bridge.NewSession(eng, opts...)
	defer s.Close(ctx)

	if err := s.Open(ctx, cfg.Config.Engine.StartCommand); err != nil {
		fmt.Fprintf(os.Stderr, "open: %v\n", err)
		return 1
	}

	v, err := s.Evaluate(ctx, command, result)
	if out := s.Output(); out != "" {
		fmt.Print(out)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "evaluate: %v\n", err)
		return 1
	}
	fmt.Printf("%s = %s\n", result, v)
	return 0
}
