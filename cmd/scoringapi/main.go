// Command scoringapi serves the scoring JSON API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/R3E-Network/scoring_api/internal/api"
	"github.com/R3E-Network/scoring_api/internal/auth"
	"github.com/R3E-Network/scoring_api/internal/config"
	"github.com/R3E-Network/scoring_api/internal/httpapi"
	"github.com/R3E-Network/scoring_api/internal/logging"
	"github.com/R3E-Network/scoring_api/internal/scoring"
	"github.com/R3E-Network/scoring_api/internal/store"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "scoringapi:", err)
		os.Exit(1)
	}
}

type flags struct {
	configPath string
	envFile    string
	port       int
	logFile    string
	storeHost  string
	storePort  int
}

func parseFlags(args []string) (*flags, *pflag.FlagSet, error) {
	f := &flags{}
	fs := pflag.NewFlagSet("scoringapi", pflag.ContinueOnError)
	fs.StringVarP(&f.configPath, "config", "c", "", "path to a YAML config file")
	fs.StringVar(&f.envFile, "env-file", ".env", "path to a .env file (ignored if missing)")
	fs.IntVarP(&f.port, "port", "p", 0, "HTTP port")
	fs.StringVarP(&f.logFile, "log", "l", "", "write logs to this file instead of stdout")
	fs.StringVarP(&f.storeHost, "store-host", "H", "", "cache store host")
	fs.IntVarP(&f.storePort, "store-port", "P", 0, "cache store port")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return f, fs, nil
}

// apply overrides cfg with the flags the user actually set.
func (f *flags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("port") {
		cfg.HTTP.Port = f.port
	}
	if fs.Changed("log") {
		cfg.Log.File = f.logFile
	}
	if fs.Changed("store-host") {
		cfg.Store.Host = f.storeHost
	}
	if fs.Changed("store-port") {
		cfg.Store.Port = f.storePort
	}
}

func run(args []string) error {
	f, fs, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(f.configPath, f.envFile)
	if err != nil {
		return err
	}
	f.apply(fs, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New("scoringapi", cfg.Log.Level, cfg.Log.Format)
	if cfg.Log.File != "" {
		closer, err := logger.SetOutputFile(cfg.Log.File)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, st := build(ctx, cfg, logger)
	defer st.Close()

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("shutdown error")
	}
	logger.Info("server stopped")
	return nil
}

// build wires the server. ctx bounds background work such as rate limiter
// cleanup.
func build(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*http.Server, io.Closer) {
	st := store.New(store.RedisDialer(cfg.RedisSettings()), cfg.StoreOptions(logger))

	engine := scoring.New(st, cfg.Scoring.ScoreTTL)
	dispatcher := api.NewDispatcher(auth.New(cfg.AuthSettings(), nil), engine, api.Options{
		AdminScore: cfg.Scoring.AdminScore,
	})

	handler := httpapi.NewHandler(ctx, httpapi.Config{
		Dispatcher:     dispatcher,
		Health:         st,
		Logger:         logger,
		MaxBodyBytes:   cfg.HTTP.MaxBodyBytes,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RateLimit:      cfg.RateLimit.RPS,
		RateBurst:      cfg.RateLimit.Burst,
		RateIdle:       cfg.RateLimit.IdleTimeout,
	})

	return &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}, st
}
