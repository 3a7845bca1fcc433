package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kozaktomas/facerec/internal/catalog"
	"github.com/kozaktomas/facerec/internal/config"
	"github.com/kozaktomas/facerec/internal/embedding"
	"github.com/kozaktomas/facerec/internal/facematch"
	"github.com/kozaktomas/facerec/internal/store"
	"github.com/spf13/cobra"
)

// app is the set of collaborators shared by all commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *store.Store
	manager *catalog.Manager
}

// loadConfig reads the environment and applies persistent flag overrides.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg := config.Load()
	if dir, err := cmd.Flags().GetString("faces-dir"); err == nil && dir != "" {
		cfg.Faces.Dir = dir
	}
	return cfg
}

// newLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// newApp wires store, embedding client and manager around an empty catalog.
func newApp(cfg *config.Config, tolerance float64) *app {
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	if tolerance <= 0 {
		tolerance = cfg.Match.Tolerance
	}

	st := store.New(cfg.Faces.Dir)
	extractor := embedding.NewClient(cfg.Embedding.URL, embedding.ClientOptions{
		Timeout:      cfg.Embedding.Timeout,
		RPS:          cfg.Embedding.RPS,
		MaxImageSize: cfg.Embedding.MaxImageSize,
	})
	manager := catalog.NewManager(catalog.New(), st, extractor, facematch.NewEngine(tolerance), catalog.ManagerOptions{
		BootstrapConcurrency: cfg.Faces.BootstrapConcurrency,
		Logger:               logger,
	})

	return &app{cfg: cfg, logger: logger, store: st, manager: manager}
}

// lockFacesDir creates the faces directory if needed and takes its exclusive
// lock, so only one process changes it at a time.
func (a *app) lockFacesDir() (*store.DirLock, error) {
	if err := a.store.EnsureDir(); err != nil {
		return nil, fmt.Errorf("preparing faces directory: %w", err)
	}
	lock, err := a.store.Lock()
	if errors.Is(err, store.ErrLocked) {
		return nil, fmt.Errorf("%w; stop the running server or use its /faces endpoint", err)
	}
	return lock, err
}
