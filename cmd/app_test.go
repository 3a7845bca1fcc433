package cmd

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/facerec/internal/config"
	"github.com/kozaktomas/facerec/internal/store"
	"github.com/spf13/cobra"
)

func TestNewLogger_Level(t *testing.T) {
	tests := []struct {
		level string
		debug bool
		warn  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"ERROR", false, false},
		{"nonsense", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := newLogger(config.LogConfig{Level: tt.level, Format: "json"})
			ctx := context.Background()
			if got := logger.Enabled(ctx, slog.LevelDebug); got != tt.debug {
				t.Errorf("debug enabled = %v, want %v", got, tt.debug)
			}
			if got := logger.Enabled(ctx, slog.LevelWarn); got != tt.warn {
				t.Errorf("warn enabled = %v, want %v", got, tt.warn)
			}
		})
	}
}

func TestResolveServeHostPort(t *testing.T) {
	newCmd := func() *cobra.Command {
		c := &cobra.Command{Use: "serve"}
		c.Flags().Int("port", 8080, "")
		c.Flags().String("host", "0.0.0.0", "")
		return c
	}

	c := newCmd()
	port, host := resolveServeHostPort(c, 9000, "10.0.0.1")
	if port != 9000 || host != "10.0.0.1" {
		t.Errorf("unset flags must keep config values, got %s:%d", host, port)
	}

	c = newCmd()
	if err := c.Flags().Parse([]string{"--port", "7000", "--host", "127.0.0.1"}); err != nil {
		t.Fatal(err)
	}
	port, host = resolveServeHostPort(c, 9000, "10.0.0.1")
	if port != 7000 || host != "127.0.0.1" {
		t.Errorf("flags must override config, got %s:%d", host, port)
	}
}

func TestLoadConfig_FacesDirFlag(t *testing.T) {
	t.Setenv("FACES_DIR", "/from/env")
	c := &cobra.Command{Use: "faces"}
	c.Flags().String("faces-dir", "", "")

	if got := loadConfig(c).Faces.Dir; got != "/from/env" {
		t.Errorf("expected env dir, got %s", got)
	}

	if err := c.Flags().Parse([]string{"--faces-dir", "/from/flag"}); err != nil {
		t.Fatal(err)
	}
	if got := loadConfig(c).Faces.Dir; got != "/from/flag" {
		t.Errorf("expected flag dir, got %s", got)
	}
}

func TestLockFacesDir_RefusedWhileHeld(t *testing.T) {
	cfg := config.Load()
	cfg.Faces.Dir = filepath.Join(t.TempDir(), "faces")

	server := newApp(cfg, 0)
	held, err := server.lockFacesDir()
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}

	offline := newApp(cfg, 0)
	if _, err := offline.lockFacesDir(); !errors.Is(err, store.ErrLocked) {
		t.Fatalf("expected ErrLocked while the server holds the directory, got %v", err)
	}

	if err := held.Unlock(); err != nil {
		t.Fatal(err)
	}
	lock, err := offline.lockFacesDir()
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	lock.Unlock()
}
