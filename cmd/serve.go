package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/facerec/internal/roster"
	"github.com/kozaktomas/facerec/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the face recognition web server.

On startup every picture in the faces directory is encoded to rebuild the
catalog. Pictures without exactly one face are skipped and reported; an
unreachable embedding server aborts the start.

The server locks the faces directory while it runs; "faces add" and
"faces remove" refuse to run until it stops.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to (overrides WEB_HOST)")
}

// resolveServeHostPort applies --port and --host when given on the command line.
func resolveServeHostPort(cmd *cobra.Command, port int, host string) (int, string) {
	if cmd.Flags().Changed("port") {
		port = mustGetInt(cmd, "port")
	}
	if cmd.Flags().Changed("host") {
		host = mustGetString(cmd, "host")
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	cfg.Web.Port, cfg.Web.Host = resolveServeHostPort(cmd, cfg.Web.Port, cfg.Web.Host)

	a := newApp(cfg, 0)
	lock, err := a.lockFacesDir()
	if err != nil {
		return err
	}
	defer lock.Unlock()

	rosters, err := roster.NewClient(cfg.Roster.URL, cfg.Roster.Timeout)
	if err != nil {
		return err
	}
	if captureDir != "" {
		if err := rosters.SetCaptureDir(captureDir); err != nil {
			return fmt.Errorf("setting capture dir: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := a.manager.Bootstrap(ctx, nil)
	if err != nil {
		return fmt.Errorf("loading stored faces: %w", err)
	}
	a.logger.Info("catalog ready",
		"faces", len(report.Loaded),
		"skipped", len(report.Skipped),
		"duration", report.Duration.Round(time.Millisecond))

	server := web.NewServer(cfg, a.manager, rosters, a.logger)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("error during shutdown", "error", err)
		}
	}()

	fmt.Printf("Starting facerec on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
