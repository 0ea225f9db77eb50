package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/tubeqa/internal/api/handlers"
	"github.com/cloo-solutions/tubeqa/internal/cli"
	"github.com/cloo-solutions/tubeqa/internal/config"
	"github.com/cloo-solutions/tubeqa/internal/jobs"
	"github.com/cloo-solutions/tubeqa/internal/server"
	"github.com/cloo-solutions/tubeqa/internal/telemetry"
	"github.com/spf13/cobra"
)

// expiryPollInterval is how often the idle session check runs
const expiryPollInterval = time.Minute

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the tubeqa API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := cli.NewLogger(os.Stdout, true, cli.LevelFor(cfg.Debug, slog.LevelInfo))
	slog.SetDefault(logger)

	// Default to 10% sampling in production, 100% in development
	if cfg.SentryDSN != "" {
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}

		flush := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		}, logger)
		defer flush()
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if cmd.Flags().Changed("port") {
		cfg.Port = portFlag
	}

	chat, err := cli.BuildChatService(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var expiryWorker *jobs.Worker
	if cfg.SessionIdleTTL > 0 {
		processor := jobs.NewSessionExpiryProcessor(chat, cfg.SessionIdleTTL, logger)
		expiryWorker = jobs.NewWorker(processor, expiryPollInterval, logger)
		go expiryWorker.Start(ctx)
	}

	router := server.NewRouter(server.RouterConfig{
		SessionHandler: handlers.NewSessionHandler(chat),
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			slog.String("port", cfg.Port),
			slog.String("answer_mode", string(chat.Mode())),
			slog.String("transcript_source", cfg.TranscriptSource),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down...")

	if expiryWorker != nil {
		expiryWorker.Stop()
	}
	chat.Reset()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited")
	return nil
}
