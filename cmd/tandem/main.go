package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calebfife/tandem/internal/database"
	"github.com/calebfife/tandem/internal/email"
	"github.com/calebfife/tandem/internal/logging"
	"github.com/calebfife/tandem/internal/push"
	"github.com/calebfife/tandem/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("TANDEM_LOG_LEVEL"), os.Getenv("TANDEM_LOG_FORMAT"))

	port := os.Getenv("TANDEM_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("TANDEM_DB_PATH")
	if dbPath == "" {
		dbPath = "tandem.db"
	}

	baseURL := os.Getenv("TANDEM_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:" + port
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	emailClient := email.NewClient(
		os.Getenv("TANDEM_POSTMARK_TOKEN"),
		os.Getenv("TANDEM_FROM_EMAIL"),
		baseURL,
	)
	if !emailClient.Configured() {
		logger.Warn("email delivery disabled: TANDEM_POSTMARK_TOKEN not set")
	}

	reminderInterval := time.Minute
	if v := os.Getenv("TANDEM_REMINDER_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			logger.Error("invalid TANDEM_REMINDER_INTERVAL", "value", v, "error", err)
			os.Exit(1)
		}
		reminderInterval = d
	}

	cfg := server.Config{
		WebhookSecret:    os.Getenv("TANDEM_WEBHOOK_SECRET"),
		JobSecret:        os.Getenv("TANDEM_JOB_SECRET"),
		ReminderInterval: reminderInterval,
		Push: push.Config{
			VAPIDPublicKey:  os.Getenv("TANDEM_VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: os.Getenv("TANDEM_VAPID_PRIVATE_KEY"),
		},
	}

	srv := server.New(db, emailClient, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv.Scheduler().Start(ctx)
	defer srv.Scheduler().Stop()

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("tandem listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
