package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"finbot/internal/amqp"
	"finbot/internal/bot"
	"finbot/internal/cli"
	apphttp "finbot/internal/http"
	"finbot/internal/ledger"
	"finbot/internal/mercadopago"
	"finbot/internal/telegram"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	mpClient := mercadopago.NewClient(cfg.MPAccessToken)
	tgClient := telegram.NewClient(cfg.TelegramToken)

	// AMQP is optional: without a broker the admin alert pipeline is off
	// and ingestion simply skips publishing.
	var notices ledger.NoticePublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		notices = amqpClient
		logger.Info("AMQP publishing enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	svc := ledger.NewService(repo, mpClient, notices, cfg.KeepMonths, cfg.DedupeText)
	b := bot.New(svc, tgClient, cfg.ListPageSize)

	srv := apphttp.NewServer(":"+cfg.Port, svc, b)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	if cfg.WebhookURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := tgClient.SetWebhook(ctx, cfg.WebhookURL+"/telegram_webhook"); err != nil {
			logger.Error("Failed to register Telegram webhook", "error", err)
		} else {
			logger.Info("Telegram webhook registered", "url", cfg.WebhookURL+"/telegram_webhook")
		}
		cancel()
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})

	logger.Info("Starting finbot server", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
