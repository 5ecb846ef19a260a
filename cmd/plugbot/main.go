package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"plugbot/internal/analytics"
	"plugbot/internal/bot"
	"plugbot/internal/config"
	"plugbot/internal/dispatcher"
	"plugbot/internal/modules/antispam"
	"plugbot/internal/modules/audit"
	"plugbot/internal/modules/automod"
	"plugbot/internal/mute"
	"plugbot/internal/platform"
	"plugbot/internal/settings"
	"plugbot/internal/storage"
	"plugbot/internal/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.DatabasePath)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	settingsService := settings.New(store, logger)

	session, err := bot.NewSession(cfg)
	if err != nil {
		logger.Fatal("session init failed", zap.Error(err))
	}
	client := platform.NewDiscordClient(session)

	auditSink := audit.NewSink(store, settingsService, client, logger)
	muteManager := mute.New(client, settingsService, auditSink, logger)
	warnForgiveAfter := time.Duration(cfg.Warnings.ForgiveAfterDays) * 24 * time.Hour
	d := dispatcher.New(client, settingsService, store, muteManager, auditSink, cfg.DashboardURL, warnForgiveAfter, logger)

	spamModule := antispam.New(antispam.Config{
		Messages:   cfg.Spam.Messages,
		Window:     time.Duration(cfg.Spam.WindowMillis) * time.Millisecond,
		WarningTTL: time.Duration(cfg.Spam.WarnTTLSeconds) * time.Second,
	}, client, auditSink, logger)
	filterModule := automod.New(cfg.Automod.DefaultBannedWords,
		time.Duration(cfg.Spam.WarnTTLSeconds)*time.Second, client, auditSink, logger)

	botSvc := bot.New(cfg, logger, session, client, settingsService, d, spamModule, filterModule)
	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started")

	var server *http.Server
	if cfg.HTTP.Enabled {
		webServer := web.NewServer(cfg, logger, settingsService, client, d, analytics.New(store))
		server = &http.Server{Addr: cfg.HTTP.Addr, Handler: webServer.Router()}
		go func() {
			logger.Info("dashboard api listening", zap.String("addr", cfg.HTTP.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server error", zap.Error(err))
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(ctx)
	}
	botSvc.Close(ctx)
}
