package server

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mutegate/pkg/api"
	"mutegate/pkg/auth"
	"mutegate/pkg/config"
	"mutegate/pkg/discord"
	"mutegate/pkg/logger"
)

// Main runs the gateway process. Startup order matters: credentials are
// settled (bootstrap or rotation) before anything listens, and the
// community is verified before the first request can arrive.
func Main() {
	configPath := flag.String("config", defaultConfigPath(), "Settings file path")
	password := flag.String("password", "", "Set (and hash) a new API password before serving")
	logLevel := flag.String("log-level", envOr("MUTEGATE_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", envOr("MUTEGATE_LOG_FORMAT", "text"), "Log format: text or json")
	flag.Parse()

	logger.Init(logger.LogLevel(*logLevel), *logFormat)
	log := logger.Get()

	log.InfoWith("gateway starting", "version", Version)

	hasher := auth.NewPasswordHasher()

	settings, err := config.Load(*configPath)
	if errors.Is(err, config.ErrSettingsNotFound) {
		if _, err := config.Bootstrap(*configPath, *password, hasher); err != nil {
			log.ErrorWithErr("failed to bootstrap settings", err)
			os.Exit(1)
		}
		log.InfoWith("settings file created, fill it out before starting the gateway",
			"path", *configPath)
		return
	}
	if err != nil {
		log.ErrorWithErr("failed to load settings", err, "path", *configPath)
		log.ErrorWith("fix the settings file or delete it to regenerate a template")
		os.Exit(1)
	}

	if *password != "" {
		if err := settings.Rotate(*configPath, *password, hasher); err != nil {
			log.ErrorWithErr("failed to rotate API password", err)
			os.Exit(1)
		}
		log.InfoWith("API password rotated and persisted")
	}

	log.InfoWith("settings loaded", "community", settings.CommunityID,
		"port", settings.Port, "legacy", settings.LegacyEnabled)

	client := discord.New(settings.BotToken, settings.CommunityID, log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := client.VerifyCommunity(ctx); err != nil {
		cancel()
		log.ErrorWithErr("community not found", err, "community", settings.CommunityID)
		os.Exit(1)
	}
	cancel()

	// Presence is cosmetic; a gateway failure must not keep commands from
	// being served.
	presence := discord.NewGateway(client, fmt.Sprintf("mutegate %s", Version),
		settings.AdvertiseURL, log)
	if err := presence.Start(context.Background()); err != nil {
		log.WarnWith("presence session unavailable", "error", err)
	}
	defer presence.Close()

	handler := api.NewHandler(settings, client, log, Version)
	router := api.NewRouter(handler)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", settings.Port),
		Handler: router,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	errorChan := make(chan error, 1)
	go func() {
		log.InfoWith("gateway endpoint is running", "port", settings.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.InfoWith("received signal", "signal", sig.String())
		log.InfoWith("shutting down gateway gracefully")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.ErrorWithErr("error during shutdown", err)
		}
		log.InfoWith("gateway stopped")

	case err := <-errorChan:
		log.ErrorWithErr("gateway encountered fatal error", err)
		os.Exit(1)
	}
}

// defaultConfigPath resolves the settings file location: the env override
// when set, otherwise config.json in the working directory.
func defaultConfigPath() string {
	return envOr("MUTEGATE_CONFIG", "config.json")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
