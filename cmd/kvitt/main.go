package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"kvitt/internal/backend"
	"kvitt/internal/cli"
	"kvitt/internal/gateway"
	apphttp "kvitt/internal/http"
	klog "kvitt/internal/log"
	"kvitt/internal/session"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(klog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger.Logger)

	ctx := context.Background()
	storage, err := factory.CreateSessionStorage(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize session storage", "error", err, "backend", backendCfg.SessionBackend)
		os.Exit(1)
	}
	defer storage.Close()

	broker, err := factory.CreateBroker(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	managerCfg := session.ManagerConfig{
		Gateway: gateway.Config{
			BaseURL:   cfg.APIURL,
			Timeout:   cfg.APITimeout,
			Transport: http.DefaultTransport,
			UserAgent: "kvitt-web",
		},
		Storage:     storage,
		MaxSessions: cfg.MaxSessions,
		TTL:         cfg.SessionTTL,
		AccountType: cfg.AccountType,
	}
	if broker != nil {
		defer broker.Close()
		managerCfg.Publisher = broker
	}
	sessions, err := session.NewManager(managerCfg)
	if err != nil {
		logger.Error("Failed to create session manager", "error", err)
		os.Exit(1)
	}

	checks := map[string]apphttp.Check{}
	if p, ok := storage.(interface{ Ping(context.Context) error }); ok {
		checks["session_storage"] = p.Ping
	}

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:            ":" + cfg.Port,
		Sessions:        sessions,
		CookieName:      cfg.SessionCookieName,
		CookieMaxAge:    cfg.SessionTTL,
		SecureCookies:   cfg.SecureCookies,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Checks:          checks,
		Logger:          logger,
	})
	if err != nil {
		logger.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	runCtx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	})
	go sessions.Run(runCtx, cfg.SweepInterval)

	logger.Info("Starting kvitt server",
		"port", cfg.Port,
		"api_url", cfg.APIURL,
		"session_backend", backendCfg.SessionBackend,
		"notifications", broker != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.Info("Server stopped gracefully")
}
