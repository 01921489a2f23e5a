package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/mbaig/relay/internal/broker"
	"github.com/mbaig/relay/internal/config"
	"github.com/mbaig/relay/internal/handler"
	relayhandler "github.com/mbaig/relay/internal/handler/relay"
	"github.com/mbaig/relay/internal/service/conversation"
	"github.com/mbaig/relay/internal/service/presence"
	relayservice "github.com/mbaig/relay/internal/service/relay"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file, using system environment only")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	bridge := broker.NewRedis(logger, &redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer bridge.Close()

	gateway := relayhandler.NewHandler(logger, cfg.Gateway)
	orchestrator := relayservice.New(logger, gateway,
		presence.NewRegistry(), conversation.NewStore(), bridge)
	gateway.Attach(orchestrator)

	if err := orchestrator.Start(ctx); err != nil {
		logger.Error("failed to subscribe to broker", "err", err)
		os.Exit(1)
	}

	router := handler.NewRouter(gateway, bridge)
	startServer(ctx, logger, cfg.Server, router)
}

func startServer(ctx context.Context, logger *slog.Logger, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("relay listening", "addr", srv.Addr)
	if err := runServer(ctx, srv); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
