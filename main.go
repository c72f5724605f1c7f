package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jrong1271/scrum-planning-poker/internal/config"
	"github.com/jrong1271/scrum-planning-poker/internal/handlers"
	"github.com/jrong1271/scrum-planning-poker/internal/models"
	"github.com/jrong1271/scrum-planning-poker/internal/security"
	"github.com/jrong1271/scrum-planning-poker/internal/services"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := newLogger(cfg.Debug)
	defer func() { _ = logger.Sync() }()

	metrics := services.NewMetrics()
	rooms := services.NewRoomManager(logger, metrics)
	hub := services.NewHub(logger, metrics)

	wsHandler := handlers.NewWSHandler(hub, rooms, security.NewOriginValidator(cfg.AllowedOrigins), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	// Janitor: reconcile participants whose connection dropped without a
	// leave-room, and the rooms they empty out.
	g.Go(func() error {
		ticker := time.NewTicker(config.PruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				for _, snap := range rooms.PruneDisconnected(config.MaxDisconnectedAge) {
					hub.BroadcastToRoom(snap.RoomID, models.NewRoomDataMessage(snap))
				}
			}
		}
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: handlers.SetupRoutes(wsHandler, metrics),
	}

	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownGracePeriod)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func newLogger(debug bool) *zap.Logger {
	if debug {
		logger, err := zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		return logger
	}
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return logger
}
