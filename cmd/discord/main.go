// cmd/discord/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/keshon/lavalink/internal/config"
	"github.com/keshon/lavalink/internal/discord"
	"github.com/keshon/lavalink/internal/logger"
	"github.com/keshon/lavalink/internal/storage"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatal(err)
	}

	zlog := logger.New(cfg.LogLevel, cfg.LogPath)
	defer zlog.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.New(cfg.StoragePath, zlog)
	if err != nil {
		zlog.Fatal("failed to open storage", zap.Error(err))
	}
	defer store.Close()

	bot := discord.NewBot(cfg, store, zlog)

	errCh := make(chan error, 1)
	go func() {
		if err := bot.Run(ctx); err != nil {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		zlog.Info("received signal, shutting down", zap.String("signal", s.String()))
		cancel()
	case err := <-errCh:
		if err != nil {
			zlog.Error("bot exited with error", zap.Error(err))
		}
		cancel()
	}

	zlog.Info("bot exited cleanly")
}
