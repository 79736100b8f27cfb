package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gridbox/tictactoe-match/internal/config"
	"github.com/gridbox/tictactoe-match/internal/match"
	"github.com/gridbox/tictactoe-match/internal/matchmaker"
	"github.com/gridbox/tictactoe-match/internal/notifier"
	"github.com/gridbox/tictactoe-match/internal/repository"
	"github.com/gridbox/tictactoe-match/internal/repository/storage"
	"github.com/gridbox/tictactoe-match/internal/stats"
	"github.com/gridbox/tictactoe-match/transport/rest"
	"github.com/gridbox/tictactoe-match/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.NewRedisStorage(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	sqliteStorage, err := storage.NewSQLiteStorage(conf.SQLiteStoragePath)
	if err != nil {
		return fmt.Errorf("could not open sqlite storage: %w", err)
	}

	defer func() {
		if err = sqliteStorage.Close(); err != nil {
			log.Error("could not close sqlite storage", "error", err)
		}
	}()

	if err = sqliteStorage.Init(ctx); err != nil {
		return fmt.Errorf("could not init sqlite storage: %w", err)
	}

	accountRepo := repository.NewAccountRepository(sqliteStorage.Connection)
	statsRepo := repository.NewStatsRepository(redisStorage.Connection)
	leaderboardRepo := repository.NewLeaderboardRepository(logger, redisStorage.Connection)

	if err = leaderboardRepo.Create(ctx, stats.LeaderboardID); err != nil {
		return fmt.Errorf("could not create leaderboard: %w", err)
	}

	accrual := stats.New(logger, leaderboardRepo, statsRepo, accountRepo)

	hub := websocket.NewHub(logger)
	registry := match.NewRegistry(ctx, logger, hub, accountRepo, accrual)

	notifications := notifier.NewRedisNotifier(logger, redisStorage.Connection)
	matchmaking := matchmaker.New(logger, registry, notifications)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		handlers := rest.NewHandlers(logger, registry, matchmaking, leaderboardRepo, statsRepo)
		if httpErr := rest.Start(conf.HTTPPort, handlers); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		wsServer := websocket.New(logger, hub, registry, matchmaking)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}
