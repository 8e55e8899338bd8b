package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/gianpietrodimatteo/tictactoe-backend/internal/broadcast"
	"github.com/gianpietrodimatteo/tictactoe-backend/internal/config"
	"github.com/gianpietrodimatteo/tictactoe-backend/internal/repository"
	"github.com/gianpietrodimatteo/tictactoe-backend/internal/repository/storage"
	"github.com/gianpietrodimatteo/tictactoe-backend/internal/usecase"
	"github.com/gianpietrodimatteo/tictactoe-backend/transport/rest"
	"github.com/gianpietrodimatteo/tictactoe-backend/transport/websocket"
)

var (
	ErrAddrNotFound       = errors.New("redis address string is empty")
	ErrUnknownStorageType = errors.New("unknown storage driver")
)

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gameRepo, closeStorage, err := newGameRepository(ctx, conf)
	if err != nil {
		return err
	}

	defer func() {
		if err = closeStorage(); err != nil {
			log.Error("could not close storage", "error", err)
		}
	}()

	hub := broadcast.NewHub()
	gameUseCase := usecase.NewGameUseCase(logger, gameRepo, hub)

	errCh := make(chan error, 2)

	// run HTTP server
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.New(logger, gameUseCase).Start(ctx, conf.HTTPPort); httpErr != nil {
			errCh <- fmt.Errorf("HTTP server error: %w", httpErr)
			stop()
			return
		}
		errCh <- nil
	}()

	// run Websocket server
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		if wsErr := websocket.New(logger, gameUseCase, hub).Start(ctx, conf.SocketPort); wsErr != nil {
			errCh <- fmt.Errorf("WebSocket server error: %w", wsErr)
			stop()
			return
		}
		errCh <- nil
	}()

	<-ctx.Done()
	log.Info("Application context canceled, shutting down")

	var runErr error
	for i := 0; i < 2; i++ {
		if serverErr := <-errCh; serverErr != nil && runErr == nil {
			runErr = serverErr
		}
	}

	return runErr
}

func newGameRepository(ctx context.Context, conf *config.Config) (repository.GameRepository, func() error, error) {
	switch conf.Storage.Driver {
	case config.StorageMemory:
		return repository.NewMemoryGameRepository(conf.Storage.SessionTTL), func() error { return nil }, nil

	case config.StorageRedis:
		redisAddrString := conf.Redis.GetRedisAddr()
		if conf.Redis.Host == "" || conf.Redis.Port == "" {
			return nil, nil, ErrAddrNotFound
		}

		redisStorage, err := storage.New(ctx, redisAddrString)
		if err != nil {
			return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
		}

		return repository.NewGameRepository(redisStorage, conf.Storage.SessionTTL), redisStorage.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownStorageType, conf.Storage.Driver)
	}
}
