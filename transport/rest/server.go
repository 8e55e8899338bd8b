package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/gianpietrodimatteo/tictactoe-backend/internal/entity"
)

const shutdownTimeout = 5 * time.Second

type gameUseCase interface {
	NewGame(ctx context.Context) (entity.Snapshot, error)
	GetGame(ctx context.Context, id string) (entity.Snapshot, error)
	DeleteGame(ctx context.Context, id string) error

	Play(ctx context.Context, id string, index int) (entity.Snapshot, error)
	JumpTo(ctx context.Context, id string, step int) (entity.Snapshot, error)
	ToggleReverse(ctx context.Context, id string) (entity.Snapshot, error)
}

type Server struct {
	logger *slog.Logger
	games  gameUseCase
	router chi.Router
}

func New(logger *slog.Logger, games gameUseCase) *Server {
	server := &Server{
		logger: logger.With("component", "rest"),
		games:  games,
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/ping", pingHandler)
	router.Post("/games", server.createGame)
	router.Route("/games/{id}", func(r chi.Router) {
		r.Get("/", server.getGame)
		r.Delete("/", server.deleteGame)
		r.Post("/play", server.play)
		r.Post("/jump", server.jump)
		r.Post("/reverse", server.toggleReverse)
	})

	server.router = router

	return server
}

func (that *Server) Handler() http.Handler {
	return that.router
}

// Start - serves the API until ctx is cancelled, then shuts down gracefully.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down HTTP server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
