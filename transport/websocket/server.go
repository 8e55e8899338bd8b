package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/gianpietrodimatteo/tictactoe-backend/internal/apperror"
	"github.com/gianpietrodimatteo/tictactoe-backend/internal/entity"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	shutdownTimeout = 5 * time.Second
	replyBuffer     = 8
)

type gameUseCase interface {
	GetGame(ctx context.Context, id string) (entity.Snapshot, error)
	Play(ctx context.Context, id string, index int) (entity.Snapshot, error)
	JumpTo(ctx context.Context, id string, step int) (entity.Snapshot, error)
	ToggleReverse(ctx context.Context, id string) (entity.Snapshot, error)
}

type subscriber interface {
	Subscribe(ctx context.Context, gameID string) (<-chan entity.Snapshot, func())
}

type handlerFunc func(ctx context.Context, gameID string, msg *Message) error

type Server struct {
	logger   *slog.Logger
	games    gameUseCase
	hub      subscriber
	upgrader websocket.Upgrader
	handlers map[string]handlerFunc
	router   chi.Router
}

func New(logger *slog.Logger, games gameUseCase, hub subscriber) *Server {
	server := &Server{
		logger: logger.With("component", "websocket"),
		games:  games,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the board may be served from another origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
		handlers: make(map[string]handlerFunc),
	}

	server.handlers[actionGamePlay] = server.handleGamePlay
	server.handlers[actionGameJump] = server.handleGameJump
	server.handlers[actionGameReverse] = server.handleGameReverse

	router := chi.NewRouter()
	router.Get("/ws/games/{id}", server.serveGame)
	server.router = router

	return server
}

func (that *Server) Handler() http.Handler {
	return that.router
}

// Start - starts WebSocket server and stops it when ctx is cancelled.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down WebSocket server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// serveGame - upgrades the connection and streams snapshots of one game until either side hangs up.
func (that *Server) serveGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "id")
	log := that.logger.With("method", "serveGame", "gameID", gameID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// subscribe before reading the game so no update is lost in between
	updates, unsubscribe := that.hub.Subscribe(ctx, gameID)
	defer unsubscribe()

	snapshot, err := that.games.GetGame(r.Context(), gameID)
	if errors.Is(err, apperror.ErrGameNotFound) {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error("failed to get game", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	log.Info("WebSocket connection established")

	replies := make(chan Message, replyBuffer)
	writerDone := make(chan struct{})

	go that.writeLoop(ctx, conn, snapshot, updates, replies, writerDone)

	that.readLoop(ctx, conn, gameID, replies, writerDone)

	cancel()
	<-writerDone

	log.Info("WebSocket connection closed")
}

// readLoop - processes client commands. Only writeLoop writes to conn.
func (that *Server) readLoop(
	ctx context.Context,
	conn *websocket.Conn,
	gameID string,
	replies chan<- Message,
	writerDone <-chan struct{},
) {
	log := that.logger.With("method", "readLoop", "gameID", gameID)

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	reply := func(msg Message) {
		select {
		case replies <- msg:
		case <-writerDone:
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("error reading message", "error", err)
			}
			return
		}

		var message Message
		if err = json.Unmarshal(data, &message); err != nil {
			log.Warn("failed to unmarshal message", "error", err)
			reply(errorMessage("", "malformed message"))
			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Warn("unknown action", "action", message.Action)
			reply(errorMessage(message.Action, "unknown action"))
			continue
		}

		if err = handler(ctx, gameID, &message); err != nil {
			log.Warn("error processing message", "action", message.Action, "error", err)
			reply(errorMessage(message.Action, clientError(err)))
		}
	}
}

func (that *Server) writeLoop(
	ctx context.Context,
	conn *websocket.Conn,
	initial entity.Snapshot,
	updates <-chan entity.Snapshot,
	replies <-chan Message,
	done chan<- struct{},
) {
	log := that.logger.With("method", "writeLoop", "gameID", initial.ID)

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(done)
	}()

	send := func(msg Message) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.Error("failed to send message", "error", err)
			_ = conn.Close()
			return false
		}
		return true
	}

	sendState := func(snapshot entity.Snapshot) bool {
		msg, err := stateMessage(snapshot)
		if err != nil {
			log.Error("failed to marshal snapshot", "error", err)
			return true
		}
		return send(msg)
	}

	if !sendState(initial) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return

		case snapshot, ok := <-updates:
			if !ok {
				// the game was deleted
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "game closed"),
					time.Now().Add(writeWait))
				_ = conn.Close()
				return
			}

			if !sendState(snapshot) {
				return
			}

		case msg := <-replies:
			if !send(msg) {
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn("failed to ping client", "error", err)
				_ = conn.Close()
				return
			}
		}
	}
}

func clientError(err error) string {
	switch {
	case errors.Is(err, apperror.ErrStepOutOfRange), errors.Is(err, errMissingArgument), errors.Is(err, errMalformedPayload):
		return err.Error()
	case errors.Is(err, apperror.ErrGameNotFound):
		return apperror.ErrGameNotFound.Error()
	default:
		return "Internal Server Error"
	}
}
