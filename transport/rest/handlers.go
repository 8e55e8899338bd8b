package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gianpietrodimatteo/tictactoe-backend/internal/apperror"
)

type playRequest struct {
	Index *int `json:"index"`
}

type jumpRequest struct {
	Step *int `json:"step"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (that *Server) createGame(w http.ResponseWriter, r *http.Request) {
	snapshot, err := that.games.NewGame(r.Context())
	if err != nil {
		that.writeError(w, "createGame", err)
		return
	}

	that.writeJSON(w, http.StatusCreated, snapshot)
}

func (that *Server) getGame(w http.ResponseWriter, r *http.Request) {
	snapshot, err := that.games.GetGame(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		that.writeError(w, "getGame", err)
		return
	}

	that.writeJSON(w, http.StatusOK, snapshot)
}

func (that *Server) deleteGame(w http.ResponseWriter, r *http.Request) {
	if err := that.games.DeleteGame(r.Context(), chi.URLParam(r, "id")); err != nil {
		that.writeError(w, "deleteGame", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (that *Server) play(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Index == nil {
		that.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "body must be {\"index\": <0..8>}"})
		return
	}

	snapshot, err := that.games.Play(r.Context(), chi.URLParam(r, "id"), *req.Index)
	if err != nil {
		that.writeError(w, "play", err)
		return
	}

	that.writeJSON(w, http.StatusOK, snapshot)
}

func (that *Server) jump(w http.ResponseWriter, r *http.Request) {
	var req jumpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Step == nil {
		that.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "body must be {\"step\": <n>}"})
		return
	}

	snapshot, err := that.games.JumpTo(r.Context(), chi.URLParam(r, "id"), *req.Step)
	if err != nil {
		that.writeError(w, "jump", err)
		return
	}

	that.writeJSON(w, http.StatusOK, snapshot)
}

func (that *Server) toggleReverse(w http.ResponseWriter, r *http.Request) {
	snapshot, err := that.games.ToggleReverse(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		that.writeError(w, "toggleReverse", err)
		return
	}

	that.writeJSON(w, http.StatusOK, snapshot)
}

func (that *Server) writeError(w http.ResponseWriter, method string, err error) {
	switch {
	case errors.Is(err, apperror.ErrGameNotFound):
		that.writeJSON(w, http.StatusNotFound, errorResponse{Error: apperror.ErrGameNotFound.Error()})
	case errors.Is(err, apperror.ErrStepOutOfRange):
		that.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		that.logger.Error("request failed", "method", method, "error", err)
		that.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal Server Error"})
	}
}

func (that *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Error("failed to write response", "error", err)
	}
}
