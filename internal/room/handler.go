package room

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fokashive/fokashive/internal/auth"
	"github.com/fokashive/fokashive/internal/broadcast"
)

// Handler exposes the room registry over HTTP. Reads are open to any
// authenticated user; the WebSocket gateway carries the command traffic.
type Handler struct {
	app      *App
	verifier auth.Verifier
	tokens   *broadcast.TokenIssuer
}

// NewHandler creates the HTTP handler.
func NewHandler(app *App, verifier auth.Verifier, tokens *broadcast.TokenIssuer) *Handler {
	return &Handler{app: app, verifier: verifier, tokens: tokens}
}

// Register mounts the API routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/rooms", h.handleCreateRoom)
	mux.HandleFunc("GET /api/rooms", h.handleListRooms)
	mux.HandleFunc("GET /api/rooms/{id}", h.handleGetRoom)
	mux.HandleFunc("POST /api/rooms/{id}/join", h.handleJoinRoom)
	mux.HandleFunc("GET /api/auth/realtime-token", h.handleRealtimeToken)
}

func (h *Handler) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromRequest(r, h.verifier)
	if err != nil {
		writeError(w, err)
		return
	}

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &ValidationError{Message: "invalid request body"})
		return
	}

	view, err := h.app.Create(r.Context(), identity, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) handleListRooms(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.IdentityFromRequest(r, h.verifier); err != nil {
		writeError(w, err)
		return
	}

	views, err := h.app.ListActive(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.IdentityFromRequest(r, h.verifier); err != nil {
		writeError(w, err)
		return
	}

	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, &ValidationError{Field: "id", Message: "invalid room id"})
		return
	}

	view, err := h.app.Get(r.Context(), roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleJoinRoom attaches the caller to the room without a transport session.
// The live session binds later over the WebSocket join, which reuses the same
// membership entry.
func (h *Handler) handleJoinRoom(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromRequest(r, h.verifier)
	if err != nil {
		writeError(w, err)
		return
	}

	roomID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, &ValidationError{Field: "id", Message: "invalid room id"})
		return
	}

	view, err := h.app.Join(r.Context(), roomID, identity, "")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleRealtimeToken(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromRequest(r, h.verifier)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := h.tokens.GenerateClientToken(identity.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Message, Field: verr.Field})
	case errors.Is(err, auth.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	case errors.Is(err, ErrNotHost):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, ErrRoomNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, ErrRoomNameTaken):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		log.Error().Err(err).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
