package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cardhall/internal/auth"
	"cardhall/internal/pagination"
	"cardhall/internal/storage"
)

// Handler bundles the API dependencies: the catalog repository and the
// session manager. Both are injected once at process start.
type Handler struct {
	Store    storage.Repository
	Sessions *auth.SessionManager
	Logger   *slog.Logger
}

// NewHandler constructs a Handler. A nil session manager falls back to an
// in-memory one for local development.
func NewHandler(store storage.Repository, sessions *auth.SessionManager) *Handler {
	if sessions == nil {
		sessions = auth.NewSessionManager(auth.DefaultSessionTTL)
	}
	return &Handler{Store: store, Sessions: sessions, Logger: slog.Default()}
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// writeDomainError maps repository and pagination failures onto HTTP
// statuses. Client-caused validation problems surface with their detail;
// infrastructure failures are logged and reported opaquely.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var reqErr *pagination.RequestError
	var decodeErr *pagination.DecodeError
	switch {
	case errors.As(err, &reqErr), errors.As(err, &decodeErr):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, auth.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, auth.ErrNotAuthorized)
	case errors.Is(err, storage.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, storage.ErrWrongPassword):
		writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, storage.ErrEmailTaken):
		writeError(w, http.StatusConflict, err)
	default:
		h.logger().Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

// APIVersion identifies the wire contract served by this process.
const APIVersion = "0.1"

// Version reports the API version.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"version": APIVersion})
}

// Health reports liveness of the store and the session cache.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, 2*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "component": "store"})
		return
	}
	if err := h.Sessions.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "component": "sessions"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
