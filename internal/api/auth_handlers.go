package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"cardhall/internal/storage"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Register creates an account and opens a session for it.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	user, err := h.Store.CreateUser(r.Context(), storage.CreateUserParams{
		Email:    req.Email,
		Password: req.Password,
		Nickname: req.Nickname,
	})
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}

	token, expiresAt, err := h.Sessions.Create(r.Context(), user)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	setSessionCookie(w, token, expiresAt)
	writeJSON(w, http.StatusCreated, authResponse{ID: user.ID.String(), ExpiresAt: expiresAt})
}

// Login verifies credentials and opens a session. A wrong password is
// reported as such and issues no session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	user, err := h.Store.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrWrongPassword):
			writeError(w, http.StatusUnauthorized, storage.ErrWrongPassword)
		case errors.Is(err, storage.ErrUserNotFound):
			writeError(w, http.StatusUnauthorized, storage.ErrUserNotFound)
		default:
			h.writeDomainError(w, err)
		}
		return
	}

	token, expiresAt, err := h.Sessions.Create(r.Context(), user)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	setSessionCookie(w, token, expiresAt)
	writeJSON(w, http.StatusOK, authResponse{ID: user.ID.String(), ExpiresAt: expiresAt})
}

// Session reports the caller's resolved session, or 401 for anonymous
// requests.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("no active session"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"userId": session.UserID.String(),
		"kind":   string(session.Kind),
	})
}
