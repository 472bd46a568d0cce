package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"cardhall/internal/auth"
	"cardhall/internal/models"
	"cardhall/internal/pagination"
	"cardhall/internal/storage"
)

type userResponse struct {
	ID        string          `json:"id"`
	Kind      models.UserKind `json:"kind"`
	Nickname  string          `json:"nickname"`
	CreatedAt time.Time       `json:"createdAt"`
}

func newUserResponse(user models.User) userResponse {
	return userResponse{
		ID:        user.ID.String(),
		Kind:      user.Kind,
		Nickname:  user.Nickname,
		CreatedAt: user.CreatedAt,
	}
}

// UserByID routes /api/users/{id}, /api/users/{id}/email and
// /api/users/{id}/cards.
func (h *Handler) UserByID(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.TrimPrefix(r.URL.Path, "/api/users/")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, errors.New("user id required"))
		return
	}
	userID, err := uuid.Parse(parts[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid user id %q", parts[0]))
		return
	}

	switch {
	case len(parts) == 1:
		h.getUser(w, r, userID)
	case len(parts) == 2 && parts[1] == "email":
		h.getUserEmail(w, r, userID)
	case len(parts) == 2 && parts[1] == "cards":
		switch r.Method {
		case http.MethodGet:
			h.listUserCards(w, r, userID)
		case http.MethodPost:
			h.grantUserCard(w, r, userID)
		default:
			w.Header().Set("Allow", "GET, POST")
			writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		}
	default:
		writeError(w, http.StatusNotFound, errors.New("unknown user resource"))
	}
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	user, err := h.Store.GetUser(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

// getUserEmail serves the ownership-gated email field. Denial is a distinct
// not-authorized signal, and it does not reveal whether the account exists.
func (h *Handler) getUserEmail(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}
	session := sessionRef(r.Context())
	user, err := h.Store.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// Only privileged callers learn that the account is missing.
			if session != nil && session.Kind == models.UserKindSuper {
				writeError(w, http.StatusNotFound, err)
				return
			}
			writeError(w, http.StatusForbidden, auth.ErrNotAuthorized)
			return
		}
		h.writeDomainError(w, err)
		return
	}
	if !auth.Authorize(session, user.ID) {
		writeError(w, http.StatusForbidden, auth.ErrNotAuthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"email": user.Email})
}

func (h *Handler) listUserCards(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	args, err := parsePageArgs(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	spec, err := pagination.Plan("cards", args)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if _, err := h.Store.GetUser(r.Context(), userID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	rows, err := h.Store.ListCards(r.Context(), userID, spec)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	connection, err := pagination.BuildConnection(spec, rows)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, connection)
}

type grantCardRequest struct {
	Rating  float64    `json:"rating"`
	OwnedAt *time.Time `json:"ownedAt,omitempty"`
}

// grantUserCard mints a card for the target user. Privileged accounts only.
func (h *Handler) grantUserCard(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	session := sessionRef(r.Context())
	if session == nil {
		writeError(w, http.StatusUnauthorized, errors.New("authentication required"))
		return
	}
	if session.Kind != models.UserKindSuper {
		writeError(w, http.StatusForbidden, auth.ErrNotAuthorized)
		return
	}
	var req grantCardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := h.Store.GetUser(r.Context(), userID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	params := storage.CreateCardParams{OwnerID: userID, Rating: req.Rating}
	if req.OwnedAt != nil {
		params.OwnedAt = *req.OwnedAt
	}
	card, err := h.Store.CreateCard(r.Context(), params)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, card)
}

// parsePageArgs reads after/before/first/last from the query string. Counts
// may be any integer; clamping happens during planning.
func parsePageArgs(query url.Values) (pagination.PageArgs, error) {
	var args pagination.PageArgs
	if raw := query.Get("after"); raw != "" {
		cursor, err := pagination.Decode(raw)
		if err != nil {
			return pagination.PageArgs{}, err
		}
		args.After = &cursor
	}
	if raw := query.Get("before"); raw != "" {
		cursor, err := pagination.Decode(raw)
		if err != nil {
			return pagination.PageArgs{}, err
		}
		args.Before = &cursor
	}
	if raw := query.Get("first"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return pagination.PageArgs{}, fmt.Errorf("invalid first %q", raw)
		}
		args.First = &value
	}
	if raw := query.Get("last"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return pagination.PageArgs{}, fmt.Errorf("invalid last %q", raw)
		}
		args.Last = &value
	}
	return args, nil
}
