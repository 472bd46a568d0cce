package auth

import (
	"errors"

	"github.com/google/uuid"

	"cardhall/internal/models"
)

// ErrNotAuthorized signals an authorization denial. Handlers surface it
// distinctly from a missing value so callers can tell a hidden field from an
// absent one.
var ErrNotAuthorized = errors.New("not authorized")

// Authorize reports whether the session may access a resource owned by
// ownerID. Owners and super accounts pass; anonymous callers and other
// non-privileged users are denied.
func Authorize(session *Session, ownerID uuid.UUID) bool {
	if session == nil {
		return false
	}
	return session.UserID == ownerID || session.Kind == models.UserKindSuper
}
