// Package storage provides the persistence layer for users and cards. The
// Postgres implementation backs production deployments; the in-memory
// implementation serves tests and local development.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"cardhall/internal/models"
	"cardhall/internal/pagination"
)

var (
	// ErrUserNotFound is returned when a lookup misses.
	ErrUserNotFound = errors.New("user not found")
	// ErrWrongPassword is returned when login credentials do not verify.
	ErrWrongPassword = errors.New("wrong password")
	// ErrEmailTaken is returned when registering a duplicate email.
	ErrEmailTaken = errors.New("email already registered")
)

// CreateUserParams carries the fields required to register an account.
// Email and Nickname are normalized before storage.
type CreateUserParams struct {
	Email    string
	Password string
	Nickname string
	Kind     models.UserKind
}

// CreateCardParams carries the fields required to mint a card for a user.
type CreateCardParams struct {
	OwnerID uuid.UUID
	Rating  float64
	OwnedAt time.Time
}

// Repository is the ordered range-query provider the API layer depends on.
// Implementations must be safe for concurrent use.
type Repository interface {
	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (models.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (models.User, error)

	CreateCard(ctx context.Context, params CreateCardParams) (models.Card, error)
	// ListCards executes the planned range scan for one owner: rows whose
	// sort key falls strictly inside (spec.Lower, spec.Upper), ordered per
	// spec.Descending, at most spec.FetchLimit() of them.
	ListCards(ctx context.Context, ownerID uuid.UUID, spec pagination.QuerySpec) ([]models.Card, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
