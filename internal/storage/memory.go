package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cardhall/internal/models"
	"cardhall/internal/pagination"
)

// MemoryRepository keeps catalog state in-memory. It mirrors the Postgres
// implementation's range-scan semantics and is intended for tests and local
// development.
type MemoryRepository struct {
	mu           sync.RWMutex
	users        map[uuid.UUID]models.User
	usersByEmail map[string]uuid.UUID
	cards        []models.Card
	now          func() time.Time
}

// NewMemoryRepository constructs an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:        make(map[uuid.UUID]models.User),
		usersByEmail: make(map[string]uuid.UUID),
		now:          time.Now,
	}
}

// CreateUser registers an account with a hashed password and normalized
// identifiers.
func (r *MemoryRepository) CreateUser(_ context.Context, params CreateUserParams) (models.User, error) {
	email, err := NormalizeEmail(params.Email)
	if err != nil {
		return models.User{}, err
	}
	nickname, err := NormalizeNickname(params.Nickname)
	if err != nil {
		return models.User{}, err
	}
	hash, err := HashPassword(params.Password)
	if err != nil {
		return models.User{}, err
	}
	kind := params.Kind
	if kind == "" {
		kind = models.UserKindNormal
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.usersByEmail[email]; taken {
		return models.User{}, ErrEmailTaken
	}
	user := models.User{
		ID:           uuid.New(),
		Kind:         kind,
		Email:        email,
		Nickname:     nickname,
		PasswordHash: hash,
		CreatedAt:    r.now().UTC(),
	}
	r.users[user.ID] = user
	r.usersByEmail[email] = user.ID
	return user, nil
}

// GetUser fetches a user by identifier.
func (r *MemoryRepository) GetUser(_ context.Context, id uuid.UUID) (models.User, error) {
	r.mu.RLock()
	user, ok := r.users[id]
	r.mu.RUnlock()
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return user, nil
}

// AuthenticateUser verifies credentials and returns the matching user.
func (r *MemoryRepository) AuthenticateUser(_ context.Context, email, password string) (models.User, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return models.User{}, err
	}
	r.mu.RLock()
	id, ok := r.usersByEmail[normalized]
	user := r.users[id]
	r.mu.RUnlock()
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return models.User{}, err
	}
	return user, nil
}

// CreateCard mints a card owned by the provided user.
func (r *MemoryRepository) CreateCard(_ context.Context, params CreateCardParams) (models.Card, error) {
	ownedAt := params.OwnedAt
	if ownedAt.IsZero() {
		ownedAt = r.now()
	}
	ownerID := params.OwnerID
	card := models.Card{
		ID:     uuid.New(),
		Rating: params.Rating,
		// Microsecond precision, same as timestamptz, so an edge cursor
		// decodes back to exactly this instant.
		OwnedAt:   ownedAt.UTC().Truncate(time.Microsecond),
		CreatedAt: r.now().UTC(),
		OwnerID:   &ownerID,
	}
	r.mu.Lock()
	r.cards = append(r.cards, card)
	r.mu.Unlock()
	return card, nil
}

// ListCards executes the planned range scan: rows whose key falls strictly
// inside the bounds, ordered per spec.Descending with the card identifier as
// tie-break, capped at spec.FetchLimit().
func (r *MemoryRepository) ListCards(_ context.Context, ownerID uuid.UUID, spec pagination.QuerySpec) ([]models.Card, error) {
	r.mu.RLock()
	var matched []models.Card
	for _, card := range r.cards {
		if card.OwnerID == nil || *card.OwnerID != ownerID {
			continue
		}
		if inRange(card, spec) {
			matched = append(matched, card)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return cardLess(matched[i], matched[j], spec.Kind)
	})
	if spec.Descending {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}
	if len(matched) > spec.FetchLimit() {
		matched = matched[:spec.FetchLimit()]
	}
	return matched, nil
}

// Ping always reports success for the in-memory repository.
func (r *MemoryRepository) Ping(context.Context) error {
	return nil
}

// Close is a no-op for the in-memory repository.
func (r *MemoryRepository) Close(context.Context) error {
	return nil
}

func inRange(card models.Card, spec pagination.QuerySpec) bool {
	if spec.Kind == pagination.KindRating {
		return card.Rating > spec.Lower.Rating && card.Rating < spec.Upper.Rating
	}
	return card.OwnedAt.After(spec.Lower.OwnedAt) && card.OwnedAt.Before(spec.Upper.OwnedAt)
}

func cardLess(a, b models.Card, kind pagination.Kind) bool {
	if kind == pagination.KindRating {
		if a.Rating != b.Rating {
			return a.Rating < b.Rating
		}
	} else if !a.OwnedAt.Equal(b.OwnedAt) {
		return a.OwnedAt.Before(b.OwnedAt)
	}
	return strings.Compare(a.ID.String(), b.ID.String()) < 0
}
