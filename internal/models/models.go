package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserKind distinguishes privileged operators from regular accounts.
type UserKind string

const (
	// UserKindSuper grants access to every owned resource and to
	// administrative mutations such as card grants.
	UserKindSuper UserKind = "super"
	// UserKindNormal is the default kind assigned at registration.
	UserKindNormal UserKind = "normal"
)

// ParseUserKind converts a stored or transported kind string into a UserKind.
func ParseUserKind(value string) (UserKind, error) {
	switch UserKind(strings.ToLower(strings.TrimSpace(value))) {
	case UserKindSuper:
		return UserKindSuper, nil
	case UserKindNormal, "":
		return UserKindNormal, nil
	default:
		return "", fmt.Errorf("unknown user kind %q", value)
	}
}

// MarshalJSON emits the canonical lowercase kind name.
func (k UserKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(k))
}

// UnmarshalJSON accepts any casing of the two kind names.
func (k *UserKind) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind, err := ParseUserKind(raw)
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// User is a catalog account. PasswordHash never leaves the storage layer.
type User struct {
	ID           uuid.UUID `json:"id"`
	Kind         UserKind  `json:"kind"`
	Email        string    `json:"email"`
	Nickname     string    `json:"nickname"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Card is a collectible owned by at most one user. OwnerID is nil while the
// card sits unowned in the catalog.
type Card struct {
	ID        uuid.UUID  `json:"id"`
	Rating    float64    `json:"rating"`
	OwnedAt   time.Time  `json:"ownedAt"`
	CreatedAt time.Time  `json:"createdAt"`
	OwnerID   *uuid.UUID `json:"ownerId,omitempty"`
}
