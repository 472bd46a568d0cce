package storage

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/secure/precis"
)

// NormalizeEmail canonicalizes a login identifier so lookups are
// case-insensitive and confusable-free.
func NormalizeEmail(email string) (string, error) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return "", errors.New("email is required")
	}
	normalized, err := precis.UsernameCaseMapped.String(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid email %q: %w", email, err)
	}
	return normalized, nil
}

// NormalizeNickname canonicalizes a display name, collapsing whitespace and
// rejecting empty or disallowed input.
func NormalizeNickname(nickname string) (string, error) {
	trimmed := strings.TrimSpace(nickname)
	if trimmed == "" {
		return "", errors.New("nickname is required")
	}
	normalized, err := precis.Nickname.String(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid nickname %q: %w", nickname, err)
	}
	return normalized, nil
}
