// Package rooms implements the room addressing scheme.
//
// Rooms are pure names: a personal room per user for notification-style
// events, and a conversation room per unordered pair of users for direct
// messages. Names are stable across restarts so reconnecting clients
// always resolve to the same room.
package rooms

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/Ph4tZ4/social-main/internal/domain"
)

const (
	personalPrefix     = "user_"
	conversationPrefix = "chat_"
)

// Personal returns the personal room name for a user.
func Personal(userID string) (string, error) {
	if err := validateID(userID); err != nil {
		return "", err
	}
	return personalPrefix + userID, nil
}

// Conversation returns the canonical conversation room name for a pair of
// users. The mapping is commutative: Conversation(a, b) == Conversation(b, a).
// A user cannot open a conversation with themself; a == b is refused.
func Conversation(a, b string) (string, error) {
	if err := validateID(a); err != nil {
		return "", err
	}
	if err := validateID(b); err != nil {
		return "", err
	}
	if a == b {
		return "", fmt.Errorf("conversation with self (%q): %w", a, domain.ErrInvalidIdentifier)
	}
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	return conversationPrefix + lo + "_" + hi, nil
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("empty user id: %w", domain.ErrInvalidIdentifier)
	}
	if strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return fmt.Errorf("user id %q contains whitespace: %w", id, domain.ErrInvalidIdentifier)
	}
	// Underscore is the separator in room names; an id containing one would
	// let two distinct pairs collide on the same conversation room.
	if strings.ContainsRune(id, '_') {
		return fmt.Errorf("user id %q contains underscore: %w", id, domain.ErrInvalidIdentifier)
	}
	return nil
}
