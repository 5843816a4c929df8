package validation

import (
	"errors"
	"fmt"
)

// MaxIdentifierLength bounds flow node ids and variable names.
const MaxIdentifierLength = 255

// IsValidIdentifierChar checks if a character may appear in a flow node id
// (alphanumeric, hyphen, underscore or dot).
func IsValidIdentifierChar(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		(ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '_' || ch == '.'
}

func isValidIdentifierStart(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') ||
		(ch >= 'A' && ch <= 'Z') ||
		ch == '_'
}

// ValidateFlowNodeID returns an error describing why id is not a usable flow node id.
func ValidateFlowNodeID(id string) error {
	if id == "" {
		return errors.New("flow node id is empty")
	}
	if len(id) > MaxIdentifierLength {
		return fmt.Errorf("flow node id exceeds %d characters", MaxIdentifierLength)
	}
	for i, ch := range id {
		if i == 0 && !isValidIdentifierStart(ch) {
			return fmt.Errorf("flow node id %q must start with a letter or underscore", id)
		}
		if !IsValidIdentifierChar(ch) {
			return fmt.Errorf("flow node id %q contains invalid character %q", id, ch)
		}
	}
	return nil
}

// IsValidScopeKey reports whether key is a decimal element instance key.
func IsValidScopeKey(key string) bool {
	if key == "" || len(key) > 20 {
		return false
	}
	for _, ch := range key {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}
