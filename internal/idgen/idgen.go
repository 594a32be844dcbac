// Package idgen generates identifiers for audit events, risks and checklist items.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// Alphabet is the character set for short ids.
var Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Length is the number of random characters in a short id.
var Length = 10

// Short returns prefix followed by a random nanoid, e.g. "risk-k3j9x0a1bc".
func Short(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// MustShort is Short for call sites that cannot recover from an entropy failure.
func MustShort(prefix string) string {
	id, err := Short(prefix)
	if err != nil {
		panic(err)
	}
	return id
}

// Event returns a unique audit event id.
func Event() string {
	return "evt-" + uuid.NewString()
}

// Risk returns a new risk id.
func Risk() string { return MustShort("risk-") }

// Checklist returns a new checklist item id.
func Checklist() string { return MustShort("chk-") }
