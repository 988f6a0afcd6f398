package entity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Identity names an entity's event log: the kind of entity and its instance id.
type Identity struct {
	Kind string
	ID   uuid.UUID
}

// NewIdentity returns the identity for an instance of kind.
func NewIdentity(kind string, id uuid.UUID) Identity {
	return Identity{Kind: kind, ID: id}
}

// String renders the persistence id used as the journal key: "<kind>-<uuid>".
func (i Identity) String() string {
	return i.Kind + "-" + i.ID.String()
}

// IsZero reports whether i is the zero Identity.
func (i Identity) IsZero() bool {
	return i.Kind == "" && i.ID == uuid.Nil
}

// ParseIdentity is the inverse of Identity.String.
func ParseIdentity(s string) (Identity, error) {
	// A hyphenated UUID is always 36 characters.
	const uuidLen = 36
	if len(s) < uuidLen+2 || s[len(s)-uuidLen-1] != '-' {
		return Identity{}, fmt.Errorf("parse identity %q: expected <kind>-<uuid>", s)
	}
	kind := s[:len(s)-uuidLen-1]
	if strings.TrimSpace(kind) == "" {
		return Identity{}, fmt.Errorf("parse identity %q: empty kind", s)
	}
	id, err := uuid.Parse(s[len(s)-uuidLen:])
	if err != nil {
		return Identity{}, fmt.Errorf("parse identity %q: %w", s, err)
	}
	return Identity{Kind: kind, ID: id}, nil
}
