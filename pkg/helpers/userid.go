package helpers

import (
	"strings"

	"github.com/google/uuid"
)

// UserIDLength is the length of the opaque identifiers assigned to users.
const UserIDLength = 15

// NewUserID produces a short opaque user identifier: a random UUID with the
// separators stripped, truncated to UserIDLength characters. Collisions are
// not checked against the store; the identifier carries UUID-grade entropy.
func NewUserID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:UserIDLength]
}
