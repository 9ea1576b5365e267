package entity

import (
	"time"
)

// StartingChips is the chip balance every new account opens with.
const StartingChips int64 = 5000

// User is the aggregate root for the account domain.
// ID is assigned by the application once at creation and never changes.
// PasswordHash holds a bcrypt hash; the plaintext is never persisted or logged.
type User struct {
	ID             string
	Name           string
	Email          string
	PasswordHash   string
	ProfilePicture string
	Chips          int64
	CreatedAt      time.Time
}
