package repository

import (
	"context"
	"errors"

	"cardroom/internal/domain/entity"
)

var (
	// ErrNotFound is returned when no user matches the lookup key.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when an insert violates the unique
	// constraint on email. Uniqueness is enforced by the store, not by the
	// application; a race between two signups resolves here.
	ErrDuplicateEmail = errors.New("email already exists")
)

// UserRepository defines the store operations the account flows rely on.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	Update(ctx context.Context, u *entity.User) error
}
