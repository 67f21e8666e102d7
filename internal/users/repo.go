package users

import (
	"context"

	"filetrack-backend/internal/shared/apperr"
)

var ErrNotFound = apperr.NotFound("user")

// Repo persists user accounts. Usernames are unique regardless of case.
type Repo interface {
	Create(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	List(ctx context.Context, includeInactive bool) ([]User, error)
	Update(ctx context.Context, id int64, patch Patch) (User, error)
	Deactivate(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

func duplicateUsername(username string) error {
	return apperr.Invalid("username", "username "+username+" already exists")
}
