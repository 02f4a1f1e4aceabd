package repository

import (
	"context"

	"github.com/oksasatya/go-user-service/internal/domain/entity"
)

// UserRepository defines the interface for user-related database operations.
// Finders return (nil, nil) when nothing matches. Create and Update reject a duplicate
// email with domain.EntityAlreadyExistsError; Update and Delete return
// domain.EntityNotFoundError when the id no longer exists, so a concurrent delete is never undone.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindAll(ctx context.Context, limit, offset int, status *entity.Status) ([]entity.User, error)
	Count(ctx context.Context, status *entity.Status) (int, error)
	Create(ctx context.Context, u entity.User) (entity.User, error)
	Update(ctx context.Context, u entity.User) (entity.User, error)
	Delete(ctx context.Context, id string) error
}
