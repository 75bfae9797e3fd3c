package users

import (
	"context"

	"github.com/dmitrijs2005/accounts/internal/server/models"
)

// Repository persists user accounts. Lookups that find nothing return
// common.ErrorNotFound; email collisions return common.ErrConflict.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByEmailAndHash(ctx context.Context, email, passwordHash string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id int64) error
}
