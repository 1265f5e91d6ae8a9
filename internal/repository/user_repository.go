package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/example/fieldserv/backend/internal/models"
)

// UserRepository provides persistence access for User entities.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a repository using the provided gorm DB.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create persists the user instance.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	return errors.WithStack(r.db.WithContext(ctx).Create(user).Error)
}

// FindByID returns the user by id.
func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, errors.WithStack(err)
	}
	return &user, nil
}

// FindByEmail returns the user with the given email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, errors.WithStack(err)
	}
	return &user, nil
}
