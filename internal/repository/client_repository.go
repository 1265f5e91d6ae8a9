package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/example/fieldserv/backend/internal/models"
)

// ClientRepository provides persistence access for Client entities.
type ClientRepository struct {
	db *gorm.DB
}

// NewClientRepository constructs a repository using the provided gorm DB.
func NewClientRepository(db *gorm.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

// Create persists the client instance.
func (r *ClientRepository) Create(ctx context.Context, client *models.Client) error {
	return errors.WithStack(r.db.WithContext(ctx).Create(client).Error)
}

// FindByID returns the client by id.
func (r *ClientRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Client, error) {
	var client models.Client
	if err := r.db.WithContext(ctx).First(&client, "id = ?", id).Error; err != nil {
		return nil, errors.WithStack(err)
	}
	return &client, nil
}

// List returns clients ordered by name.
func (r *ClientRepository) List(ctx context.Context, limit int) ([]models.Client, error) {
	if limit <= 0 {
		limit = 100
	}
	var clients []models.Client
	err := r.db.WithContext(ctx).Order("name asc").Limit(limit).Find(&clients).Error
	return clients, errors.WithStack(err)
}
