package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/example/fieldserv/backend/internal/models"
)

// ServiceRepository provides persistence access for Service entities and the
// Payment/ServiceReport records owned by them.
type ServiceRepository struct {
	db *gorm.DB
}

// NewServiceRepository constructs a repository using the provided gorm DB.
func NewServiceRepository(db *gorm.DB) *ServiceRepository {
	return &ServiceRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction so
// callers can group several writes into one atomic unit.
func (r *ServiceRepository) WithTx(tx *gorm.DB) *ServiceRepository {
	return &ServiceRepository{db: tx}
}

// Create persists the service instance.
func (r *ServiceRepository) Create(ctx context.Context, svc *models.Service) error {
	return errors.WithStack(r.db.WithContext(ctx).Create(svc).Error)
}

// Update persists the modified service.
func (r *ServiceRepository) Update(ctx context.Context, svc *models.Service) error {
	return errors.WithStack(r.db.WithContext(ctx).Save(svc).Error)
}

// FindByID returns the service by id.
func (r *ServiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	var svc models.Service
	if err := r.db.WithContext(ctx).First(&svc, "id = ?", id).Error; err != nil {
		return nil, errors.WithStack(err)
	}
	return &svc, nil
}

// FindWithClosureState returns the service together with its current payment
// and report. The closure orchestrator calls this on a repository bound to the
// closing transaction so it never acts on a stale read.
func (r *ServiceRepository) FindWithClosureState(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	var svc models.Service
	err := r.db.WithContext(ctx).
		Preload("Payment").
		Preload("Report").
		First(&svc, "id = ?", id).Error
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &svc, nil
}

// FindWithRelations returns the service with its client, category and assigned
// technician (id, name and email only) for rendering the closure form.
func (r *ServiceRepository) FindWithRelations(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	var svc models.Service
	err := r.db.WithContext(ctx).
		Preload("Client").
		Preload("Category").
		Preload("Technician", func(db *gorm.DB) *gorm.DB {
			return db.Select("id", "name", "email")
		}).
		First(&svc, "id = ?", id).Error
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &svc, nil
}

// List returns services filtered by optional status, newest scheduled first.
func (r *ServiceRepository) List(ctx context.Context, status models.ServiceStatus, limit int) ([]models.Service, error) {
	if limit <= 0 {
		limit = 50
	}
	q := r.db.WithContext(ctx).Order("scheduled_date desc").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var services []models.Service
	err := q.Find(&services).Error
	return services, errors.WithStack(err)
}

// ListByTechnician returns the technician's agenda, optionally restricted to
// the day containing `day`.
func (r *ServiceRepository) ListByTechnician(ctx context.Context, technicianID uuid.UUID, day *time.Time) ([]models.Service, error) {
	q := r.db.WithContext(ctx).
		Preload("Client").
		Where("technician_id = ?", technicianID).
		Order("scheduled_date asc")
	if day != nil {
		start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
		q = q.Where("scheduled_date >= ? AND scheduled_date < ?", start, start.AddDate(0, 0, 1))
	}
	var services []models.Service
	err := q.Find(&services).Error
	return services, errors.WithStack(err)
}

// CreateReport persists a service report together with its nested photos and
// spare parts.
func (r *ServiceRepository) CreateReport(ctx context.Context, report *models.ServiceReport) error {
	return errors.WithStack(r.db.WithContext(ctx).Create(report).Error)
}

// CreatePayment persists the settlement record for a service.
func (r *ServiceRepository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return errors.WithStack(r.db.WithContext(ctx).Create(payment).Error)
}

// MarkClosed performs the guarded terminal transition. The WHERE clause only
// matches a row that is not yet closed and not locked, so when two closure
// attempts race, exactly one sees RowsAffected == 1 and the other reports
// closed == false.
func (r *ServiceRepository) MarkClosed(ctx context.Context, id, technicianID uuid.UUID, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Service{}).
		Where("id = ? AND status <> ? AND is_locked = ?", id, models.ServiceStatusClosed, false).
		Updates(map[string]any{
			"status":       models.ServiceStatusClosed,
			"is_locked":    true,
			"closed_at":    now,
			"closed_by_id": technicianID,
			"completed_at": now,
		})
	if res.Error != nil {
		return false, errors.WithStack(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ListDebts returns payments still carrying debt that were created before the
// cutoff, for the reminder worker.
func (r *ServiceRepository) ListDebts(ctx context.Context, createdBefore time.Time, limit int) ([]models.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("has_debt = ? AND created_at < ?", true, createdBefore).
		Order("created_at asc").
		Limit(limit).
		Find(&payments).Error
	return payments, errors.WithStack(err)
}
