package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/fieldserv/backend/internal/models"
	"github.com/example/fieldserv/backend/internal/mq"
	"github.com/example/fieldserv/backend/internal/repository"
)

// Errors returned by the non-closure mutation paths. A locked service is
// write-protected everywhere, not only against a second closure.
var (
	ErrServiceLocked      = errors.New("service is locked and can no longer be modified")
	ErrInvalidTransition  = errors.New("status transition not permitted")
	ErrClientNotFound     = errors.New("client not found")
	ErrTechnicianNotFound = errors.New("technician not found")
)

// ScheduleService covers the administrative and technician mutations that
// happen before a service reaches the closure orchestrator.
type ScheduleService struct {
	db       *gorm.DB
	services *repository.ServiceRepository
	clients  *repository.ClientRepository
	users    *repository.UserRepository
	mq       mq.Publisher
}

// NewScheduleService builds a service with dependencies.
func NewScheduleService(db *gorm.DB, services *repository.ServiceRepository, clients *repository.ClientRepository, users *repository.UserRepository, publisher mq.Publisher) *ScheduleService {
	return &ScheduleService{db: db, services: services, clients: clients, users: users, mq: publisher}
}

// CreateServiceInput is the validated request to schedule a new service.
type CreateServiceInput struct {
	Title          string
	Description    string
	ScheduledDate  time.Time
	ClientID       uuid.UUID
	CategoryID     *uuid.UUID
	TechnicianID   *uuid.UUID
	ExpectedAmount *decimal.Decimal
}

// CreateService schedules a new PENDING service for a client.
func (s *ScheduleService) CreateService(ctx context.Context, in CreateServiceInput) (*models.Service, error) {
	if _, err := s.clients.FindByID(ctx, in.ClientID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	if in.TechnicianID != nil {
		if err := s.requireTechnician(ctx, *in.TechnicianID); err != nil {
			return nil, err
		}
	}
	if in.ExpectedAmount != nil && !in.ExpectedAmount.IsPositive() {
		return nil, errors.New("expected amount must be positive")
	}

	svc := &models.Service{
		Title:         in.Title,
		Description:   in.Description,
		Status:        models.ServiceStatusPending,
		ScheduledDate: in.ScheduledDate,
		ClientID:      in.ClientID,
		CategoryID:    in.CategoryID,
		TechnicianID:  in.TechnicianID,
	}
	if in.ExpectedAmount != nil {
		svc.ExpectedAmount = decimal.NewNullDecimal(*in.ExpectedAmount)
	}
	if err := s.services.Create(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

// SetExpectedAmount defines or corrects the amount the technician is expected
// to collect. Blocked once the service is locked.
func (s *ScheduleService) SetExpectedAmount(ctx context.Context, serviceID uuid.UUID, amount decimal.Decimal) (*models.Service, error) {
	if !amount.IsPositive() {
		return nil, errors.New("expected amount must be positive")
	}
	return s.mutate(ctx, serviceID, func(svc *models.Service) error {
		svc.ExpectedAmount = decimal.NewNullDecimal(amount)
		return nil
	})
}

// AssignTechnician assigns or reassigns the technician responsible for the
// service and publishes a service.assigned event.
func (s *ScheduleService) AssignTechnician(ctx context.Context, serviceID, technicianID uuid.UUID) (*models.Service, error) {
	if err := s.requireTechnician(ctx, technicianID); err != nil {
		return nil, err
	}
	svc, err := s.mutate(ctx, serviceID, func(svc *models.Service) error {
		if svc.Status.Terminal() {
			return ErrInvalidTransition
		}
		svc.TechnicianID = &technicianID
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.mq != nil {
		if err := s.mq.Publish(ctx, "service.assigned", map[string]any{
			"event":        "service.assigned",
			"serviceId":    svc.ID.String(),
			"technicianId": technicianID.String(),
			"occurredAt":   time.Now().UTC().Format(time.RFC3339),
		}); err != nil {
			log.Printf("publish service.assigned failed: %v", err)
		}
	}
	return svc, nil
}

// Start moves a PENDING service to IN_PROGRESS. Only the assigned technician
// may start it.
func (s *ScheduleService) Start(ctx context.Context, serviceID, technicianID uuid.UUID) (*models.Service, error) {
	return s.mutate(ctx, serviceID, func(svc *models.Service) error {
		if svc.TechnicianID == nil || *svc.TechnicianID != technicianID {
			return ErrNotAssignedTechnician
		}
		if svc.Status != models.ServiceStatusPending {
			return ErrInvalidTransition
		}
		svc.Status = models.ServiceStatusInProgress
		return nil
	})
}

// Complete moves an IN_PROGRESS service to COMPLETED, recording when the field
// work finished. Closure with the financial settlement happens separately.
func (s *ScheduleService) Complete(ctx context.Context, serviceID, technicianID uuid.UUID) (*models.Service, error) {
	return s.mutate(ctx, serviceID, func(svc *models.Service) error {
		if svc.TechnicianID == nil || *svc.TechnicianID != technicianID {
			return ErrNotAssignedTechnician
		}
		if svc.Status != models.ServiceStatusInProgress {
			return ErrInvalidTransition
		}
		now := time.Now().UTC()
		svc.Status = models.ServiceStatusCompleted
		svc.CompletedAt = &now
		return nil
	})
}

// Cancel terminates a service that will not be performed.
func (s *ScheduleService) Cancel(ctx context.Context, serviceID uuid.UUID) (*models.Service, error) {
	return s.mutate(ctx, serviceID, func(svc *models.Service) error {
		if svc.Status.Terminal() {
			return ErrInvalidTransition
		}
		svc.Status = models.ServiceStatusCancelled
		return nil
	})
}

// mutate loads the service inside a transaction, refuses locked rows, applies
// fn and saves. Every non-closure write path funnels through here so the lock
// check cannot be forgotten.
func (s *ScheduleService) mutate(ctx context.Context, serviceID uuid.UUID, fn func(*models.Service) error) (*models.Service, error) {
	var out *models.Service
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.services.WithTx(tx)
		svc, err := repo.FindByID(ctx, serviceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrServiceNotFound
			}
			return err
		}
		if svc.IsLocked {
			return ErrServiceLocked
		}
		if err := fn(svc); err != nil {
			return err
		}
		if err := repo.Update(ctx, svc); err != nil {
			return err
		}
		out = svc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ScheduleService) requireTechnician(ctx context.Context, id uuid.UUID) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTechnicianNotFound
		}
		return err
	}
	if user.Role != models.RoleTechnician || !user.Active {
		return ErrTechnicianNotFound
	}
	return nil
}
