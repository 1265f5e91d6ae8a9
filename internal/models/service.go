package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ServiceStatus describes the life-cycle state of a scheduled service job.
type ServiceStatus string

const (
	ServiceStatusPending    ServiceStatus = "PENDING"
	ServiceStatusInProgress ServiceStatus = "IN_PROGRESS"
	ServiceStatusCompleted  ServiceStatus = "COMPLETED"
	ServiceStatusClosed     ServiceStatus = "CLOSED"
	ServiceStatusCancelled  ServiceStatus = "CANCELLED"
)

// Terminal reports whether no further status transition is permitted.
func (s ServiceStatus) Terminal() bool {
	return s == ServiceStatusClosed || s == ServiceStatusCancelled
}

// Service is a schedulable unit of work assigned to a technician.
//
// A CLOSED service is locked: it carries exactly one Payment and one
// ServiceReport, and no code path may mutate it afterwards.
type Service struct {
	ID             uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	Title          string              `gorm:"not null" json:"title"`
	Description    string              `gorm:"type:text" json:"description"`
	Status         ServiceStatus       `gorm:"type:varchar(20);not null;index" json:"status"`
	ScheduledDate  time.Time           `gorm:"index" json:"scheduledDate"`
	ExpectedAmount decimal.NullDecimal `gorm:"type:decimal(18,2)" json:"expectedAmount"`
	IsLocked       bool                `gorm:"not null;default:false" json:"isLocked"`
	ClosedAt       *time.Time          `json:"closedAt"`
	ClosedByID     *uuid.UUID          `gorm:"type:uuid" json:"closedById"`
	CompletedAt    *time.Time          `json:"completedAt"`

	TechnicianID *uuid.UUID `gorm:"type:uuid;index" json:"technicianId"`
	Technician   *User      `gorm:"foreignKey:TechnicianID" json:"technician,omitempty"`
	ClientID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"clientId"`
	Client       *Client    `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	CategoryID   *uuid.UUID `gorm:"type:uuid" json:"categoryId"`
	Category     *Category  `gorm:"foreignKey:CategoryID" json:"category,omitempty"`

	Payment *Payment       `gorm:"foreignKey:ServiceID" json:"payment,omitempty"`
	Report  *ServiceReport `gorm:"foreignKey:ServiceID" json:"report,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate is a GORM hook that populates the primary key and default status.
func (s *Service) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Status == "" {
		s.Status = ServiceStatusPending
	}
	return nil
}

// Category groups services for reporting and filtering.
type Category struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
