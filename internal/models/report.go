package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ServiceReport is the technician's account of the completed work, written
// exactly once as part of closing the owning Service. The lock on the parent
// row keeps it immutable afterwards.
type ServiceReport struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ServiceID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"serviceId"`
	FinalReport string    `gorm:"type:text;not null" json:"finalReport"`

	Photos     []Photo     `gorm:"foreignKey:ReportID" json:"photos"`
	SpareParts []SparePart `gorm:"foreignKey:ReportID" json:"spareParts"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r *ServiceReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Photo is a piece of visual evidence attached to a ServiceReport.
// Order is the stable display position given by the technician.
type Photo struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID       uuid.UUID `gorm:"type:uuid;not null;index" json:"reportId"`
	URL            string    `gorm:"not null" json:"url"`
	TechnicalNotes string    `gorm:"type:text" json:"technicalNotes"`
	Order          int       `gorm:"column:display_order;not null" json:"order"`

	CreatedAt time.Time `json:"createdAt"`
}

func (p *Photo) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// SparePart is a billed line item on a ServiceReport. TotalPrice is always
// recomputed server-side as Quantity × UnitPrice, never trusted from input.
type SparePart struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"reportId"`
	Name       string          `gorm:"not null" json:"name"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"unitPrice"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"totalPrice"`
	Notes      string          `gorm:"type:text" json:"notes"`

	CreatedAt time.Time `json:"createdAt"`
}

func (p *SparePart) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
