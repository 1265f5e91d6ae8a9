package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentMethod enumerates how a technician collected the settlement.
type PaymentMethod string

const (
	PaymentMethodCash     PaymentMethod = "CASH"
	PaymentMethodTransfer PaymentMethod = "TRANSFER"
	PaymentMethodCard     PaymentMethod = "CARD"
	PaymentMethodOther    PaymentMethod = "OTHER"
)

// Valid reports whether m is one of the known methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodTransfer, PaymentMethodCard, PaymentMethodOther:
		return true
	}
	return false
}

// Payment is the financial settlement for a closed Service, 1:1 with it.
// DebtAmount and HasDebt are derived by the closure calculator:
// debt = max(0, expectedAmount − amountPaid), hasDebt = debt > 0.
type Payment struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ServiceID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"serviceId"`
	Method         PaymentMethod   `gorm:"type:varchar(20);not null" json:"method"`
	AmountPaid     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"amountPaid"`
	SparePartsCost decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"sparePartsCost"`
	DebtAmount     decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"debtAmount"`
	HasDebt        bool            `gorm:"not null;index" json:"hasDebt"`
	Notes          string          `gorm:"type:text" json:"notes"`

	TechnicianID uuid.UUID `gorm:"type:uuid;not null" json:"technicianId"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
