package service

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/example/fieldserv/backend/internal/models"
)

// Rule errors returned by the closure validator. The HTTP layer maps these to
// transport status codes; the messages are what technicians see.
var (
	ErrServiceNotFound       = errors.New("service not found")
	ErrNotAssignedTechnician = errors.New("service is assigned to a different technician")
	ErrAlreadyClosed         = errors.New("service is already closed")
	ErrMissingExpectedAmount = errors.New("expected amount is not set; an administrator must define it before closure")
	ErrInvalidLineItem       = errors.New("spare part line items require a positive quantity and a non-negative unit price")
)

// validateClosure applies the closure rules to a freshly-read service. It is
// the single source of those rules: CanCloseService and the orchestrator's
// in-transaction check both call it, so the advisory read and the terminal
// write can never disagree on what is permitted.
func validateClosure(svc *models.Service, technicianID uuid.UUID) error {
	if svc == nil {
		return ErrServiceNotFound
	}
	if err := validateAssignment(svc, technicianID); err != nil {
		return err
	}
	if svc.Status == models.ServiceStatusClosed || svc.IsLocked {
		return ErrAlreadyClosed
	}
	return validateExpectedAmount(svc)
}

func validateAssignment(svc *models.Service, technicianID uuid.UUID) error {
	if svc.TechnicianID == nil || *svc.TechnicianID != technicianID {
		return ErrNotAssignedTechnician
	}
	return nil
}

func validateExpectedAmount(svc *models.Service) error {
	if !svc.ExpectedAmount.Valid || !svc.ExpectedAmount.Decimal.IsPositive() {
		return ErrMissingExpectedAmount
	}
	return nil
}

// IsClosureRuleError reports whether err is one of the expected rule
// violations, as opposed to a storage fault.
func IsClosureRuleError(err error) bool {
	for _, rule := range []error{
		ErrServiceNotFound,
		ErrNotAssignedTechnician,
		ErrAlreadyClosed,
		ErrMissingExpectedAmount,
		ErrInvalidLineItem,
	} {
		if errors.Is(err, rule) {
			return true
		}
	}
	return false
}
