package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/fieldserv/backend/internal/models"
	"github.com/example/fieldserv/backend/internal/mq"
	"github.com/example/fieldserv/backend/internal/repository"
)

// PhotoInput is one piece of photo evidence supplied with a closure request.
type PhotoInput struct {
	URL            string `json:"url"`
	TechnicalNotes string `json:"technicalNotes"`
	Order          int    `json:"order"`
}

// CloseServiceInput is the validated request to close a service. The
// technician id is the authenticated principal, never taken from the body.
type CloseServiceInput struct {
	ServiceID     uuid.UUID
	TechnicianID  uuid.UUID
	FinalReport   string
	Photos        []PhotoInput
	SpareParts    []SparePartInput
	PaymentMethod models.PaymentMethod
	AmountPaid    decimal.Decimal
	Notes         string
}

// CloseServiceResult is what every closure attempt produces. Failures are
// carried as values; no fault escapes the orchestrator.
type CloseServiceResult struct {
	Success   bool       `json:"success"`
	ServiceID uuid.UUID  `json:"serviceId"`
	ReportID  *uuid.UUID `json:"reportId,omitempty"`
	PaymentID *uuid.UUID `json:"paymentId,omitempty"`
	Error     string     `json:"error,omitempty"`

	// Err is the underlying rule or storage error, kept for callers that map
	// failure categories to transport status codes. Not serialized.
	Err error `json:"-"`
}

// ClosureService owns the transition of a Service to its terminal, locked,
// financially-reconciled CLOSED state.
type ClosureService struct {
	db       *gorm.DB
	services *repository.ServiceRepository
	mq       mq.Publisher
}

// NewClosureService builds the service with its dependencies.
func NewClosureService(db *gorm.DB, services *repository.ServiceRepository, publisher mq.Publisher) *ClosureService {
	return &ClosureService{db: db, services: services, mq: publisher}
}

// CloseService atomically creates the service report (with photos and spare
// parts), the payment, and the terminal service update. All three writes
// commit together or not at all. Validation runs against a read taken inside
// the same transaction, so an earlier CanCloseService answer is advisory only.
func (s *ClosureService) CloseService(ctx context.Context, in CloseServiceInput) CloseServiceResult {
	result := CloseServiceResult{ServiceID: in.ServiceID}

	if err := validateCloseInput(in); err != nil {
		result.Err = err
		result.Error = err.Error()
		return result
	}

	var (
		reportID  uuid.UUID
		paymentID uuid.UUID
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.services.WithTx(tx)

		// The guarded terminal update is the transaction's first statement:
		// a concurrent attempt queues on it and, once the winner commits,
		// matches zero rows. Reading first would pin an older snapshot and
		// turn the loser's guard into a lock error instead of a clean
		// zero-row miss.
		closed, err := repo.MarkClosed(ctx, in.ServiceID, in.TechnicianID, time.Now().UTC())
		if err != nil {
			return err
		}

		svc, err := repo.FindWithClosureState(ctx, in.ServiceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrServiceNotFound
			}
			return err
		}

		if !closed {
			// The guard refused, so the row still carries whatever state
			// made it refuse; the validator names the violated rule.
			if err := validateClosure(svc, in.TechnicianID); err != nil {
				return err
			}
			return ErrAlreadyClosed
		}

		// The read reflects our own terminal update, so the closed check is
		// skipped here; the remaining rules run against columns the update
		// did not touch and roll it back when they fail.
		if err := validateAssignment(svc, in.TechnicianID); err != nil {
			return err
		}
		if err := validateExpectedAmount(svc); err != nil {
			return err
		}

		totals, err := computeClosureTotals(in.SpareParts, svc.ExpectedAmount.Decimal, in.AmountPaid)
		if err != nil {
			return err
		}

		report := buildReport(in)
		if err := repo.CreateReport(ctx, report); err != nil {
			return err
		}

		payment := &models.Payment{
			ServiceID:      in.ServiceID,
			Method:         in.PaymentMethod,
			AmountPaid:     in.AmountPaid,
			SparePartsCost: totals.SparePartsCost,
			DebtAmount:     totals.DebtAmount,
			HasDebt:        totals.HasDebt,
			Notes:          in.Notes,
			TechnicianID:   in.TechnicianID,
		}
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return err
		}

		reportID = report.ID
		paymentID = payment.ID
		return nil
	})
	if err != nil {
		result.Err = err
		result.Error = failureMessage(err)
		return result
	}

	result.Success = true
	result.ReportID = &reportID
	result.PaymentID = &paymentID

	if err := s.publishEvent(ctx, "service.closed", map[string]any{
		"serviceId":  in.ServiceID.String(),
		"reportId":   reportID.String(),
		"paymentId":  paymentID.String(),
		"closedBy":   in.TechnicianID.String(),
		"occurredAt": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		log.Printf("publish service.closed failed: %v", err)
	}
	return result
}

// CanCloseService runs the same rule set the orchestrator enforces and returns
// a boolean plus a human-readable reason for UI gating. A later CloseService
// call re-validates inside its own transaction regardless of this answer.
func (s *ClosureService) CanCloseService(ctx context.Context, serviceID, technicianID uuid.UUID) (bool, string, error) {
	svc, err := s.services.FindWithClosureState(ctx, serviceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrServiceNotFound.Error(), nil
		}
		return false, "", err
	}
	if err := validateClosure(svc, technicianID); err != nil {
		return false, err.Error(), nil
	}
	return true, "", nil
}

// GetServiceForClosure fetches the service with its client, category and
// technician for rendering the closure form. A missing service returns
// (nil, nil): absence is an expected precondition, not a fault.
func (s *ClosureService) GetServiceForClosure(ctx context.Context, serviceID uuid.UUID) (*models.Service, error) {
	svc, err := s.services.FindWithRelations(ctx, serviceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return svc, nil
}

// invalidInputError marks shape violations the HTTP edge should report as
// unprocessable rather than server faults.
type invalidInputError string

func (e invalidInputError) Error() string { return string(e) }

// IsInvalidInput reports whether err is a closure input-shape violation.
func IsInvalidInput(err error) bool {
	var t invalidInputError
	return errors.As(err, &t)
}

func validateCloseInput(in CloseServiceInput) error {
	if strings.TrimSpace(in.FinalReport) == "" {
		return invalidInputError("final report must not be empty")
	}
	if !in.PaymentMethod.Valid() {
		return invalidInputError("unknown payment method " + string(in.PaymentMethod))
	}
	if in.AmountPaid.IsNegative() {
		return invalidInputError("amount paid must not be negative")
	}
	return nil
}

func buildReport(in CloseServiceInput) *models.ServiceReport {
	report := &models.ServiceReport{
		ServiceID:   in.ServiceID,
		FinalReport: in.FinalReport,
	}
	for _, ph := range in.Photos {
		report.Photos = append(report.Photos, models.Photo{
			URL:            ph.URL,
			TechnicalNotes: ph.TechnicalNotes,
			Order:          ph.Order,
		})
	}
	for _, sp := range in.SpareParts {
		report.SpareParts = append(report.SpareParts, models.SparePart{
			Name:       sp.Name,
			Quantity:   sp.Quantity,
			UnitPrice:  sp.UnitPrice,
			TotalPrice: lineTotal(sp),
			Notes:      sp.Notes,
		})
	}
	return report
}

// failureMessage keeps rule messages verbatim and flattens storage faults into
// a generic transaction failure with the lower-level cause attached.
func failureMessage(err error) string {
	if IsClosureRuleError(err) {
		return err.Error()
	}
	return "transaction failed: " + err.Error()
}

func (s *ClosureService) publishEvent(ctx context.Context, event string, payload map[string]any) error {
	if s.mq == nil {
		return nil
	}
	payload["event"] = event
	return s.mq.Publish(ctx, event, payload)
}
