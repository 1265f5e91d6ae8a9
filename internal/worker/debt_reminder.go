package worker

import (
	"context"
	"log"
	"time"

	"github.com/example/fieldserv/backend/internal/mq"
	"github.com/example/fieldserv/backend/internal/repository"
)

// DebtReminder periodically scans payments that still carry debt and publishes
// reminder events for downstream notification consumers.
type DebtReminder struct {
	services *repository.ServiceRepository
	mq       mq.Publisher
	interval time.Duration
	minAge   time.Duration
}

// NewDebtReminder creates the worker.
func NewDebtReminder(services *repository.ServiceRepository, publisher mq.Publisher, interval, minAge time.Duration) *DebtReminder {
	return &DebtReminder{services: services, mq: publisher, interval: interval, minAge: minAge}
}

// Run starts the scan loop and should be launched in its own goroutine.
func (w *DebtReminder) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("debt reminder shutting down")
			return
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *DebtReminder) scan(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-w.minAge)
	debts, err := w.services.ListDebts(ctx, cutoff, 100)
	if err != nil {
		log.Printf("list outstanding debts error: %v", err)
		return
	}
	for _, p := range debts {
		if w.mq == nil {
			return
		}
		err := w.mq.Publish(ctx, "payment.debt.reminder", map[string]any{
			"event":        "payment.debt.reminder",
			"paymentId":    p.ID.String(),
			"serviceId":    p.ServiceID.String(),
			"debtAmount":   p.DebtAmount.String(),
			"technicianId": p.TechnicianID.String(),
			"occurredAt":   time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			log.Printf("publish debt reminder for payment %s failed: %v", p.ID, err)
		}
	}
}
