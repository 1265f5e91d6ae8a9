package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/fieldserv/backend/internal/models"
	"github.com/example/fieldserv/backend/internal/repository"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, routingKey)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func TestDebtReminderPublishesForAgedDebts(t *testing.T) {
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Client{}, &models.Category{}, &models.Service{},
		&models.ServiceReport{}, &models.Photo{}, &models.SparePart{}, &models.Payment{},
	))

	client := models.Client{Name: "ClientCo"}
	require.NoError(t, db.Create(&client).Error)
	tech := models.User{Name: "tech", Email: "tech@fieldserv.test", PasswordHash: "x", Role: models.RoleTechnician, Active: true}
	require.NoError(t, db.Create(&tech).Error)
	svc := models.Service{Title: "job", Status: models.ServiceStatusClosed, IsLocked: true, ScheduledDate: time.Now().UTC(), ClientID: client.ID, TechnicianID: &tech.ID}
	require.NoError(t, db.Create(&svc).Error)
	payment := models.Payment{
		ServiceID:      svc.ID,
		Method:         models.PaymentMethodCash,
		AmountPaid:     decimal.RequireFromString("30"),
		SparePartsCost: decimal.Zero,
		DebtAmount:     decimal.RequireFromString("70"),
		HasDebt:        true,
		TechnicianID:   tech.ID,
	}
	require.NoError(t, db.Create(&payment).Error)

	publisher := &recordingPublisher{}
	// minAge of -1m keeps the just-created payment inside the scan window.
	w := NewDebtReminder(repository.NewServiceRepository(db), publisher, time.Hour, -time.Minute)
	w.scan(context.Background())

	events := publisher.published()
	require.Len(t, events, 1)
	assert.Equal(t, "payment.debt.reminder", events[0])
}
