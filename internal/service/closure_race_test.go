package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/fieldserv/backend/internal/models"
	"github.com/example/fieldserv/backend/internal/repository"
)

// setupContentionDB opens a shared-cache database whose busy timeout lets a
// losing writer wait for the winner instead of failing immediately on the
// table lock.
func setupContentionDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Client{}, &models.Category{}, &models.Service{},
		&models.ServiceReport{}, &models.Photo{}, &models.SparePart{}, &models.Payment{},
	))
	return db
}

func assertClosedExactlyOnce(t *testing.T, db *gorm.DB, serviceID uuid.UUID) {
	t.Helper()
	var payments, reports int64
	require.NoError(t, db.Model(&models.Payment{}).Where("service_id = ?", serviceID).Count(&payments).Error)
	require.NoError(t, db.Model(&models.ServiceReport{}).Where("service_id = ?", serviceID).Count(&reports).Error)
	assert.EqualValues(t, 1, payments)
	assert.EqualValues(t, 1, reports)

	var got models.Service
	require.NoError(t, db.First(&got, "id = ?", serviceID).Error)
	assert.Equal(t, models.ServiceStatusClosed, got.Status)
	assert.True(t, got.IsLocked)
}

func TestCloseServiceConcurrentAttemptsHaveOneWinner(t *testing.T) {
	db := setupContentionDB(t)
	tech := seedTechnician(t, db, "tech1")
	client := seedClient(t, db)
	svc := seedService(t, db, client.ID, serviceOpts{
		technicianID:   &tech.ID,
		expectedAmount: amount("50000"),
		status:         models.ServiceStatusInProgress,
	})
	closure := NewClosureService(db, repository.NewServiceRepository(db), nil)

	var wg sync.WaitGroup
	results := make([]CloseServiceResult, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = closure.CloseService(context.Background(), closeInput(svc.ID, tech.ID))
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, r := range results {
		if r.Success {
			successes++
		} else {
			assert.ErrorIs(t, r.Err, ErrAlreadyClosed, "loser must report the closed state, got: %+v", r)
			assert.Equal(t, ErrAlreadyClosed.Error(), r.Error)
		}
	}
	assert.Equal(t, 1, successes, "results: %+v", results)

	// regardless of which attempt won, the trio exists exactly once
	assertClosedExactlyOnce(t, db, svc.ID)
}

// TestCloseServiceContendedLoserReportsAlreadyClosed pins the race window the
// goroutine test only hits by luck: the second attempt arrives while a winning
// closure is mid-transaction, queues on the guarded update, and must come back
// with the closed-state rule error once the winner commits, not a storage
// fault.
func TestCloseServiceContendedLoserReportsAlreadyClosed(t *testing.T) {
	db := setupContentionDB(t)
	tech := seedTechnician(t, db, "tech1")
	client := seedClient(t, db)
	svc := seedService(t, db, client.ID, serviceOpts{
		technicianID:   &tech.ID,
		expectedAmount: amount("50000"),
		status:         models.ServiceStatusInProgress,
	})
	repo := repository.NewServiceRepository(db)
	closure := NewClosureService(db, repo, nil)
	ctx := context.Background()

	// Hold a winning closure open in an explicit transaction.
	winner := db.Begin()
	require.NoError(t, winner.Error)
	winnerRepo := repo.WithTx(winner)
	closed, err := winnerRepo.MarkClosed(ctx, svc.ID, tech.ID, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, closed)
	require.NoError(t, winnerRepo.CreateReport(ctx, &models.ServiceReport{
		ServiceID:   svc.ID,
		FinalReport: "replaced the compressor valve and recharged refrigerant",
	}))
	require.NoError(t, winnerRepo.CreatePayment(ctx, &models.Payment{
		ServiceID:    svc.ID,
		Method:       models.PaymentMethodCash,
		AmountPaid:   d("30000"),
		DebtAmount:   d("20000"),
		HasDebt:      true,
		TechnicianID: tech.ID,
	}))

	done := make(chan CloseServiceResult, 1)
	go func() {
		done <- closure.CloseService(ctx, closeInput(svc.ID, tech.ID))
	}()

	// Let the second attempt queue on the guarded update before the winner
	// commits out from under it.
	time.Sleep(150 * time.Millisecond)
	require.NoError(t, winner.Commit().Error)

	res := <-done
	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrAlreadyClosed)
	assert.Equal(t, ErrAlreadyClosed.Error(), res.Error)
	assert.Nil(t, res.ReportID)
	assert.Nil(t, res.PaymentID)

	assertClosedExactlyOnce(t, db, svc.ID)
}
