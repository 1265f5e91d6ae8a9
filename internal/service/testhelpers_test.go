package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/fieldserv/backend/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{},
		&models.Client{},
		&models.Category{},
		&models.Service{},
		&models.ServiceReport{},
		&models.Photo{},
		&models.SparePart{},
		&models.Payment{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedTechnician(t *testing.T, db *gorm.DB, name string) models.User {
	t.Helper()
	user := models.User{
		Name:         name,
		Email:        name + "@fieldserv.test",
		PasswordHash: "x",
		Role:         models.RoleTechnician,
		Active:       true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed technician: %v", err)
	}
	return user
}

func seedClient(t *testing.T, db *gorm.DB) models.Client {
	t.Helper()
	client := models.Client{Name: "ClientCo", Phone: "555-0100"}
	if err := db.Create(&client).Error; err != nil {
		t.Fatalf("seed client: %v", err)
	}
	return client
}

type serviceOpts struct {
	technicianID   *uuid.UUID
	expectedAmount *decimal.Decimal
	status         models.ServiceStatus
	locked         bool
}

func seedService(t *testing.T, db *gorm.DB, clientID uuid.UUID, opts serviceOpts) models.Service {
	t.Helper()
	svc := models.Service{
		Title:         "AC maintenance",
		Description:   "annual check",
		ScheduledDate: time.Now().UTC(),
		ClientID:      clientID,
		TechnicianID:  opts.technicianID,
		Status:        opts.status,
		IsLocked:      opts.locked,
	}
	if opts.expectedAmount != nil {
		svc.ExpectedAmount = decimal.NewNullDecimal(*opts.expectedAmount)
	}
	if err := db.Create(&svc).Error; err != nil {
		t.Fatalf("seed service: %v", err)
	}
	return svc
}

func amount(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}
