package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/example/fieldserv/backend/internal/config"
	"github.com/example/fieldserv/backend/internal/db"
	httpserver "github.com/example/fieldserv/backend/internal/http"
	"github.com/example/fieldserv/backend/internal/models"
	"github.com/example/fieldserv/backend/internal/mq"
	"github.com/example/fieldserv/backend/internal/repository"
	"github.com/example/fieldserv/backend/internal/service"
	"github.com/example/fieldserv/backend/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	database, err := db.New(cfg.DatabaseURL, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	autoMigrate(database)

	var publisher mq.Publisher
	publisher, err = mq.NewRabbitPublisher(cfg.MQURL, cfg.MQServiceExchange)
	if err != nil {
		log.Printf("warning: rabbitmq unavailable (%v), continuing without events", err)
	}

	var eventConsumer mq.Consumer
	if consumer, err := mq.NewRabbitConsumer(cfg.MQURL, cfg.MQServiceExchange, cfg.MQServiceQueue); err != nil {
		log.Printf("warning: event consumer unavailable (%v), continuing without event log", err)
	} else {
		eventConsumer = consumer
		if err := worker.NewEventLogger(eventConsumer).Start(); err != nil {
			log.Printf("warning: event consume failed: %v", err)
		}
	}

	serviceRepo := repository.NewServiceRepository(database)
	userRepo := repository.NewUserRepository(database)
	clientRepo := repository.NewClientRepository(database)

	scheduleService := service.NewScheduleService(database, serviceRepo, clientRepo, userRepo, publisher)
	closureService := service.NewClosureService(database, serviceRepo, publisher)
	apiServer := httpserver.NewServer(userRepo, clientRepo, serviceRepo, scheduleService, closureService, cfg.JWTSecret, cfg.TokenTTL)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reminder := worker.NewDebtReminder(serviceRepo, publisher, cfg.DebtReminderInterval, cfg.DebtReminderMinAge)
	go reminder.Run(ctx)

	srv := &http.Server{
		Addr:    cfg.HTTPPort,
		Handler: apiServer.Engine,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutdown initiated")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if eventConsumer != nil {
		_ = eventConsumer.Close()
	}
	if publisher != nil {
		if closer, ok := publisher.(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}
	log.Println("bye")
}

func autoMigrate(database *gorm.DB) {
	err := database.AutoMigrate(
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
		log.Fatalf("auto migrate: %v", err)
	}
}

func init() {
	if mode := os.Getenv("GIN_MODE"); mode == "" {
		gin.SetMode(gin.ReleaseMode)
	}
}
