package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/precasttrack/backend/internal/audit"
	"github.com/precasttrack/backend/internal/config"
	"github.com/precasttrack/backend/internal/handler"
	"github.com/precasttrack/backend/internal/model"
	"github.com/precasttrack/backend/internal/notify"
	"github.com/precasttrack/backend/internal/router"
	"github.com/precasttrack/backend/internal/service"
	"github.com/precasttrack/backend/internal/sse"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	// Load config
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Database
	db, err := gorm.Open(mysql.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}

	// Auto migrate
	if err := db.AutoMigrate(
		&model.User{},
		&model.Project{},
		&model.Unit{},
		&model.Activity{},
		&model.UnitProgress{},
		&model.ChecklistTemplateItem{},
		&model.Checkpoint{},
		&model.ChecklistItemInstance{},
		&model.QualityIssue{},
		&model.IssueComment{},
		&model.Attachment{},
		&model.OperationLog{},
	); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Core components
	hub := sse.NewHub(rdb)
	auditor := audit.NewRecorder(db)

	// Notifier
	var notifier notify.Notifier
	if cfg.Notify.Enabled {
		notifier = notify.NewWebhookNotifier(db, cfg.Encrypt.AESKey, cfg.Notify.WebhookURL, cfg.Notify.Token)
	} else {
		notifier = notify.NoopNotifier{}
	}

	// Services
	authService := service.NewAuthService(db, cfg.JWT.Secret, cfg.JWT.ExpireHours)
	unitService := service.NewUnitService(db, auditor, cfg.Encrypt.AESKey)
	catalogService := service.NewCatalogService(db, auditor)
	checkpointService := service.NewCheckpointService(db, auditor)
	reviewService := service.NewReviewService(db, auditor,
		model.IssueType(cfg.Inspection.AutoIssueType),
		model.IssueSeverity(cfg.Inspection.AutoIssueSeverity))
	issueService := service.NewIssueService(db, auditor)
	gateService := service.NewGateService(db, rdb, checkpointService, auditor)

	// Inject notifier and event hub
	checkpointService.SetNotifier(notifier)
	reviewService.SetNotifier(notifier)
	issueService.SetNotifier(notifier)
	reviewService.SetHub(hub)
	gateService.SetHub(hub)

	// Handlers
	authHandler := handler.NewAuthHandler(authService)
	unitHandler := handler.NewUnitHandler(unitService, gateService, hub)
	checkpointHandler := handler.NewCheckpointHandler(checkpointService, reviewService, unitService)
	issueHandler := handler.NewIssueHandler(issueService)
	catalogHandler := handler.NewCatalogHandler(catalogService)

	// Gin engine
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	router.Setup(r, router.Deps{
		DB:                db,
		JWTSecret:         cfg.JWT.Secret,
		AuthHandler:       authHandler,
		UnitHandler:       unitHandler,
		CheckpointHandler: checkpointHandler,
		IssueHandler:      issueHandler,
		CatalogHandler:    catalogHandler,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server run: %v", err)
	}
}
