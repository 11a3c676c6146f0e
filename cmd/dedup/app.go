package main

import (
	"fmt"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"

	"github.com/lessonbank/dedup/internal/config"
	"github.com/lessonbank/dedup/internal/database"
	"github.com/lessonbank/dedup/internal/metrics"
	"github.com/lessonbank/dedup/internal/services"
)

// app holds the services shared by every command
type app struct {
	cfg         *config.Config
	db          *gorm.DB
	registry    *prometheus.Registry
	catalog     *services.CatalogStore
	dismissals  *services.DismissalStore
	duplicates  *services.DuplicateService
	resolutions *services.ResolutionService
	settings    *services.SettingsService
}

// newApp loads config, connects and migrates the database and wires services
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.NewDedupMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	var notifier services.Notifier = services.NoopNotifier{}
	if cfg.SlackEnabled() {
		notifier = services.NewSlackNotifier(cfg.SlackBotToken, cfg.SlackChannel)
		log.Printf("Review notifications go to Slack channel %s", cfg.SlackChannel)
	} else {
		log.Println("Slack notifications disabled (SLACK_BOT_TOKEN or SLACK_CHANNEL unset)")
	}

	catalog := services.NewCatalogStore(db)
	dismissals := services.NewDismissalStore(db)
	duplicateService := services.NewDuplicateService(
		services.NewDBSignalProvider(db), catalog, dismissals, notifier, m, cfg.GroupCacheTTL,
	)

	return &app{
		cfg:         cfg,
		db:          db,
		registry:    registry,
		catalog:     catalog,
		dismissals:  dismissals,
		duplicates:  duplicateService,
		resolutions: services.NewResolutionService(db, duplicateService, notifier, m),
		settings:    services.NewSettingsService(db, duplicateService),
	}, nil
}

// openDatabase connects and brings the schema and default settings up to date
func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	if err := database.Connect(cfg.DatabaseURL, database.ParseLogLevel(cfg.DBLogLevel)); err != nil {
		return nil, err
	}
	db := database.GetDB()
	if err := database.AutoMigrate(db); err != nil {
		return nil, err
	}
	if err := database.InitializeDefaults(db); err != nil {
		return nil, err
	}
	return db, nil
}
