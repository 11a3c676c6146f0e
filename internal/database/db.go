package database

import (
	"fmt"
	"log"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database instance
var DB *gorm.DB

const sqlitePrefix = "sqlite://"

// Open opens a gorm connection for dsn. A "sqlite://" prefix selects the
// sqlite driver (the remainder is the file path or ":memory:"); anything else
// is handed to the PostgreSQL driver.
func Open(dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, sqlitePrefix) {
		dialector = sqlite.Open(strings.TrimPrefix(dsn, sqlitePrefix))
	} else {
		dialector = postgres.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// sqlite allows a single writer, and every ":memory:" connection is its
	// own database.
	if strings.HasPrefix(dsn, sqlitePrefix) {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Connect establishes the global database connection
func Connect(dsn string, logLevel logger.LogLevel) error {
	db, err := Open(dsn, logLevel)
	if err != nil {
		return err
	}
	DB = db

	log.Println("Database connection established")
	return nil
}

// ParseLogLevel maps a config string to a gorm log level, defaulting to warn.
func ParseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// Models returns every model owned by this service, in migration order.
func Models() []interface{} {
	return []interface{}{
		&Lesson{},
		&LessonEmbedding{},
		&CanonicalMapping{},
		&ArchivedLesson{},
		&DismissedGroup{},
		&DedupSettings{},
	}
}

// AutoMigrate runs database migrations
func AutoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// InitializeDefaults creates default records if they don't exist
func InitializeDefaults(db *gorm.DB) error {
	if _, err := GetOrCreateDedupSettings(db); err != nil {
		return fmt.Errorf("failed to create default dedup settings: %w", err)
	}
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// Close closes the global database connection
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetOrCreateDedupSettings retrieves dedup settings or creates defaults.
// Accepts a db parameter for dependency injection, transaction support, and testing.
func GetOrCreateDedupSettings(db *gorm.DB) (*DedupSettings, error) {
	var settings DedupSettings
	result := db.First(&settings)
	if result.Error == gorm.ErrRecordNotFound {
		settings = *NewDefaultDedupSettings()
		if err := db.Create(&settings).Error; err != nil {
			return nil, err
		}
	} else if result.Error != nil {
		return nil, result.Error
	}
	return &settings, nil
}

// UpdateDedupSettings updates dedup settings.
// Uses Save() which handles both insert and update operations.
func UpdateDedupSettings(db *gorm.DB, settings *DedupSettings) error {
	return db.Save(settings).Error
}
