// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/soundhaus/label-backend/internal/config"
	"github.com/soundhaus/label-backend/internal/models"
)

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		TranslateError: true,
	}

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig.Logger = logger.Default.LogMode(logger.Silent)
	} else {
		gormConfig.Logger = logger.Default.LogMode(logger.Warn)
	}

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return db, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		&models.Beat{},
		&models.LicenseOffer{},
		&models.Event{},
		&models.Purchase{},
		&models.LicenseTemplate{},
		&models.IssuedLicense{},
		&models.LicenseCounter{},
		&models.Ticket{},
		&models.ProcessedWebhookEvent{},
		&models.FulfillmentAlert{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_purchases_created_at ON purchases(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_tickets_event_status ON tickets(event_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_issued_licenses_issued_at ON issued_licenses(issued_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_fulfillment_alerts_created ON fulfillment_alerts(created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_fulfillment_alerts_open ON fulfillment_alerts(source, resolved)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// SeedDefaultTemplates installs version 1 of every tier's license template.
// Issuance fails loudly when no active template exists, so this runs as an
// explicit deployment step rather than a lazy mid-request bootstrap.
func SeedDefaultTemplates(db *gorm.DB) error {
	log.Println("Seeding default license templates...")

	defaults := []models.LicenseTemplate{
		{
			Tier:              models.LicenseTierBasic,
			Version:           1,
			StreamCap:         100000,
			VideoCap:          1,
			PhysicalCopyCap:   2500,
			ContentIDAllowed:  false,
			PerformanceRights: false,
			BroadcastRights:   false,
			ProducerSplit:     50,
			LicenseeSplit:     50,
			CreditLine:        "Prod. by Soundhaus",
			Jurisdiction:      "Germany",
			Active:            true,
		},
		{
			Tier:              models.LicenseTierPremium,
			Version:           1,
			StreamCap:         1000000,
			VideoCap:          3,
			PhysicalCopyCap:   10000,
			ContentIDAllowed:  true,
			PerformanceRights: true,
			BroadcastRights:   false,
			ProducerSplit:     50,
			LicenseeSplit:     50,
			CreditLine:        "Prod. by Soundhaus",
			Jurisdiction:      "Germany",
			Active:            true,
		},
		{
			Tier:              models.LicenseTierUnlimited,
			Version:           1,
			StreamCap:         0,
			VideoCap:          0,
			PhysicalCopyCap:   0,
			ContentIDAllowed:  true,
			PerformanceRights: true,
			BroadcastRights:   true,
			ProducerSplit:     30,
			LicenseeSplit:     70,
			CreditLine:        "Prod. by Soundhaus",
			Jurisdiction:      "Germany",
			Active:            true,
		},
	}

	for _, template := range defaults {
		var count int64
		if err := db.Model(&models.LicenseTemplate{}).
			Where("tier = ?", template.Tier).
			Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check templates for tier %s: %w", template.Tier, err)
		}

		if count > 0 {
			continue
		}

		if err := db.Create(&template).Error; err != nil {
			return fmt.Errorf("failed to seed template for tier %s: %w", template.Tier, err)
		}
		log.Printf("Seeded default %s license template", template.Tier)
	}

	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
