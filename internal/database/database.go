package database

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hichang4u/fxtrader/internal/models"
	"github.com/hichang4u/fxtrader/internal/policy"
)

// NewDatabase opens the sqlite store, migrates the schema and seeds the
// default currency policies.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates or updates the schema and makes sure every supported
// currency has a policy row.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Trade{}, &models.CurrencySettings{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}

	if err := policy.New(db).Seed(); err != nil {
		return fmt.Errorf("failed to seed default settings: %w", err)
	}

	return nil
}
