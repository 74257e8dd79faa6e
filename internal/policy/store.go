package policy

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/hichang4u/fxtrader/internal/models"
)

// ErrNotFound is returned when no policy exists for a currency.
var ErrNotFound = errors.New("no settings for currency")

// Store keeps one CurrencySettings row per currency and hands the planning
// engine its parameters.
type Store struct {
	db *gorm.DB
}

// New creates a policy store over an open database handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Get returns the settings for one currency.
func (s *Store) Get(currency models.Currency) (*models.CurrencySettings, error) {
	var settings models.CurrencySettings
	err := s.db.Where("currency = ?", currency).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, currency)
	}
	if err != nil {
		return nil, fmt.Errorf("load settings for %s: %w", currency, err)
	}
	return &settings, nil
}

// All returns the full currency to settings mapping.
func (s *Store) All() (map[models.Currency]models.CurrencySettings, error) {
	var rows []models.CurrencySettings
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	out := make(map[models.Currency]models.CurrencySettings, len(rows))
	for _, row := range rows {
		out[row.Currency] = row
	}
	return out, nil
}

// Put validates and replaces a currency's settings wholesale, creating the
// row if it does not exist yet.
func (s *Store) Put(settings *models.CurrencySettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	var existing models.CurrencySettings
	err := s.db.Where("currency = ?", settings.Currency).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.Create(settings).Error; err != nil {
			return fmt.Errorf("create settings for %s: %w", settings.Currency, err)
		}
	case err != nil:
		return fmt.Errorf("load settings for %s: %w", settings.Currency, err)
	default:
		settings.ID = existing.ID
		settings.CreatedAt = existing.CreatedAt
		if err := s.db.Save(settings).Error; err != nil {
			return fmt.Errorf("update settings for %s: %w", settings.Currency, err)
		}
	}
	return nil
}

// Seed inserts the default policies for any currency that has none.
func (s *Store) Seed() error {
	for _, settings := range models.DefaultSettings() {
		row := settings
		err := s.db.FirstOrCreate(&row, models.CurrencySettings{Currency: row.Currency}).Error
		if err != nil {
			return fmt.Errorf("seed settings for %s: %w", row.Currency, err)
		}
	}
	return nil
}
