package ledger

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/hichang4u/fxtrader/internal/models"
)

// ErrNotFound is returned when a trade id does not resolve to a row.
var ErrNotFound = errors.New("trade not found")

// Ledger is the ordered collection of trade records. It owns identity
// assignment and every persistence and query concern; callers that need
// multi-row atomicity wrap their work in Transaction.
type Ledger struct {
	db *gorm.DB
}

// New creates a ledger over an open database handle.
func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Transaction runs fn against a ledger bound to a single transaction. If fn
// returns an error nothing is committed.
func (l *Ledger) Transaction(fn func(tx *Ledger) error) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		return fn(New(tx))
	})
}

// NextSeq returns the next unused sequence number for a trade type. It is
// max-based rather than count-based so sequences are never reused after a
// delete.
func (l *Ledger) NextSeq(t models.TradeType) (int, error) {
	var maxSeq int
	err := l.db.Model(&models.Trade{}).
		Where("type = ?", t).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error
	if err != nil {
		return 0, fmt.Errorf("next sequence for %s: %w", t, err)
	}
	return maxSeq + 1, nil
}

// Append inserts new trade rows in order.
func (l *Ledger) Append(trades ...*models.Trade) error {
	for _, t := range trades {
		if err := l.db.Create(t).Error; err != nil {
			return fmt.Errorf("append %s: %w", t.TradeID, err)
		}
	}
	return nil
}

// Save persists changes to an existing trade row.
func (l *Ledger) Save(t *models.Trade) error {
	if err := l.db.Save(t).Error; err != nil {
		return fmt.Errorf("save %s: %w", t.TradeID, err)
	}
	return nil
}

// All returns every trade in insertion order.
func (l *Ledger) All() ([]models.Trade, error) {
	var trades []models.Trade
	if err := l.db.Order("id asc").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	return trades, nil
}

// Find resolves a display id to its trade row.
func (l *Ledger) Find(tradeID string) (*models.Trade, error) {
	var trade models.Trade
	err := l.db.Where("trade_id = ?", tradeID).First(&trade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, tradeID)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", tradeID, err)
	}
	return &trade, nil
}

// Related returns every trade whose RelatedID points at buyID.
func (l *Ledger) Related(buyID string) ([]models.Trade, error) {
	var trades []models.Trade
	if err := l.db.Where("related_id = ?", buyID).Order("id asc").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("related trades of %s: %w", buyID, err)
	}
	return trades, nil
}

// Family returns the buy itself plus everything generated from or sold
// against it.
func (l *Ledger) Family(buyID string) ([]models.Trade, error) {
	var trades []models.Trade
	err := l.db.Where("trade_id = ? OR related_id = ?", buyID, buyID).
		Order("id asc").Find(&trades).Error
	if err != nil {
		return nil, fmt.Errorf("family of %s: %w", buyID, err)
	}
	return trades, nil
}

// ByTypes returns trades of the given types in insertion order, optionally
// restricted to one currency.
func (l *Ledger) ByTypes(currency models.Currency, types ...models.TradeType) ([]models.Trade, error) {
	q := l.db.Where("type IN ?", types)
	if currency != "" {
		q = q.Where("currency = ?", currency)
	}
	var trades []models.Trade
	if err := q.Order("id asc").Find(&trades).Error; err != nil {
		return nil, fmt.Errorf("trades by type %v: %w", types, err)
	}
	return trades, nil
}

// Planned returns the planned sell and stop-loss rows, the set shown on the
// planned-orders board. Next-buy rows are queried separately.
func (l *Ledger) Planned() ([]models.Trade, error) {
	return l.ByTypes("", models.TypeSellPlanned, models.TypeStopLossPlanned)
}

// Executed returns realized sell and stop-loss rows for a currency; pass an
// empty currency for all of them.
func (l *Ledger) Executed(currency models.Currency) ([]models.Trade, error) {
	return l.ByTypes(currency, models.TypeSell, models.TypeStopLoss)
}

// HasRelatedSells reports whether any executed sell references buyID.
func (l *Ledger) HasRelatedSells(buyID string) (bool, error) {
	var count int64
	err := l.db.Model(&models.Trade{}).
		Where("type = ? AND related_id = ?", models.TypeSell, buyID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count sells of %s: %w", buyID, err)
	}
	return count > 0, nil
}

// Deletes are permanent, not soft: edits regenerate planned rows under the
// same display ids, and a tombstone would collide with the unique index.

// DeleteOne removes a single trade row.
func (l *Ledger) DeleteOne(tradeID string) error {
	if err := l.db.Unscoped().Where("trade_id = ?", tradeID).Delete(&models.Trade{}).Error; err != nil {
		return fmt.Errorf("delete %s: %w", tradeID, err)
	}
	return nil
}

// DeleteRelated removes every trade whose RelatedID points at buyID.
func (l *Ledger) DeleteRelated(buyID string) error {
	if err := l.db.Unscoped().Where("related_id = ?", buyID).Delete(&models.Trade{}).Error; err != nil {
		return fmt.Errorf("delete related of %s: %w", buyID, err)
	}
	return nil
}

// DeleteFamily removes a buy and everything referencing it.
func (l *Ledger) DeleteFamily(buyID string) error {
	err := l.db.Unscoped().Where("trade_id = ? OR related_id = ?", buyID, buyID).
		Delete(&models.Trade{}).Error
	if err != nil {
		return fmt.Errorf("delete family of %s: %w", buyID, err)
	}
	return nil
}

// Count returns the number of live trade rows.
func (l *Ledger) Count() (int64, error) {
	var count int64
	if err := l.db.Model(&models.Trade{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count trades: %w", err)
	}
	return count, nil
}
