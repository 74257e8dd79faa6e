package ledger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hichang4u/fxtrader/internal/models"
)

func openLedger(t *testing.T, dsn string) *Ledger {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&models.Trade{}))
	return New(db)
}

func buyRow(seq int, krw, rate float64) *models.Trade {
	return &models.Trade{
		TradeID:       models.OrderID{Type: models.TypeBuy, Seq: seq}.String(),
		Seq:           seq,
		Date:          "2024-01-05",
		Type:          models.TypeBuy,
		Currency:      models.CurrencyUSD,
		Rate:          rate,
		KRWAmount:     krw,
		ForeignAmount: krw / rate,
	}
}

func TestNextSeqSkipsNothingOnEmptyLedger(t *testing.T) {
	l := openLedger(t, "file::memory:")

	seq, err := l.NextSeq(models.TypeBuy)
	assert.NoError(t, err)
	assert.Equal(t, 1, seq)
}

func TestNextSeqIsPerType(t *testing.T) {
	l := openLedger(t, "file::memory:")
	assert.NoError(t, l.Append(buyRow(1, 100000, 1300), buyRow(2, 50000, 1310)))

	seq, err := l.NextSeq(models.TypeBuy)
	assert.NoError(t, err)
	assert.Equal(t, 3, seq)

	seq, err = l.NextSeq(models.TypeSell)
	assert.NoError(t, err)
	assert.Equal(t, 1, seq)
}

func TestFindAndRelated(t *testing.T) {
	l := openLedger(t, "file::memory:")
	buy := buyRow(1, 100000, 1300)
	sell := &models.Trade{
		TradeID:   "SELL1",
		Seq:       1,
		Type:      models.TypeSell,
		Currency:  models.CurrencyUSD,
		Rate:      1310,
		KRWAmount: 30000,
		RelatedID: buy.TradeID,
	}
	assert.NoError(t, l.Append(buy, sell))

	found, err := l.Find("BUY1")
	assert.NoError(t, err)
	assert.Equal(t, buy.TradeID, found.TradeID)

	_, err = l.Find("BUY2")
	assert.ErrorIs(t, err, ErrNotFound)

	related, err := l.Related("BUY1")
	assert.NoError(t, err)
	assert.Len(t, related, 1)
	assert.Equal(t, "SELL1", related[0].TradeID)

	family, err := l.Family("BUY1")
	assert.NoError(t, err)
	assert.Len(t, family, 2)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	l := openLedger(t, "file::memory:")

	err := l.Transaction(func(tx *Ledger) error {
		if err := tx.Append(buyRow(1, 100000, 1300)); err != nil {
			return err
		}
		// A duplicate display id must fail the whole unit.
		return tx.Append(buyRow(1, 50000, 1310))
	})
	assert.Error(t, err)

	count, err := l.Count()
	assert.NoError(t, err)
	assert.Zero(t, count)
}

func TestDeleteFamilyIsPermanent(t *testing.T) {
	l := openLedger(t, "file::memory:")
	buy := buyRow(1, 100000, 1300)
	planned := &models.Trade{
		TradeID:   "SELL-PLANNED1-1",
		Seq:       1,
		Sub:       1,
		Type:      models.TypeSellPlanned,
		Currency:  models.CurrencyUSD,
		RelatedID: buy.TradeID,
	}
	assert.NoError(t, l.Append(buy, planned))
	assert.NoError(t, l.DeleteFamily("BUY1"))

	count, err := l.Count()
	assert.NoError(t, err)
	assert.Zero(t, count)

	// The display ids are free again; a regenerated row must not collide
	// with a tombstone.
	assert.NoError(t, l.Append(buyRow(1, 100000, 1300)))
}

func TestLedgerRoundTrip(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "ledger.db")

	l := openLedger(t, dsn)
	assert.NoError(t, l.Append(
		buyRow(1, 100000, 1300),
		&models.Trade{
			TradeID: "SELL-PLANNED1-1", Seq: 1, Sub: 1, Date: "2024-01-05",
			Type: models.TypeSellPlanned, Currency: models.CurrencyUSD,
			Rate: 1310, KRWAmount: 30000, ForeignAmount: 22.90, Profit: 230,
			Note: "auto-generated (split 1/3, +10)", RelatedID: "BUY1",
		},
	))
	before, err := l.All()
	assert.NoError(t, err)

	// A fresh handle over the same file must see a structurally identical
	// ledger.
	reopened := openLedger(t, dsn)
	after, err := reopened.All()
	assert.NoError(t, err)

	assert.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].TradeID, after[i].TradeID)
		assert.Equal(t, before[i].Type, after[i].Type)
		assert.Equal(t, before[i].Currency, after[i].Currency)
		assert.Equal(t, before[i].Rate, after[i].Rate)
		assert.Equal(t, before[i].KRWAmount, after[i].KRWAmount)
		assert.Equal(t, before[i].ForeignAmount, after[i].ForeignAmount)
		assert.Equal(t, before[i].Profit, after[i].Profit)
		assert.Equal(t, before[i].Note, after[i].Note)
		assert.Equal(t, before[i].RelatedID, after[i].RelatedID)
	}
}
