package models

import "gorm.io/gorm"

// Currency is a supported foreign currency, quoted against KRW.
// JPY is quoted per 100 yen, so its amounts carry two extra decimals.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyJPY Currency = "JPY"
)

// Currencies lists every supported currency in display order.
var Currencies = []Currency{CurrencyUSD, CurrencyJPY}

// Valid reports whether c is a supported currency code.
func (c Currency) Valid() bool {
	switch c {
	case CurrencyUSD, CurrencyJPY:
		return true
	}
	return false
}

// AmountPrecision returns the number of decimals used for foreign amounts.
func (c Currency) AmountPrecision() int {
	if c == CurrencyJPY {
		return 4
	}
	return 2
}

// TradeType is the closed set of trade record kinds. Executed types record
// money that actually moved; planned types are generated follow-on orders.
type TradeType string

const (
	TypeBuy             TradeType = "BUY"
	TypeSell            TradeType = "SELL"
	TypeStopLoss        TradeType = "STOP-LOSS"
	TypeBuyPlanned      TradeType = "BUY-PLANNED"
	TypeSellPlanned     TradeType = "SELL-PLANNED"
	TypeStopLossPlanned TradeType = "STOP-LOSS-PLANNED"
)

// Executed reports whether t represents a realized trade that counts toward
// profit and holdings.
func (t TradeType) Executed() bool {
	return t == TypeSell || t == TypeStopLoss
}

// Planned reports whether t is an auto-generated planned order.
func (t TradeType) Planned() bool {
	switch t {
	case TypeSellPlanned, TypeStopLossPlanned, TypeBuyPlanned:
		return true
	}
	return false
}

// Trade is one row in the trade ledger. The gorm surrogate key preserves
// insertion order; TradeID is the display identity formatted from the
// structured OrderID and is what RelatedID points at.
type Trade struct {
	gorm.Model
	TradeID       string    `gorm:"uniqueIndex" json:"trade_id"`
	Seq           int       `json:"seq"`
	Sub           int       `json:"sub,omitempty"`
	Date          string    `json:"date"`
	Type          TradeType `gorm:"index" json:"type"`
	Currency      Currency  `gorm:"index" json:"currency"`
	Rate          float64   `json:"rate"`
	KRWAmount     float64   `json:"krw_amount"`
	ForeignAmount float64   `json:"foreign_amount"`
	Profit        float64   `json:"profit"`
	Note          string    `json:"note"`
	RelatedID     string    `gorm:"index" json:"related_id,omitempty"`
}

// OrderID returns the structured identity of the trade.
func (t *Trade) OrderID() OrderID {
	return OrderID{Type: t.Type, Seq: t.Seq, Sub: t.Sub}
}
