package trading

import "errors"

// Typed failures the presentation layer translates into user-visible
// messages. Every public operation either completes fully, persistence
// included, or returns one of these before mutating anything.
var (
	ErrInvalidCurrency = errors.New("unsupported currency")
	ErrBuyNotFound     = errors.New("buy order not found")
	ErrTradeNotFound   = errors.New("trade not found")
	ErrHasRelatedSells = errors.New("buy has executed sells and cannot be deleted")
	ErrNotEditable     = errors.New("trade type cannot be edited")
)
