package models

import (
	"fmt"
	"strconv"
	"strings"
)

// OrderID identifies a trade as {type, sequence, sub}. Buys own a sequence
// per type; rows generated from a buy reuse the buy's sequence, and planned
// sells additionally carry a 1-based split index in Sub. The formatted form
// ("BUY3", "SELL-PLANNED3-1") is for display and cross-references only;
// equality and lookups go through the structured fields.
type OrderID struct {
	Type TradeType
	Seq  int
	Sub  int
}

// String formats the identifier for display, e.g. "BUY3" or "SELL-PLANNED3-1".
func (id OrderID) String() string {
	if id.Sub > 0 {
		return fmt.Sprintf("%s%d-%d", id.Type, id.Seq, id.Sub)
	}
	return fmt.Sprintf("%s%d", id.Type, id.Seq)
}

// idPrefixes is ordered longest-first so "SELL-PLANNED" wins over "SELL".
var idPrefixes = []TradeType{
	TypeStopLossPlanned,
	TypeSellPlanned,
	TypeBuyPlanned,
	TypeStopLoss,
	TypeSell,
	TypeBuy,
}

// ParseOrderID parses a display identifier back into its structured form.
func ParseOrderID(s string) (OrderID, error) {
	for _, t := range idPrefixes {
		rest, ok := strings.CutPrefix(s, string(t))
		if !ok {
			continue
		}
		seqPart, subPart, hasSub := strings.Cut(rest, "-")
		seq, err := strconv.Atoi(seqPart)
		if err != nil || seq <= 0 {
			break
		}
		id := OrderID{Type: t, Seq: seq}
		if hasSub {
			if t != TypeSellPlanned {
				break
			}
			sub, err := strconv.Atoi(subPart)
			if err != nil || sub <= 0 {
				break
			}
			id.Sub = sub
		}
		return id, nil
	}
	return OrderID{}, fmt.Errorf("malformed order id %q", s)
}
