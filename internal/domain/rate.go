package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReferenceRate stores a market mid-rate between two currencies at a
// point in time: 1 unit of Base buys Rate units of Quote. The engine
// never fetches rates itself; it only consumes the value resolved here.
type ReferenceRate struct {
	Base   string          `json:"base"`
	Quote  string          `json:"quote"`
	Rate   decimal.Decimal `json:"rate"`
	AsOf   time.Time       `json:"asOf"`
	Source string          `json:"source,omitempty"`
}
