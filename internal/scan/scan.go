package scan

import (
	"github.com/shopspring/decimal"
)

// PriceMap holds the prices one asset fetched across venues, keyed by venue
// name. Only venues that answered successfully appear.
type PriceMap map[string]decimal.Decimal

// Opportunity is one detected buy/sell pair for an asset. NetProfit may be
// negative; Rank filters non-positive records before they reach presentation.
type Opportunity struct {
	Asset     string          `json:"asset"`
	BuyVenue  string          `json:"buy_venue"`
	SellVenue string          `json:"sell_venue"`
	BuyPrice  decimal.Decimal `json:"buy_price"`
	SellPrice decimal.Decimal `json:"sell_price"`
	NetProfit decimal.Decimal `json:"net_profit"`
}
