package scan

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Detect selects the cheapest venue to buy and the most expensive venue to
// sell for one asset and computes the fee-adjusted net profit:
//
//	net = sell - buy - buy*fee(buyVenue) - sell*fee(sellVenue)
//
// It reports false when fewer than two venues answered, or when every venue
// quotes the same price (no spread to trade). Ties on the minimum or maximum
// go to the first venue in lexicographic name order, never map iteration
// order. The record is returned even when net profit is non-positive;
// filtering is Rank's job.
func Detect(asset string, prices PriceMap, fees map[string]decimal.Decimal) (Opportunity, bool) {
	if len(prices) < 2 {
		return Opportunity{}, false
	}

	venues := make([]string, 0, len(prices))
	for v := range prices {
		venues = append(venues, v)
	}
	sort.Strings(venues)

	buy, sell := venues[0], venues[0]
	for _, v := range venues[1:] {
		if prices[v].LessThan(prices[buy]) {
			buy = v
		}
		if prices[v].GreaterThan(prices[sell]) {
			sell = v
		}
	}
	if buy == sell {
		// All quotes identical; fees would make any trade strictly negative.
		return Opportunity{}, false
	}

	buyPx, sellPx := prices[buy], prices[sell]
	net := sellPx.Sub(buyPx).Sub(buyPx.Mul(fees[buy])).Sub(sellPx.Mul(fees[sell]))
	return Opportunity{
		Asset:     asset,
		BuyVenue:  buy,
		SellVenue: sell,
		BuyPrice:  buyPx,
		SellPrice: sellPx,
		NetProfit: net,
	}, true
}
