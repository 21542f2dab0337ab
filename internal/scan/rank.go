package scan

import "sort"

// Rank keeps only profitable records and orders them by net profit,
// descending. The sort is stable: records with equal profit retain their
// input order, which Scan produces in ascending asset order.
func Rank(records []Opportunity) []Opportunity {
	out := make([]Opportunity, 0, len(records))
	for _, r := range records {
		if r.NetProfit.IsPositive() {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NetProfit.GreaterThan(out[j].NetProfit)
	})
	return out
}
