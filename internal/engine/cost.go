package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ovenledger/ovenledger/internal/recipe"
)

// BreakdownLimit is the number of named rows in a cost breakdown before the
// remainder collapses into a synthetic "other" bucket.
const BreakdownLimit = 4

// OtherBucketName labels the synthetic remainder row.
const OtherBucketName = "other"

// CostShare is one row of a cost breakdown.
type CostShare struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

// CostPoint is one point of a cost history series.
type CostPoint struct {
	Date time.Time       `json:"date"`
	Cost decimal.Decimal `json:"cost"`
}

// Aggregator prices flattened weight maps against the ingredient ledger
// using weighted-average (moving average) costing.
type Aggregator struct{}

// NewAggregator creates an Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Cost prices a flattened weight map. The unit cost per gram is the
// ingredient's current stock value divided by its current stock weight; an
// ingredient with zero stock weight prices at zero, not as an error.
// Ingredients missing from the ledger contribute nothing.
func (a *Aggregator) Cost(w Weights, ledger Ledger) decimal.Decimal {
	total := decimal.Zero
	for id, grams := range w {
		ing, ok := ledger[id]
		if !ok {
			continue
		}
		total = total.Add(ing.UnitCost().Mul(decimal.NewFromFloat(grams)))
	}
	return total
}

// Breakdown returns per-ingredient cost shares sorted descending by value.
// When more than BreakdownLimit entries exist and the remainder is non-zero,
// the tail collapses into a single "other" row, so the result never exceeds
// BreakdownLimit+1 rows and always sums to Cost(w, ledger).
func (a *Aggregator) Breakdown(w Weights, ledger Ledger) []CostShare {
	shares := make([]CostShare, 0, len(w))
	for _, id := range w.IDs() {
		ing, ok := ledger[id]
		if !ok {
			continue
		}
		value := ing.UnitCost().Mul(decimal.NewFromFloat(w[id]))
		shares = append(shares, CostShare{Name: ing.Name, Value: value})
	}

	sort.SliceStable(shares, func(i, j int) bool {
		return shares[i].Value.GreaterThan(shares[j].Value)
	})

	if len(shares) <= BreakdownLimit {
		return shares
	}

	other := decimal.Zero
	for _, s := range shares[BreakdownLimit:] {
		other = other.Add(s.Value)
	}
	top := shares[:BreakdownLimit:BreakdownLimit]
	if other.IsZero() {
		return top
	}
	return append(top, CostShare{Name: OtherBucketName, Value: other})
}

// History recomputes the aggregate cost at each of the last n distinct
// purchase dates, substituting for every ingredient the most recent
// historical purchase price at or before that date. The current live cost is
// appended as the final point only if it differs from the last historical
// point or the last date is not today.
//
// Purchase slices must be ordered ascending by date, as the store returns
// them.
func (a *Aggregator) History(
	w Weights,
	ledger Ledger,
	purchases map[recipe.IngredientID][]recipe.PurchaseRecord,
	n int,
	today time.Time,
) []CostPoint {
	dates := distinctPurchaseDates(w, purchases, n)

	points := make([]CostPoint, 0, len(dates)+1)
	for _, d := range dates {
		cost := decimal.Zero
		for id, grams := range w {
			unit := unitCostAt(purchases[id], d)
			cost = cost.Add(unit.Mul(decimal.NewFromFloat(grams)))
		}
		points = append(points, CostPoint{Date: d, Cost: cost})
	}

	live := a.Cost(w, ledger)
	day := today.Truncate(24 * time.Hour)
	if len(points) == 0 {
		return append(points, CostPoint{Date: day, Cost: live})
	}
	last := points[len(points)-1]
	if !last.Cost.Equal(live) || !last.Date.Equal(day) {
		points = append(points, CostPoint{Date: day, Cost: live})
	}
	return points
}

// distinctPurchaseDates returns the last n distinct purchase dates (day
// precision) across the ingredients present in w, ascending.
func distinctPurchaseDates(w Weights, purchases map[recipe.IngredientID][]recipe.PurchaseRecord, n int) []time.Time {
	seen := make(map[time.Time]bool)
	for id := range w {
		for _, p := range purchases[id] {
			seen[p.PurchasedAt.Truncate(24*time.Hour)] = true
		}
	}
	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	if n > 0 && len(dates) > n {
		dates = dates[len(dates)-n:]
	}
	return dates
}

// unitCostAt returns the unit cost from the most recent purchase at or
// before date, or zero when no purchase qualifies.
func unitCostAt(records []recipe.PurchaseRecord, date time.Time) decimal.Decimal {
	unit := decimal.Zero
	for _, p := range records {
		if p.PurchasedAt.Truncate(24 * time.Hour).After(date) {
			break
		}
		unit = p.UnitCost()
	}
	return unit
}
