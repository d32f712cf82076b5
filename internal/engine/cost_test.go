package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenledger/ovenledger/internal/recipe"
	"github.com/ovenledger/ovenledger/internal/testutil"
)

func TestAggregator_Cost_WeightedAverage(t *testing.T) {
	a := NewAggregator()
	ledger := Ledger{
		"ing-flour": testutil.Ingredient("ing-flour", "Flour", 25000, "20.00"),
		"ing-salt":  testutil.Ingredient("ing-salt", "Salt", 1000, "0.80"),
	}
	w := Weights{"ing-flour": 617.28, "ing-salt": 12.35}

	got := a.Cost(w, ledger)

	// 617.28 * 0.0008 + 12.35 * 0.0008
	want := decimal.NewFromFloat(617.28 * 0.0008).Add(decimal.NewFromFloat(12.35 * 0.0008))
	assert.True(t, got.Sub(want).Abs().LessThan(decimal.NewFromFloat(1e-9)),
		"got %s want %s", got, want)
}

func TestAggregator_Cost_ZeroStockPricesAtZero(t *testing.T) {
	a := NewAggregator()
	ledger := Ledger{
		"ing-yeast": testutil.Ingredient("ing-yeast", "Yeast", 0, "4.20"),
	}

	got := a.Cost(Weights{"ing-yeast": 50}, ledger)
	assert.True(t, got.IsZero(), "got %s", got)
}

func TestAggregator_Cost_MissingIngredientContributesNothing(t *testing.T) {
	a := NewAggregator()
	got := a.Cost(Weights{"ing-unknown": 100}, Ledger{})
	assert.True(t, got.IsZero())
}

func TestAggregator_Breakdown_TopFourPlusOther(t *testing.T) {
	a := NewAggregator()

	// Six ingredients, unit cost 0.001/g each, distinct weights.
	ledger := make(Ledger)
	w := make(Weights)
	weights := map[recipe.IngredientID]float64{
		"ing-a": 600, "ing-b": 500, "ing-c": 400,
		"ing-d": 300, "ing-e": 200, "ing-f": 100,
	}
	for id, grams := range weights {
		ledger[id] = testutil.Ingredient(id, string(id), 1000, "1.00")
		w[id] = grams
	}

	rows := a.Breakdown(w, ledger)
	require.Len(t, rows, 5)

	assert.Equal(t, "ing-a", rows[0].Name)
	assert.Equal(t, "ing-d", rows[3].Name)
	assert.Equal(t, OtherBucketName, rows[4].Name)

	// The rows always sum to the total cost.
	sum := decimal.Zero
	for _, row := range rows {
		sum = sum.Add(row.Value)
	}
	assert.True(t, sum.Equal(a.Cost(w, ledger)), "sum %s total %s", sum, a.Cost(w, ledger))
}

func TestAggregator_Breakdown_FewEntriesStayUncollapsed(t *testing.T) {
	a := NewAggregator()
	ledger := Ledger{
		"ing-a": testutil.Ingredient("ing-a", "A", 1000, "1.00"),
		"ing-b": testutil.Ingredient("ing-b", "B", 1000, "2.00"),
	}

	rows := a.Breakdown(Weights{"ing-a": 100, "ing-b": 100}, ledger)
	require.Len(t, rows, 2)
	assert.Equal(t, "B", rows[0].Name)
	assert.Equal(t, "A", rows[1].Name)
}

func TestAggregator_Breakdown_ZeroRemainderOmitsOther(t *testing.T) {
	a := NewAggregator()

	ledger := make(Ledger)
	w := make(Weights)
	for _, id := range []recipe.IngredientID{"ing-a", "ing-b", "ing-c", "ing-d"} {
		ledger[id] = testutil.Ingredient(id, string(id), 1000, "1.00")
		w[id] = 100
	}
	// Tail entries with zero stock price at zero; the remainder is zero and
	// no "other" row is added.
	ledger["ing-e"] = testutil.Ingredient("ing-e", "ing-e", 0, "0.00")
	ledger["ing-f"] = testutil.Ingredient("ing-f", "ing-f", 0, "0.00")
	w["ing-e"] = 50
	w["ing-f"] = 50

	rows := a.Breakdown(w, ledger)
	assert.Len(t, rows, BreakdownLimit)
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestAggregator_History_SubstitutesHistoricalPrices(t *testing.T) {
	a := NewAggregator()
	ledger := Ledger{
		"ing-flour": testutil.Ingredient("ing-flour", "Flour", 25000, "25.00"),
	}
	w := Weights{"ing-flour": 1000}
	purchases := map[recipe.IngredientID][]recipe.PurchaseRecord{
		"ing-flour": {
			{IngredientID: "ing-flour", Price: decimal.NewFromFloat(20), PackageGrams: 25000, PurchasedAt: day("2026-08-01")},
			{IngredientID: "ing-flour", Price: decimal.NewFromFloat(30), PackageGrams: 25000, PurchasedAt: day("2026-08-15")},
		},
	}
	today := day("2026-08-31")

	points := a.History(w, ledger, purchases, 10, today)
	require.Len(t, points, 3)

	// 2026-08-01 at 20/25000 per gram, 2026-08-15 at 30/25000, then the
	// live cost at 25/25000 appended for today.
	assert.Equal(t, day("2026-08-01"), points[0].Date)
	assert.True(t, points[0].Cost.Equal(decimal.NewFromFloat(0.8)), "got %s", points[0].Cost)
	assert.True(t, points[1].Cost.Equal(decimal.NewFromFloat(1.2)), "got %s", points[1].Cost)
	assert.Equal(t, today, points[2].Date)
	assert.True(t, points[2].Cost.Equal(decimal.NewFromFloat(1)), "got %s", points[2].Cost)
}

func TestAggregator_History_SkipsDuplicateFinalPoint(t *testing.T) {
	a := NewAggregator()
	ledger := Ledger{
		"ing-flour": testutil.Ingredient("ing-flour", "Flour", 25000, "25.00"),
	}
	w := Weights{"ing-flour": 1000}
	today := day("2026-08-31")
	purchases := map[recipe.IngredientID][]recipe.PurchaseRecord{
		"ing-flour": {
			{IngredientID: "ing-flour", Price: decimal.NewFromFloat(25), PackageGrams: 25000, PurchasedAt: today},
		},
	}

	// The live cost equals the last historical point on the same day; no
	// extra point is appended.
	points := a.History(w, ledger, purchases, 10, today)
	require.Len(t, points, 1)
	assert.Equal(t, today, points[0].Date)
}

func TestAggregator_History_NoPurchasesYieldsLivePointOnly(t *testing.T) {
	a := NewAggregator()
	ledger := Ledger{
		"ing-flour": testutil.Ingredient("ing-flour", "Flour", 25000, "25.00"),
	}

	points := a.History(Weights{"ing-flour": 1000}, ledger, nil, 10, day("2026-08-31"))
	require.Len(t, points, 1)
	assert.True(t, points[0].Cost.Equal(decimal.NewFromFloat(1)))
}

func TestAggregator_History_LimitsToLastNDates(t *testing.T) {
	a := NewAggregator()
	ledger := Ledger{
		"ing-flour": testutil.Ingredient("ing-flour", "Flour", 25000, "25.00"),
	}
	var records []recipe.PurchaseRecord
	for _, d := range []string{"2026-08-01", "2026-08-05", "2026-08-10", "2026-08-15"} {
		records = append(records, recipe.PurchaseRecord{
			IngredientID: "ing-flour",
			Price:        decimal.NewFromFloat(20),
			PackageGrams: 25000,
			PurchasedAt:  day(d),
		})
	}
	purchases := map[recipe.IngredientID][]recipe.PurchaseRecord{"ing-flour": records}

	points := a.History(Weights{"ing-flour": 1000}, ledger, purchases, 2, day("2026-08-31"))
	require.Len(t, points, 3)
	assert.Equal(t, day("2026-08-10"), points[0].Date)
	assert.Equal(t, day("2026-08-15"), points[1].Date)
}
