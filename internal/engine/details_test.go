package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenledger/ovenledger/internal/recipe"
	"github.com/ovenledger/ovenledger/internal/testutil"
)

func TestResolver_Detail_PricesLeafLines(t *testing.T) {
	r := NewResolver()
	ledger := Ledger{
		"ing-flour": testutil.Ingredient("ing-flour", "Flour", 25000, "20.00"),
		"ing-water": testutil.Ingredient("ing-water", "Water", 0, "0.00"),
		"ing-salt":  testutil.Ingredient("ing-salt", "Salt", 1000, "0.80"),
	}

	d, err := r.Detail(basicDough(0), 1000, ledger)
	require.NoError(t, err)

	assert.InDelta(t, 1000, d.TotalInput, 0.01)
	assert.InDelta(t, 1000, d.TargetOutput, 0.01)
	assert.InDelta(t, 617.28, d.FlourWeight, 0.01)
	require.Len(t, d.Lines, 3)

	assert.Equal(t, "Flour", d.Lines[0].Name)
	assert.InDelta(t, 617.28, d.Lines[0].Grams, 0.01)
	assert.InDelta(t, 370.37, d.Lines[1].Grams, 0.01)
	assert.InDelta(t, 12.35, d.Lines[2].Grams, 0.01)

	// Node cost is the sum of its line costs.
	sum := decimal.Zero
	for _, l := range d.Lines {
		sum = sum.Add(l.Cost)
	}
	assert.True(t, d.Cost.Equal(sum), "node %s lines %s", d.Cost, sum)

	// Water has zero stock and prices at zero.
	assert.True(t, d.Lines[1].Cost.IsZero())
}

func TestResolver_Detail_LossSplitsInputAndOutput(t *testing.T) {
	r := NewResolver()

	d, err := r.Detail(basicDough(0.05), 1000, Ledger{})
	require.NoError(t, err)

	assert.InDelta(t, 1052.63, d.TotalInput, 0.01)
	assert.InDelta(t, 1000, d.TargetOutput, 0.01)
}

func TestResolver_Detail_NestedSubtrees(t *testing.T) {
	r := NewResolver()
	ledger := Ledger{
		"ing-flour":  testutil.Ingredient("ing-flour", "Flour", 25000, "20.00"),
		"ing-water":  testutil.Ingredient("ing-water", "Water", 0, "0.00"),
		"ing-butter": testutil.Ingredient("ing-butter", "Butter", 5000, "40.00"),
	}

	poolish := testutil.Node("poolish-v1", recipe.KindPreDough, 0,
		testutil.Leaf("Flour", "ing-flour", 100),
		testutil.Leaf("Water", "ing-water", 100),
	)
	filling := testutil.Node("filling-v1", recipe.KindExtra, 0,
		testutil.Leaf("Butter", "ing-butter", 100),
	)
	parent := testutil.Node("root-v1", recipe.KindMain, 0,
		testutil.Leaf("Flour", "ing-flour", 70),
		testutil.PreDoughLink("Poolish", poolish, 30, 0.3),
		testutil.ExtraLink("Filling", filling, 20),
	)

	d, err := r.Detail(parent, 1200, ledger)
	require.NoError(t, err)
	require.Len(t, d.Lines, 3)

	// Total ratio 120 over 1200 g input: per-point 10, flour reference 1000.
	assert.InDelta(t, 1000, d.FlourWeight, 0.01)

	pre := d.Lines[1]
	require.NotNil(t, pre.Sub)
	// 30% of the flour reference routed in, scaled by the poolish's own
	// total ratio: 300 * 200/100 = 600 g of pre-dough batch.
	assert.InDelta(t, 600, pre.Grams, 0.01)
	assert.InDelta(t, 600, pre.Sub.TotalInput, 0.01)

	extra := d.Lines[2]
	require.NotNil(t, extra.Sub)
	assert.InDelta(t, 200, extra.Grams, 0.01)
	assert.True(t, extra.Cost.Equal(extra.Sub.Cost))

	// The parent's cost folds in both subtrees.
	want := d.Lines[0].Cost.Add(pre.Cost).Add(extra.Cost)
	assert.True(t, d.Cost.Equal(want))
}

func TestResolver_Detail_DegenerateNodeKeepsIdentity(t *testing.T) {
	r := NewResolver()

	d, err := r.Detail(testutil.Node("empty-v1", recipe.KindMain, 0), 1000, Ledger{})
	require.NoError(t, err)
	assert.Equal(t, recipe.VersionID("empty-v1"), d.VersionID)
	assert.Zero(t, d.TotalInput)
	assert.Empty(t, d.Lines)
}

func TestResolver_Detail_CycleIsHardError(t *testing.T) {
	r := NewResolver()

	a := testutil.Node("a-v1", recipe.KindMain, 0,
		testutil.Leaf("Flour", "ing-flour", 100),
	)
	b := testutil.Node("b-v1", recipe.KindExtra, 0,
		testutil.ExtraLink("Back to A", a, 100),
	)
	a.Components[0].Ingredients = append(a.Components[0].Ingredients,
		testutil.ExtraLink("B", b, 50))

	_, err := r.Detail(a, 1000, Ledger{})
	require.Error(t, err)
	assert.True(t, IsCycle(err))
}
