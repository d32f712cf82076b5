package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenledger/ovenledger/internal/recipe"
	"github.com/ovenledger/ovenledger/internal/testutil"
)

func simpleSpec(base float64, mixIns ...recipe.ProductIngredient) ProductSpec {
	return ProductSpec{
		ProductID:       "prod-1",
		Name:            "White Loaf",
		VersionID:       "white-v1",
		BaseDoughWeight: base,
		Ingredients:     mixIns,
	}
}

func TestCalculator_Theoretical_NoLossCorrection(t *testing.T) {
	c := NewCalculator(NewResolver())
	tree := basicDough(0.05)

	// Ratios applied against baseDoughWeight * quantity directly; the loss
	// ratio is ignored in the theoretical view.
	w, err := c.Theoretical(tree, nil, simpleSpec(500), 2)
	require.NoError(t, err)

	assert.InDelta(t, 1000, w.Total(), 0.01)
	assert.InDelta(t, 617.28, w["ing-flour"], 0.01)
}

func TestCalculator_Theoretical_ZeroQuantity(t *testing.T) {
	c := NewCalculator(NewResolver())
	w, err := c.Theoretical(basicDough(0), nil, simpleSpec(500), 0)
	require.NoError(t, err)
	assert.Empty(t, w)
}

func TestCalculator_Theoretical_LossyNestedExtraNotInflated(t *testing.T) {
	c := NewCalculator(NewResolver())

	glaze := testutil.Node("glaze-v1", recipe.KindExtra, 0.2,
		testutil.Leaf("Butter", "ing-butter", 100),
	)
	tree := testutil.Node("bread-v1", recipe.KindMain, 0,
		testutil.Leaf("Flour", "ing-flour", 75),
		testutil.ExtraLink("Glaze", glaze, 25),
	)

	// A perfect batch needs exactly the glaze that ends up on the bread;
	// the glaze's 20% loss does not inflate the theoretical view.
	theo, err := c.Theoretical(tree, nil, simpleSpec(1000), 1)
	require.NoError(t, err)
	assert.InDelta(t, 750, theo["ing-flour"], 0.01)
	assert.InDelta(t, 250, theo["ing-butter"], 0.01)
	assert.InDelta(t, 1000, theo.Total(), 0.01)

	// The physical batch still has to produce the lossy glaze.
	total, err := c.TotalInput(tree, nil, simpleSpec(1000), 1)
	require.NoError(t, err)
	assert.InDelta(t, 312.5, total["ing-butter"], 0.01)

	// The gap lands in the completion plan as process loss, not consumption.
	plan, err := c.PlanCompletion(tree, nil, simpleSpec(1000), 1, 1, 0)
	require.NoError(t, err)
	var butterLoss float64
	for _, post := range plan.Postings {
		if post.IngredientID == "ing-butter" && post.Reason == ReasonProcessLoss {
			butterLoss = post.Grams
		}
	}
	assert.InDelta(t, 62.5, butterLoss, 0.01)
}

func TestCalculator_Theoretical_LossyPreDoughNotInflated(t *testing.T) {
	c := NewCalculator(NewResolver())

	poolish := testutil.Node("poolish-v1", recipe.KindPreDough, 0.2,
		testutil.Leaf("Flour", "ing-flour", 100),
		testutil.Leaf("Water", "ing-water", 100),
	)
	tree := testutil.Node("bread-v1", recipe.KindMain, 0,
		testutil.Leaf("Flour", "ing-flour", 70),
		testutil.PreDoughLink("Poolish", poolish, 30, 0.3),
		testutil.Leaf("Water", "ing-water", 40),
	)

	// Flour reference is 1000 g; 30% of it routes through the poolish,
	// which contributes flour 300 + water 300 without its loss inversion.
	w, err := c.Theoretical(tree, nil, simpleSpec(1400), 1)
	require.NoError(t, err)
	assert.InDelta(t, 1000, w["ing-flour"], 0.01)
	assert.InDelta(t, 700, w["ing-water"], 0.01)
}

func TestCalculator_TotalInput_InflatesForLossAndDivision(t *testing.T) {
	c := NewCalculator(NewResolver())
	tree := basicDough(0.05)
	tree.Components[0].DivisionLoss = 50

	// (2*500 + 50) / 0.95 = 1105.26 g of physical input.
	w, err := c.TotalInput(tree, nil, simpleSpec(500), 2)
	require.NoError(t, err)
	assert.InDelta(t, 1105.26, w.Total(), 0.01)
}

func TestCalculator_TotalInput_DegenerateLossContributesZero(t *testing.T) {
	c := NewCalculator(NewResolver())
	w, err := c.TotalInput(basicDough(1.0), nil, simpleSpec(500), 2)
	require.NoError(t, err)
	assert.Empty(t, w)
}

func TestCalculator_Unit_SingleUnitWithLoss(t *testing.T) {
	c := NewCalculator(NewResolver())

	w, err := c.Unit(basicDough(0.05), nil, simpleSpec(1000))
	require.NoError(t, err)
	assert.InDelta(t, 1052.63, w.Total(), 0.01)
}

func TestCalculator_MixIns_ScaleAgainstFlourReference(t *testing.T) {
	c := NewCalculator(NewResolver())

	// Mix-ins are a percentage of the dough's flour weight, not of the dough.
	spec := simpleSpec(1000, recipe.ProductIngredient{
		Name: "Walnuts", IngredientID: "ing-walnut", Ratio: 10,
	})

	w, err := c.Theoretical(basicDough(0), nil, spec, 1)
	require.NoError(t, err)

	// Flour reference is 617.28 g; 10% of that is the walnut weight.
	assert.InDelta(t, 61.73, w["ing-walnut"], 0.01)
}

func TestCalculator_MixIns_LinkedExtraResolvesThroughTreeSource(t *testing.T) {
	c := NewCalculator(NewResolver())

	streusel := testutil.Node("streusel-v1", recipe.KindExtra, 0.2,
		testutil.Leaf("Butter", "ing-butter", 50),
		testutil.Leaf("Sugar", "ing-sugar", 50),
	)
	trees := func(id recipe.VersionID) *recipe.ResolvedNode {
		if id == "streusel-v1" {
			return streusel
		}
		return nil
	}
	spec := simpleSpec(1000, recipe.ProductIngredient{
		Name: "Streusel", LinkedFamilyID: "fam-streusel", LinkedVersionID: "streusel-v1", Ratio: 10,
	})

	// Unit view inflates the extra by its own loss ratio.
	w, err := c.Unit(basicDough(0), nil, spec)
	require.NoError(t, err)
	assert.NotContains(t, w, recipe.IngredientID("ing-butter"))

	w, err = c.Unit(basicDough(0), trees, spec)
	require.NoError(t, err)
	assert.InDelta(t, 61.73/0.8/2, w["ing-butter"], 0.01)
	assert.InDelta(t, 61.73/0.8/2, w["ing-sugar"], 0.01)
}

func TestCalculator_PlanCompletion_ViewsSum(t *testing.T) {
	c := NewCalculator(NewResolver())
	tree := basicDough(0.05)
	tree.Components[0].DivisionLoss = 20
	spec := simpleSpec(500)

	// 10 scheduled, 8 completed, 1 spoiled: the gap is process loss.
	plan, err := c.PlanCompletion(tree, nil, spec, 10, 8, 1)
	require.NoError(t, err)

	for _, id := range plan.TotalInput.IDs() {
		var posted float64
		for _, p := range plan.Postings {
			if p.IngredientID == id {
				posted += p.Grams
			}
		}
		assert.InDelta(t, plan.TotalInput[id], posted, Epsilon, "ingredient %s", id)
	}

	// Postings are ordered by ingredient id, consumption before spoilage
	// before process loss.
	require.Len(t, plan.Postings, 9)
	assert.Equal(t, recipe.IngredientID("ing-flour"), plan.Postings[0].IngredientID)
	assert.Equal(t, ReasonConsumption, plan.Postings[0].Reason)
	assert.Equal(t, ReasonSpoilage, plan.Postings[1].Reason)
	assert.Equal(t, ReasonProcessLoss, plan.Postings[2].Reason)
}

func TestCalculator_PlanCompletion_NoSpoilage(t *testing.T) {
	c := NewCalculator(NewResolver())
	plan, err := c.PlanCompletion(basicDough(0), nil, simpleSpec(500), 4, 4, 0)
	require.NoError(t, err)

	for _, p := range plan.Postings {
		assert.Equal(t, ReasonConsumption, p.Reason)
		assert.GreaterOrEqual(t, p.Grams, Epsilon)
	}
	// With no loss ratio, no division loss and full completion, the total
	// input is fully explained by consumption.
	assert.InDelta(t, 2000, plan.TotalInput.Total(), 0.01)
	assert.InDelta(t, 2000, plan.Completed.Total(), 0.01)
}

func TestCalculator_PlanCompletion_EpsilonFloor(t *testing.T) {
	c := NewCalculator(NewResolver())

	// A sub-epsilon batch produces no postings at all.
	tree := testutil.Node("tiny-v1", recipe.KindMain, 0,
		testutil.Leaf("Flour", "ing-flour", 100),
	)
	plan, err := c.PlanCompletion(tree, nil, simpleSpec(0.004), 1, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, plan.Postings)
}

func TestCalculator_PlanCompletion_CyclePropagates(t *testing.T) {
	c := NewCalculator(NewResolver())

	a := testutil.Node("a-v1", recipe.KindMain, 0,
		testutil.Leaf("Flour", "ing-flour", 100),
	)
	b := testutil.Node("b-v1", recipe.KindExtra, 0,
		testutil.ExtraLink("Back to A", a, 100),
	)
	a.Components[0].Ingredients = append(a.Components[0].Ingredients,
		testutil.ExtraLink("B", b, 50))

	_, err := c.PlanCompletion(a, nil, simpleSpec(500), 1, 1, 0)
	require.Error(t, err)
	assert.True(t, IsCycle(err))
}
