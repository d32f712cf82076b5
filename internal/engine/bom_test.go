package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenledger/ovenledger/internal/recipe"
	"github.com/ovenledger/ovenledger/internal/testutil"
)

func TestAggregateBOM_GroupsAndSplitsByClass(t *testing.T) {
	flour := testutil.Ingredient("ing-flour", "Flour", 25000, "20.00")
	salt := testutil.Ingredient("ing-salt", "Salt", 1000, "0.80")
	water := testutil.Ingredient("ing-water", "Water", 0, "0.00")
	water.Class = recipe.ClassNonInventoried
	sour := testutil.Ingredient("ing-sour", "Sourdough", 2000, "3.00")
	sour.Class = recipe.ClassSelfMade

	ledger := Ledger{
		"ing-flour": flour,
		"ing-salt":  salt,
		"ing-water": water,
		"ing-sour":  sour,
	}

	perTask := []Weights{
		{"ing-flour": 600, "ing-water": 400, "ing-salt": 10},
		{"ing-flour": 400, "ing-sour": 150},
	}

	bom := AggregateBOM(perTask, ledger)

	// Self-made rows are stocked and sit with the standard rows; rows sort
	// descending by required weight within each split.
	require.Len(t, bom.Standard, 3)
	assert.Equal(t, recipe.IngredientID("ing-flour"), bom.Standard[0].IngredientID)
	assert.InDelta(t, 1000, bom.Standard[0].RequiredGrams, 0.01)
	assert.InDelta(t, 25000, bom.Standard[0].StockGrams, 0.01)
	assert.Equal(t, recipe.IngredientID("ing-sour"), bom.Standard[1].IngredientID)
	assert.Equal(t, recipe.IngredientID("ing-salt"), bom.Standard[2].IngredientID)

	require.Len(t, bom.NonInventoried, 1)
	assert.Equal(t, recipe.IngredientID("ing-water"), bom.NonInventoried[0].IngredientID)
	assert.InDelta(t, 400, bom.NonInventoried[0].RequiredGrams, 0.01)
	assert.Zero(t, bom.NonInventoried[0].StockGrams)
}

func TestAggregateBOM_DropsNoiseAndUnknownIngredients(t *testing.T) {
	ledger := Ledger{
		"ing-flour": testutil.Ingredient("ing-flour", "Flour", 25000, "20.00"),
	}
	perTask := []Weights{
		{"ing-flour": 0.005}, // below the posting floor
		{"ing-unknown": 500}, // not in the ledger
	}

	bom := AggregateBOM(perTask, ledger)
	assert.Empty(t, bom.Standard)
	assert.Empty(t, bom.NonInventoried)
}

func TestAggregateBOM_EmptyInput(t *testing.T) {
	bom := AggregateBOM(nil, Ledger{})
	assert.Empty(t, bom.Standard)
	assert.Empty(t, bom.NonInventoried)
}
