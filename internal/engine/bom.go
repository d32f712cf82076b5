package engine

import (
	"sort"

	"github.com/ovenledger/ovenledger/internal/recipe"
)

// BOMRow is one procurement line of a bill of materials.
type BOMRow struct {
	IngredientID  recipe.IngredientID `json:"ingredient_id"`
	Name          string              `json:"name"`
	RequiredGrams float64             `json:"required_g"`

	// StockGrams carries the current stock for stock-tracked rows so the
	// procurement delta can be read off directly. Zero for other classes.
	StockGrams float64 `json:"stock_g,omitempty"`

	Class recipe.InventoryClass `json:"class"`
}

// BillOfMaterials is the aggregated procurement list across all tasks
// active on a date, split by inventory-tracking class. Self-made
// ingredients are stocked items and appear with the standard rows.
type BillOfMaterials struct {
	Standard       []BOMRow `json:"standard"`
	NonInventoried []BOMRow `json:"non_inventoried"`
}

// AggregateBOM folds per-task total-input consumption into a bill of
// materials. Rows are grouped by ingredient and sorted descending by
// required weight within each class split.
func AggregateBOM(perTask []Weights, ledger Ledger) *BillOfMaterials {
	required := make(Weights)
	for _, w := range perTask {
		required.Merge(w)
	}

	bom := &BillOfMaterials{}
	for _, id := range required.IDs() {
		grams := required[id]
		if grams < Epsilon {
			continue
		}
		ing, ok := ledger[id]
		if !ok {
			continue
		}
		row := BOMRow{
			IngredientID:  id,
			Name:          ing.Name,
			RequiredGrams: grams,
			Class:         ing.Class,
		}
		switch ing.Class {
		case recipe.ClassNonInventoried:
			bom.NonInventoried = append(bom.NonInventoried, row)
		default:
			row.StockGrams = ing.StockGrams
			bom.Standard = append(bom.Standard, row)
		}
	}

	byRequired := func(rows []BOMRow) {
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i].RequiredGrams > rows[j].RequiredGrams
		})
	}
	byRequired(bom.Standard)
	byRequired(bom.NonInventoried)
	return bom
}
