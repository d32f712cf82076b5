package recipe

import (
	"time"

	"github.com/shopspring/decimal"
)

// Identifier types for the recipe read model. IDs are opaque strings;
// task and snapshot ids are UUIDs, catalog ids come from authored data.
type (
	FamilyID     string
	VersionID    string
	ComponentID  string
	IngredientID string
	ProductID    string
	TaskID       string
)

// InventoryClass describes how an ingredient's stock is tracked.
type InventoryClass string

const (
	// ClassStandard is a purchased, stock-tracked ingredient.
	ClassStandard InventoryClass = "STANDARD"

	// ClassNonInventoried is consumed but never stock-tracked (e.g. tap water).
	ClassNonInventoried InventoryClass = "NON_INVENTORIED"

	// ClassSelfMade is produced in-house by another recipe; stock increases
	// when the producing task completes.
	ClassSelfMade InventoryClass = "SELF_MADE"
)

// RecipeCategory partitions families into product lines. Tasks may not mix
// categories.
type RecipeCategory string

const (
	CategoryBread RecipeCategory = "BREAD"
	CategoryOther RecipeCategory = "OTHER"
)

// RecipeKind distinguishes how a family is used inside a tree.
type RecipeKind string

const (
	// KindMain is a sellable product's base recipe.
	KindMain RecipeKind = "MAIN"

	// KindPreDough is a sub-recipe scaled by a fraction of the parent's
	// flour weight.
	KindPreDough RecipeKind = "PRE_DOUGH"

	// KindExtra is a sub-recipe scaled by baker's percentage, produced as an
	// independent batch.
	KindExtra RecipeKind = "EXTRA"
)

// Ingredient is a base item from the ingredient ledger.
//
// Stock value and stock weight together define the weighted-average unit
// cost; a zero stock weight means the unit cost cannot be computed and is
// treated as zero, not as an error.
type Ingredient struct {
	ID           IngredientID
	Tenant       string
	Name         string
	IsFlour      bool
	WaterContent float64 // fraction of weight that is water, 0..1
	StockGrams   float64
	StockValue   decimal.Decimal
	Class        InventoryClass
}

// UnitCost returns the weighted-average cost per gram.
// Zero or negative stock weight yields a zero cost.
func (i Ingredient) UnitCost() decimal.Decimal {
	if i.StockGrams <= 0 {
		return decimal.Zero
	}
	return i.StockValue.Div(decimal.NewFromFloat(i.StockGrams))
}

// PurchaseRecord is one historical purchase of an ingredient.
type PurchaseRecord struct {
	IngredientID IngredientID
	Price        decimal.Decimal
	PackageGrams float64
	PurchasedAt  time.Time
}

// UnitCost returns the cost per gram implied by this purchase.
func (p PurchaseRecord) UnitCost() decimal.Decimal {
	if p.PackageGrams <= 0 {
		return decimal.Zero
	}
	return p.Price.Div(decimal.NewFromFloat(p.PackageGrams))
}

// Family is a named, versioned recipe definition.
type Family struct {
	ID       FamilyID
	Tenant   string
	Name     string
	Category RecipeCategory
	Kind     RecipeKind

	// OutputIngredientID links the family to the ledger item representing
	// its own output (self-produced stock). Empty when not linked.
	OutputIngredientID IngredientID

	// ActiveVersionID is the single active version; exactly one per family.
	ActiveVersionID VersionID

	// Discontinued families may not be referenced by new or edited tasks.
	Discontinued bool
}

// ComponentIngredient is one line of a component: either a leaf reference to
// a base ingredient, or a link to another family's active version.
//
// Exactly one of IngredientID and LinkedFamilyID is set. For links,
// LinkedVersionID carries the linked family's active version as resolved by
// the read model, and LinkKind says whether the link is scaled as a pre-dough
// (FlourRatio) or an extra (Ratio).
type ComponentIngredient struct {
	Name            string
	IngredientID    IngredientID
	LinkedFamilyID  FamilyID
	LinkedVersionID VersionID
	LinkKind        RecipeKind

	// Ratio is the baker's percentage relative to the component's flour
	// weight (100 = same weight as flour). Used for leaves and extras.
	Ratio float64

	// FlourRatio is the fraction of the parent's flour weight routed into a
	// linked pre-dough. Used only when LinkKind is KindPreDough.
	FlourRatio float64
}

// IsLink reports whether the line references another recipe family.
func (ci ComponentIngredient) IsLink() bool { return ci.LinkedFamilyID != "" }

// Component is a named stage of a recipe version (e.g. a dough).
type Component struct {
	ID   ComponentID
	Name string

	// LossRatio is the fraction of input weight lost during processing,
	// 0 <= r < 1 for well-formed data.
	LossRatio float64

	// DivisionLoss is the absolute weight in grams lost when portioning
	// a batch into units.
	DivisionLoss float64

	Ingredients []ComponentIngredient
}

// TotalRatio sums the baker's percentages of all lines, links included.
func (c Component) TotalRatio() float64 {
	var total float64
	for _, ci := range c.Ingredients {
		total += ci.Ratio
	}
	return total
}

// Product is a sellable item bound to one recipe version.
type Product struct {
	ID       ProductID
	Tenant   string
	Name     string
	FamilyID FamilyID

	// VersionID is the recipe version the product was authored against.
	VersionID VersionID

	Category RecipeCategory

	// BaseDoughWeight is the target output weight in grams of the main
	// component for a single unit.
	BaseDoughWeight float64

	// Ingredients are mix-ins, fillings and toppings applied on top of the
	// base dough, each specified as a percentage of the dough's flour weight.
	Ingredients []ProductIngredient
}

// ProductIngredient is a mix-in line on a product: a base ingredient or an
// extra family, scaled by baker's percentage of the product's flour weight.
type ProductIngredient struct {
	Name            string
	IngredientID    IngredientID
	LinkedFamilyID  FamilyID
	LinkedVersionID VersionID
	Ratio           float64
}

// IsLink reports whether the line references another recipe family.
func (pi ProductIngredient) IsLink() bool { return pi.LinkedFamilyID != "" }
