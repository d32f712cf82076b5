package catalog

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenledger/ovenledger/internal/recipe"
	"github.com/ovenledger/ovenledger/internal/store"
)

func TestLoad_ValidCatalog(t *testing.T) {
	c, errs := Load(filepath.Join("testdata", "valid"), "bakery-1")
	require.Empty(t, errs)
	require.NotNil(t, c)

	assert.Equal(t, 1, c.FileCount)
	require.Len(t, c.Ingredients, 3)
	require.Len(t, c.Families, 2)
	require.Len(t, c.Products, 1)
	require.Len(t, c.Purchases, 1)

	byID := make(map[recipe.IngredientID]recipe.Ingredient)
	for _, ing := range c.Ingredients {
		byID[ing.ID] = ing
	}
	flour := byID["flour"]
	assert.Equal(t, "Wheat Flour", flour.Name)
	assert.True(t, flour.IsFlour)
	assert.Equal(t, recipe.ClassStandard, flour.Class)
	assert.Equal(t, "bakery-1", flour.Tenant)
	assert.Equal(t, recipe.ClassNonInventoried, byID["water"].Class)

	families := make(map[recipe.FamilyID]familyDef)
	for _, def := range c.Families {
		families[def.Family.ID] = def
	}
	poolish := families["poolish"]
	assert.Equal(t, recipe.KindPreDough, poolish.Family.Kind)
	// Version id defaults to <family>-v1 when not authored.
	assert.Equal(t, recipe.VersionID("poolish-v1"), poolish.Family.ActiveVersionID)
	assert.Equal(t, recipe.VersionID("poolish-v1"), poolish.Version.ID)

	white := families["white"]
	assert.Equal(t, recipe.VersionID("white-v1"), white.Version.ID)
	require.Len(t, white.Version.Components, 1)
	comp := white.Version.Components[0]
	assert.Equal(t, recipe.ComponentID("white-v1/0"), comp.ID)
	assert.Equal(t, 0.05, comp.LossRatio)
	require.Len(t, comp.Ingredients, 4)
	link := comp.Ingredients[1]
	assert.Equal(t, recipe.FamilyID("poolish"), link.LinkedFamilyID)
	assert.Equal(t, 0.3, link.FlourRatio)

	p := c.Products[0]
	assert.Equal(t, recipe.ProductID("white-loaf"), p.ID)
	assert.Equal(t, 500.0, p.BaseDoughWeight)
	require.Len(t, p.Ingredients, 1)
	assert.Equal(t, recipe.IngredientID("salt"), p.Ingredients[0].IngredientID)

	assert.Equal(t, recipe.IngredientID("flour"), c.Purchases[0].IngredientID)
	assert.Equal(t, 25000.0, c.Purchases[0].PackageGrams)
}

func TestLoad_MissingDirectory(t *testing.T) {
	_, errs := Load(filepath.Join("testdata", "nope"), "bakery-1")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "definitions directory")
}

func TestLoad_CollectsAllDefects(t *testing.T) {
	_, errs := Load(filepath.Join("testdata", "broken"), "bakery-1")
	require.NotEmpty(t, errs)

	joined := make([]string, 0, len(errs))
	for _, err := range errs {
		joined = append(joined, err.Error())
	}
	all := strings.Join(joined, "\n")

	// One pass reports every authored defect, not just the first.
	assert.Contains(t, all, "water_content")
	assert.Contains(t, all, `unknown class "MYSTERY"`)
	assert.Contains(t, all, "loss_ratio")
	assert.Contains(t, all, "family levain does not exist")
	assert.Contains(t, all, "base dough weight must be positive")
	assert.Contains(t, all, "unknown ingredient butter")
	assert.Contains(t, all, "package weight must be positive")
}

func TestCatalog_Validate_FamilyCycle(t *testing.T) {
	c := &Catalog{
		Families: []familyDef{
			{
				Family: recipe.Family{ID: "a", Name: "A", Category: recipe.CategoryBread, Kind: recipe.KindMain},
				Version: recipe.VersionNode{ID: "a-v1", FamilyID: "a", Components: []recipe.Component{{
					ID: "a-v1/0", Name: "main",
					Ingredients: []recipe.ComponentIngredient{
						{Name: "B", LinkedFamilyID: "b", Ratio: 20},
					},
				}}},
			},
			{
				Family: recipe.Family{ID: "b", Name: "B", Category: recipe.CategoryBread, Kind: recipe.KindExtra},
				Version: recipe.VersionNode{ID: "b-v1", FamilyID: "b", Components: []recipe.Component{{
					ID: "b-v1/0", Name: "main",
					Ingredients: []recipe.ComponentIngredient{
						{Name: "A", LinkedFamilyID: "a", Ratio: 20},
					},
				}}},
			},
		},
	}
	errs := c.validate()
	require.NotEmpty(t, errs)

	var cycle bool
	for _, err := range errs {
		if strings.Contains(err.Error(), "recipe cycle") {
			cycle = true
		}
	}
	assert.True(t, cycle, "want a cycle defect in %v", errs)
}

func TestCatalog_Validate_PreDoughFlourRatio(t *testing.T) {
	pre := familyDef{
		Family: recipe.Family{ID: "poolish", Name: "Poolish", Category: recipe.CategoryBread, Kind: recipe.KindPreDough},
		Version: recipe.VersionNode{ID: "poolish-v1", FamilyID: "poolish", Components: []recipe.Component{{
			ID: "poolish-v1/0", Name: "main",
			Ingredients: []recipe.ComponentIngredient{
				{Name: "Flour", IngredientID: "flour", Ratio: 100},
			},
		}}},
	}
	main := familyDef{
		Family: recipe.Family{ID: "white", Name: "White", Category: recipe.CategoryBread, Kind: recipe.KindMain},
		Version: recipe.VersionNode{ID: "white-v1", FamilyID: "white", Components: []recipe.Component{{
			ID: "white-v1/0", Name: "main",
			Ingredients: []recipe.ComponentIngredient{
				{Name: "Flour", IngredientID: "flour", Ratio: 70},
				{Name: "Poolish", LinkedFamilyID: "poolish", Ratio: 60, FlourRatio: 1.5},
			},
		}}},
	}
	c := &Catalog{
		Ingredients: []recipe.Ingredient{{ID: "flour", Name: "Flour", Class: recipe.ClassStandard}},
		Families:    []familyDef{pre, main},
	}
	errs := c.validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "flour_ratio")
}

func TestCatalog_Validate_ProductCategoryMismatch(t *testing.T) {
	c := &Catalog{
		Ingredients: []recipe.Ingredient{{ID: "flour", Name: "Flour", Class: recipe.ClassStandard}},
		Families: []familyDef{{
			Family: recipe.Family{ID: "white", Name: "White", Category: recipe.CategoryBread, Kind: recipe.KindMain},
			Version: recipe.VersionNode{ID: "white-v1", FamilyID: "white", Components: []recipe.Component{{
				ID: "white-v1/0", Name: "main",
				Ingredients: []recipe.ComponentIngredient{
					{Name: "Flour", IngredientID: "flour", Ratio: 100},
				},
			}}},
		}},
		Products: []recipe.Product{{
			ID: "loaf", Name: "Loaf", FamilyID: "white",
			Category: recipe.CategoryOther, BaseDoughWeight: 500,
		}},
	}
	errs := c.validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "category")
}

func TestCatalog_Seed(t *testing.T) {
	c, errs := Load(filepath.Join("testdata", "valid"), "bakery-1")
	require.Empty(t, errs)

	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()

	require.NoError(t, c.Seed(ctx, st, "bakery-1"))

	flour, err := st.GetIngredient(ctx, "bakery-1", "flour")
	require.NoError(t, err)
	assert.Equal(t, "Wheat Flour", flour.Name)
	assert.True(t, flour.StockValue.Equal(decimal.RequireFromString("20.00")))

	fam, err := st.GetFamily(ctx, "bakery-1", "white")
	require.NoError(t, err)
	assert.Equal(t, recipe.VersionID("white-v1"), fam.ActiveVersionID)

	// The product inherits its family's category at seed time.
	p, err := st.GetProduct(ctx, "bakery-1", "white-loaf")
	require.NoError(t, err)
	assert.Equal(t, recipe.CategoryBread, p.Category)

	purchases, err := st.GetPurchases(ctx, "bakery-1", []recipe.IngredientID{"flour"})
	require.NoError(t, err)
	require.Len(t, purchases["flour"], 1)
	assert.Equal(t, 25000.0, purchases["flour"][0].PackageGrams)

	// Catalog entities upsert cleanly on reload.
	require.NoError(t, c.Seed(ctx, st, "bakery-1"))
	fam, err = st.GetFamily(ctx, "bakery-1", "white")
	require.NoError(t, err)
	assert.Equal(t, recipe.VersionID("white-v1"), fam.ActiveVersionID)
}
