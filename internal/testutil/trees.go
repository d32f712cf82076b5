// Package testutil provides recipe fixture builders and an in-memory
// version source shared by engine, snapshot and service tests.
package testutil

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ovenledger/ovenledger/internal/recipe"
)

// Leaf builds a base-ingredient line at the given baker's percentage.
func Leaf(name string, id recipe.IngredientID, ratio float64) recipe.ResolvedIngredient {
	return recipe.ResolvedIngredient{Name: name, IngredientID: id, Ratio: ratio}
}

// PreDoughLink builds a pre-dough line routing flourRatio of the parent's
// flour weight into sub. ratio contributes to the parent's total ratio the
// way the pre-dough's own ingredients would.
func PreDoughLink(name string, sub *recipe.ResolvedNode, ratio, flourRatio float64) recipe.ResolvedIngredient {
	return recipe.ResolvedIngredient{
		Name:       name,
		LinkKind:   recipe.KindPreDough,
		Ratio:      ratio,
		FlourRatio: flourRatio,
		Sub:        sub,
	}
}

// ExtraLink builds an extra line producing sub as an independent batch at
// the given baker's percentage.
func ExtraLink(name string, sub *recipe.ResolvedNode, ratio float64) recipe.ResolvedIngredient {
	return recipe.ResolvedIngredient{
		Name:     name,
		LinkKind: recipe.KindExtra,
		Ratio:    ratio,
		Sub:      sub,
	}
}

// Node builds a resolved version with a single component.
func Node(versionID recipe.VersionID, kind recipe.RecipeKind, lossRatio float64, lines ...recipe.ResolvedIngredient) *recipe.ResolvedNode {
	return &recipe.ResolvedNode{
		VersionID:  versionID,
		FamilyID:   recipe.FamilyID("fam-" + string(versionID)),
		FamilyName: string(versionID),
		Kind:       kind,
		Components: []recipe.ResolvedComponent{{
			ID:          recipe.ComponentID(string(versionID) + "/0"),
			Name:        "main",
			LossRatio:   lossRatio,
			Ingredients: lines,
		}},
	}
}

// Ingredient builds a ledger row with the given stock and value.
func Ingredient(id recipe.IngredientID, name string, stockGrams float64, stockValue string) recipe.Ingredient {
	value, err := decimal.NewFromString(stockValue)
	if err != nil {
		panic("testutil: bad stock value " + stockValue)
	}
	return recipe.Ingredient{
		ID:         id,
		Name:       name,
		StockGrams: stockGrams,
		StockValue: value,
		Class:      recipe.ClassStandard,
	}
}

// VersionSource is an in-memory snapshot.VersionSource that records how
// many fetches were issued and which ids each one asked for.
type VersionSource struct {
	mu    sync.Mutex
	nodes map[recipe.VersionID]*recipe.VersionNode

	Fetches [][]recipe.VersionID
}

// NewVersionSource creates a VersionSource over the given shallow nodes.
func NewVersionSource(nodes ...*recipe.VersionNode) *VersionSource {
	m := make(map[recipe.VersionID]*recipe.VersionNode, len(nodes))
	for _, n := range nodes {
		m[n.ID] = n
	}
	return &VersionSource{nodes: m}
}

// FetchVersions returns the requested nodes that exist and records the
// batch. The tenant is ignored; store tests cover tenant scoping.
func (s *VersionSource) FetchVersions(ctx context.Context, tenant string, ids []recipe.VersionID) (map[recipe.VersionID]*recipe.VersionNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := append([]recipe.VersionID(nil), ids...)
	s.Fetches = append(s.Fetches, batch)

	out := make(map[recipe.VersionID]*recipe.VersionNode, len(ids))
	for _, id := range ids {
		if n, ok := s.nodes[id]; ok {
			out[id] = n
		}
	}
	return out, nil
}

// FetchCount returns the number of bulk fetches issued so far.
func (s *VersionSource) FetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Fetches)
}

// ShallowNode builds a shallow version with a single component.
func ShallowNode(versionID recipe.VersionID, familyID recipe.FamilyID, kind recipe.RecipeKind, lossRatio float64, lines ...recipe.ComponentIngredient) *recipe.VersionNode {
	return &recipe.VersionNode{
		ID:         versionID,
		FamilyID:   familyID,
		FamilyName: string(familyID),
		Kind:       kind,
		Components: []recipe.Component{{
			ID:          recipe.ComponentID(string(versionID) + "/0"),
			Name:        "main",
			LossRatio:   lossRatio,
			Ingredients: lines,
		}},
	}
}

// ShallowLeaf builds a shallow base-ingredient line.
func ShallowLeaf(name string, id recipe.IngredientID, ratio float64) recipe.ComponentIngredient {
	return recipe.ComponentIngredient{Name: name, IngredientID: id, Ratio: ratio}
}

// ShallowLink builds a shallow link line to another family's version.
func ShallowLink(name string, familyID recipe.FamilyID, versionID recipe.VersionID, kind recipe.RecipeKind, ratio, flourRatio float64) recipe.ComponentIngredient {
	return recipe.ComponentIngredient{
		Name:            name,
		LinkedFamilyID:  familyID,
		LinkedVersionID: versionID,
		LinkKind:        kind,
		Ratio:           ratio,
		FlourRatio:      flourRatio,
	}
}
