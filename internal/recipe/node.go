package recipe

// Two shapes of the same version exist on purpose (one conversion lives in
// the snapshot assembler):
//
//   - VersionNode is the shallow shape returned by bulk fetches: it carries
//     its own components and ingredient lines, but nested sub-recipes appear
//     only as version ids.
//   - ResolvedNode is fully self-contained: every link holds the resolved
//     subtree inline. A ResolvedNode structurally cannot contain an
//     unresolved reference, so downstream code never casts between shapes.

// VersionNode is a shallow recipe version as fetched from the store.
type VersionNode struct {
	ID         VersionID
	FamilyID   FamilyID
	FamilyName string
	Kind       RecipeKind
	Components []Component
}

// LinkedVersionIDs returns the ids of all directly referenced sub-recipe
// versions, in declaration order, duplicates included.
func (n *VersionNode) LinkedVersionIDs() []VersionID {
	var ids []VersionID
	for _, c := range n.Components {
		for _, ci := range c.Ingredients {
			if ci.IsLink() && ci.LinkedVersionID != "" {
				ids = append(ids, ci.LinkedVersionID)
			}
		}
	}
	return ids
}

// ResolvedNode is a fully stitched recipe version: all sub-recipe links hold
// their resolved subtrees inline.
type ResolvedNode struct {
	VersionID  VersionID           `json:"version_id"`
	FamilyID   FamilyID            `json:"family_id"`
	FamilyName string              `json:"family_name"`
	Kind       RecipeKind          `json:"kind"`
	Components []ResolvedComponent `json:"components"`
}

// ResolvedComponent mirrors Component with resolved ingredient lines.
type ResolvedComponent struct {
	ID           ComponentID          `json:"id"`
	Name         string               `json:"name"`
	LossRatio    float64              `json:"loss_ratio"`
	DivisionLoss float64              `json:"division_loss,omitempty"`
	Ingredients  []ResolvedIngredient `json:"ingredients"`
}

// TotalRatio sums the baker's percentages of all lines, links included.
func (c ResolvedComponent) TotalRatio() float64 {
	var total float64
	for _, ci := range c.Ingredients {
		total += ci.Ratio
	}
	return total
}

// ResolvedIngredient is one line of a resolved component. Leaves carry an
// IngredientID; links carry the resolved subtree in Sub.
type ResolvedIngredient struct {
	Name         string        `json:"name"`
	IngredientID IngredientID  `json:"ingredient_id,omitempty"`
	LinkKind     RecipeKind    `json:"link_kind,omitempty"`
	Ratio        float64       `json:"ratio,omitempty"`
	FlourRatio   float64       `json:"flour_ratio,omitempty"`
	Sub          *ResolvedNode `json:"sub,omitempty"`
}

// IsLink reports whether the line holds a resolved sub-recipe.
func (ri ResolvedIngredient) IsLink() bool { return ri.Sub != nil }

// RootComponent returns the first component, which by convention is the main
// stage the target output weight applies to. Nil when the version has no
// components.
func (n *ResolvedNode) RootComponent() *ResolvedComponent {
	if n == nil || len(n.Components) == 0 {
		return nil
	}
	return &n.Components[0]
}
