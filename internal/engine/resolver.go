package engine

import (
	"log/slog"
	"sort"

	"github.com/ovenledger/ovenledger/internal/recipe"
)

// DefaultMaxDepth bounds recursion through nested sub-recipes. Authored
// trees are a handful of levels deep; the bound exists so a defective tree
// fails with a diagnostic instead of exhausting the stack.
const DefaultMaxDepth = 64

// Weights maps base ingredient ids to absolute weights in grams, summed
// across every occurrence of the ingredient in the tree.
type Weights map[recipe.IngredientID]float64

// Add accumulates grams for an ingredient.
func (w Weights) Add(id recipe.IngredientID, grams float64) {
	w[id] += grams
}

// Merge folds other into w.
func (w Weights) Merge(other Weights) {
	for id, grams := range other {
		w[id] += grams
	}
}

// Total returns the sum over all ingredients.
func (w Weights) Total() float64 {
	var total float64
	for _, grams := range w {
		total += grams
	}
	return total
}

// IDs returns the ingredient ids in deterministic order.
func (w Weights) IDs() []recipe.IngredientID {
	ids := make([]recipe.IngredientID, 0, len(w))
	for id := range w {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Resolver flattens resolved recipe trees into base-ingredient weights.
//
// Resolution is pure computation over an already-stitched tree: no I/O, no
// shared state across calls. Degenerate authored data (zero total ratio,
// loss divisor <= 0, missing ingredient or sub-recipe reference) contributes
// zero weight for that subtree, so a half-authored recipe prices low
// instead of failing. A version revisited along a single
// traversal path is a hard CYCLE_DETECTED error: a silently truncated tree
// would produce a wrong cost or bill of materials.
type Resolver struct {
	maxDepth int
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithMaxDepth sets the recursion depth bound.
func WithMaxDepth(n int) ResolverOption {
	return func(r *Resolver) { r.maxDepth = n }
}

// NewResolver creates a Resolver.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// entryMode says how the amount passed into a node is interpreted.
type entryMode int

const (
	// entryTarget: amount is the weight leaving the node's root component
	// after loss; input is amount / (1 - lossRatio).
	entryTarget entryMode = iota

	// entryInput: amount is the total input weight, distributed by ratios
	// directly. Used for the theoretical (no-loss) consumption view.
	entryInput

	// entryFlour: amount is the flour-weight reference routed into a
	// pre-dough; input is amount * totalRatio/100, inflated by the node's
	// own loss ratio.
	entryFlour
)

// Flatten resolves node's root component at targetOutputWeight (the weight
// leaving the component after loss) into absolute base-ingredient weights.
func (r *Resolver) Flatten(node *recipe.ResolvedNode, targetOutputWeight float64) (Weights, error) {
	return r.flattenNode(node, entryTarget, targetOutputWeight, false, nil, 0)
}

// FlattenInput resolves node's root component with totalInputWeight
// distributed by ratios directly, skipping the root loss inversion. Nested
// sub-recipes still apply their own loss ratios: the batch physically has
// to produce them.
func (r *Resolver) FlattenInput(node *recipe.ResolvedNode, totalInputWeight float64) (Weights, error) {
	return r.flattenNode(node, entryInput, totalInputWeight, false, nil, 0)
}

// FlattenNoLoss resolves node with totalInputWeight distributed by ratios
// directly at every level: loss ratios are ignored for the root and for
// every nested sub-recipe alike. This is the theoretical-view traversal,
// what a perfect batch consumes.
func (r *Resolver) FlattenNoLoss(node *recipe.ResolvedNode, totalInputWeight float64) (Weights, error) {
	return r.flattenNode(node, entryInput, totalInputWeight, true, nil, 0)
}

// FlourWeightRef returns the flour-weight reference of node's root component
// at targetOutputWeight: the absolute weight corresponding to 100% baker's
// percentage, obtained by inverting the total input weight through the total
// ratio. Zero when the component is degenerate.
func (r *Resolver) FlourWeightRef(node *recipe.ResolvedNode, targetOutputWeight float64) float64 {
	root := node.RootComponent()
	if root == nil {
		return 0
	}
	divisor := 1 - root.LossRatio
	if divisor <= 0 {
		return 0
	}
	totalRatio := root.TotalRatio()
	if totalRatio <= 0 {
		return 0
	}
	return targetOutputWeight / divisor / totalRatio * 100
}

// flattenNode enters a node, translates the amount for its root component
// per mode, and recurses. noLoss suppresses every loss inversion along the
// traversal. path is the chain of version ids currently being resolved; a
// revisit along it is a cycle.
func (r *Resolver) flattenNode(
	node *recipe.ResolvedNode,
	mode entryMode,
	amount float64,
	noLoss bool,
	path []recipe.VersionID,
	depth int,
) (Weights, error) {
	out := make(Weights)
	if node == nil {
		// Missing sub-recipe reference: zero contribution.
		return out, nil
	}
	if depth > r.maxDepth {
		return nil, &Error{
			Code:    ErrCodeDepthExceeded,
			Message: "recipe tree exceeds maximum depth",
			Path:    append(append([]recipe.VersionID{}, path...), node.VersionID),
		}
	}
	for _, seen := range path {
		if seen == node.VersionID {
			return nil, NewCycleError(path, node.VersionID)
		}
	}

	root := node.RootComponent()
	if root == nil {
		return out, nil
	}

	totalInput, ok := r.inputWeight(root, mode, amount, noLoss)
	if !ok {
		slog.Debug("degenerate component skipped",
			"version_id", node.VersionID,
			"component", root.Name,
			"loss_ratio", root.LossRatio,
			"total_ratio", root.TotalRatio(),
		)
		return out, nil
	}

	// Copy-on-append keeps sibling recursions from sharing the backing array.
	subPath := make([]recipe.VersionID, len(path), len(path)+1)
	copy(subPath, path)
	subPath = append(subPath, node.VersionID)

	return r.flattenComponent(root, totalInput, noLoss, subPath, depth)
}

// inputWeight translates the entry amount into the component's total input
// weight. ok is false for degenerate components (zero contribution). With
// noLoss the target and input readings coincide and the loss divisor is
// never consulted.
func (r *Resolver) inputWeight(c *recipe.ResolvedComponent, mode entryMode, amount float64, noLoss bool) (float64, bool) {
	if amount <= 0 {
		return 0, false
	}
	switch mode {
	case entryInput:
		return amount, true
	case entryTarget:
		if noLoss {
			return amount, true
		}
		divisor := 1 - c.LossRatio
		if divisor <= 0 {
			return 0, false
		}
		return amount / divisor, true
	case entryFlour:
		totalRatio := c.TotalRatio()
		if totalRatio <= 0 {
			return 0, false
		}
		if noLoss {
			return amount * totalRatio / 100, true
		}
		divisor := 1 - c.LossRatio
		if divisor <= 0 {
			return 0, false
		}
		return amount * totalRatio / 100 / divisor, true
	}
	return 0, false
}

// flattenComponent distributes totalInput over the component's lines and
// folds the per-line results. Each recursive call returns its own map; the
// caller merges, so no mutable accumulator crosses call boundaries.
func (r *Resolver) flattenComponent(
	c *recipe.ResolvedComponent,
	totalInput float64,
	noLoss bool,
	path []recipe.VersionID,
	depth int,
) (Weights, error) {
	out := make(Weights)
	totalRatio := c.TotalRatio()
	if totalRatio <= 0 {
		return out, nil
	}
	perPoint := totalInput / totalRatio
	flourRef := perPoint * 100

	for _, line := range c.Ingredients {
		switch {
		case !line.IsLink():
			if line.IngredientID == "" {
				// Dangling leaf: zero contribution.
				continue
			}
			out.Add(line.IngredientID, perPoint*line.Ratio)

		case line.LinkKind == recipe.KindPreDough:
			// Route a fraction of this component's flour weight into the
			// pre-dough; the sub-recipe scales itself against that amount.
			sub, err := r.flattenNode(line.Sub, entryFlour, flourRef*line.FlourRatio, noLoss, path, depth+1)
			if err != nil {
				return nil, err
			}
			out.Merge(sub)

		default:
			// Extra: the line's ratio-derived weight is the batch the
			// sub-recipe must yield, losses included.
			sub, err := r.flattenNode(line.Sub, entryTarget, perPoint*line.Ratio, noLoss, path, depth+1)
			if err != nil {
				return nil, err
			}
			out.Merge(sub)
		}
	}
	return out, nil
}

// Ledger is the fetched-ahead ingredient read model the engine computes
// against. Bulk loaded per operation; no per-ingredient round trips.
type Ledger map[recipe.IngredientID]recipe.Ingredient

// Hydration computes true hydration for a flattened tree: total water weight
// divided by total flour weight, counting each ingredient's water content.
// Zero when the tree contains no flour.
func Hydration(w Weights, ledger Ledger) float64 {
	var flour, water float64
	for id, grams := range w {
		ing, ok := ledger[id]
		if !ok {
			continue
		}
		if ing.IsFlour {
			flour += grams
		}
		water += grams * ing.WaterContent
	}
	if flour <= 0 {
		return 0
	}
	return water / flour
}
