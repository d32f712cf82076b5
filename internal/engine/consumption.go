package engine

import (
	"github.com/ovenledger/ovenledger/internal/recipe"
)

// Epsilon is the posting floor in grams. Amounts below it are decimal noise
// from ratio arithmetic and are not posted.
const Epsilon = 0.01

// TreeSource resolves a root version id to its resolved tree. Backed by a
// snapshot's tree map or by a live assembly; nil results mean the reference
// is missing and contribute zero.
type TreeSource func(recipe.VersionID) *recipe.ResolvedNode

// ProductSpec is the product data consumption is derived from: either the
// live product record or the frozen binding inside a snapshot.
type ProductSpec struct {
	ProductID       recipe.ProductID
	Name            string
	VersionID       recipe.VersionID
	BaseDoughWeight float64
	Ingredients     []recipe.ProductIngredient
}

// LiveProductSpec builds a ProductSpec from a live product record.
func LiveProductSpec(p *recipe.Product) ProductSpec {
	return ProductSpec{
		ProductID:       p.ID,
		Name:            p.Name,
		VersionID:       p.VersionID,
		BaseDoughWeight: p.BaseDoughWeight,
		Ingredients:     p.Ingredients,
	}
}

// SnapshotProductSpec builds a ProductSpec from a frozen snapshot binding.
func SnapshotProductSpec(p *recipe.SnapshotProduct) ProductSpec {
	return ProductSpec{
		ProductID:       p.ProductID,
		Name:            p.Name,
		VersionID:       p.VersionID,
		BaseDoughWeight: p.BaseDoughWeight,
		Ingredients:     p.Ingredients,
	}
}

// Calculator derives per-ingredient consumption from a resolved tree at a
// requested quantity. Three views share the resolver but differ in the
// weight target they flatten at:
//
//   - Theoretical: ratios applied against baseDoughWeight * quantity with no
//     loss correction; what a perfect batch consumes.
//   - TotalInput: inflated by division loss and the root loss ratio; what
//     the task physically consumes regardless of yield. Used for stock
//     sufficiency and procurement.
//   - Spoilage: theoretical consumption at the reported spoiled quantity,
//     posted separately from ordinary process loss.
type Calculator struct {
	resolver *Resolver
}

// NewCalculator creates a Calculator sharing the given resolver.
func NewCalculator(r *Resolver) *Calculator {
	return &Calculator{resolver: r}
}

// Theoretical computes the no-loss consumption for quantity units. Loss
// ratios are ignored at every level, nested sub-recipes included: a lossy
// extra is not inflated here, its inflation shows up as process loss in
// the completion plan instead.
func (c *Calculator) Theoretical(tree *recipe.ResolvedNode, trees TreeSource, p ProductSpec, quantity int) (Weights, error) {
	if quantity <= 0 {
		return make(Weights), nil
	}
	batch := p.BaseDoughWeight * float64(quantity)
	w, err := c.resolver.FlattenNoLoss(tree, batch)
	if err != nil {
		return nil, err
	}
	flourRef := inputFlourRef(tree, batch)
	if err := c.addMixIns(w, trees, p, flourRef, false); err != nil {
		return nil, err
	}
	return w, nil
}

// TotalInput computes the consumption needed to run the batch: the base
// weight for quantity units plus the division loss, inflated by the root
// component's loss ratio. Degenerate loss divisors contribute zero, matching
// the resolver's policy.
func (c *Calculator) TotalInput(tree *recipe.ResolvedNode, trees TreeSource, p ProductSpec, quantity int) (Weights, error) {
	if quantity <= 0 {
		return make(Weights), nil
	}
	root := tree.RootComponent()
	if root == nil {
		return make(Weights), nil
	}
	divisor := 1 - root.LossRatio
	if divisor <= 0 {
		return make(Weights), nil
	}
	effective := (p.BaseDoughWeight*float64(quantity) + root.DivisionLoss) / divisor

	w, err := c.resolver.FlattenInput(tree, effective)
	if err != nil {
		return nil, err
	}
	flourRef := inputFlourRef(tree, effective)
	if err := c.addMixIns(w, trees, p, flourRef, true); err != nil {
		return nil, err
	}
	return w, nil
}

// Unit computes the with-loss consumption of a single unit at its target
// output weight, division loss excluded: what producing one sellable unit
// costs. This is the weight map product pricing runs on.
func (c *Calculator) Unit(tree *recipe.ResolvedNode, trees TreeSource, p ProductSpec) (Weights, error) {
	w, err := c.resolver.Flatten(tree, p.BaseDoughWeight)
	if err != nil {
		return nil, err
	}
	flourRef := c.resolver.FlourWeightRef(tree, p.BaseDoughWeight)
	if err := c.addMixIns(w, trees, p, flourRef, true); err != nil {
		return nil, err
	}
	return w, nil
}

// Spoilage computes the consumption attributable to spoiled units.
func (c *Calculator) Spoilage(tree *recipe.ResolvedNode, trees TreeSource, p ProductSpec, spoiled int) (Weights, error) {
	return c.Theoretical(tree, trees, p, spoiled)
}

// addMixIns converts the product's mix-in lines (specified as a percentage
// of the dough's flour weight) into absolute weights and folds them into w.
// withLoss selects whether linked extras are inflated by their own loss
// ratios.
func (c *Calculator) addMixIns(w Weights, trees TreeSource, p ProductSpec, flourRef float64, withLoss bool) error {
	if flourRef <= 0 {
		return nil
	}
	for _, pi := range p.Ingredients {
		grams := flourRef * pi.Ratio / 100
		if grams <= 0 {
			continue
		}
		if !pi.IsLink() {
			if pi.IngredientID == "" {
				continue
			}
			w.Add(pi.IngredientID, grams)
			continue
		}
		var sub *recipe.ResolvedNode
		if trees != nil {
			sub = trees(pi.LinkedVersionID)
		}
		var (
			subW Weights
			err  error
		)
		if withLoss {
			subW, err = c.resolver.Flatten(sub, grams)
		} else {
			subW, err = c.resolver.FlattenNoLoss(sub, grams)
		}
		if err != nil {
			return err
		}
		w.Merge(subW)
	}
	return nil
}

// inputFlourRef computes the flour-weight reference for a root component
// whose total input weight is already known.
func inputFlourRef(tree *recipe.ResolvedNode, totalInput float64) float64 {
	root := tree.RootComponent()
	if root == nil {
		return 0
	}
	totalRatio := root.TotalRatio()
	if totalRatio <= 0 {
		return 0
	}
	return totalInput / totalRatio * 100
}

// PostingReason tags a stock movement posted at completion.
type PostingReason string

const (
	ReasonConsumption PostingReason = "consumption"
	ReasonSpoilage    PostingReason = "spoilage"
	ReasonProcessLoss PostingReason = "process_loss"
)

// Posting is one planned stock deduction line.
type Posting struct {
	IngredientID recipe.IngredientID
	Grams        float64
	Reason       PostingReason
}

// CompletionPlan is the full set of postings for one task item, derived so
// that the three views sum: TotalInput = Theoretical(completed) +
// Theoretical(spoiled) + ProcessLoss, per ingredient, within Epsilon.
type CompletionPlan struct {
	ProductID  recipe.ProductID
	TotalInput Weights
	Completed  Weights
	Spoiled    Weights
	Postings   []Posting
}

// PlanCompletion derives the posting plan for one task item: quantity units
// were scheduled, completed of them succeeded and spoiled were reported
// spoiled. The gap not explained by successful output or explicit spoilage
// is process loss.
func (c *Calculator) PlanCompletion(
	tree *recipe.ResolvedNode,
	trees TreeSource,
	p ProductSpec,
	quantity, completed, spoiled int,
) (*CompletionPlan, error) {
	totalInput, err := c.TotalInput(tree, trees, p, quantity)
	if err != nil {
		return nil, err
	}
	completedW, err := c.Theoretical(tree, trees, p, completed)
	if err != nil {
		return nil, err
	}
	spoiledW, err := c.Spoilage(tree, trees, p, spoiled)
	if err != nil {
		return nil, err
	}

	plan := &CompletionPlan{
		ProductID:  p.ProductID,
		TotalInput: totalInput,
		Completed:  completedW,
		Spoiled:    spoiledW,
	}

	// Deterministic posting order: by ingredient id, consumption before
	// spoilage before process loss.
	for _, id := range totalInput.IDs() {
		if g := completedW[id]; g >= Epsilon {
			plan.Postings = append(plan.Postings, Posting{IngredientID: id, Grams: g, Reason: ReasonConsumption})
		}
		if g := spoiledW[id]; g >= Epsilon {
			plan.Postings = append(plan.Postings, Posting{IngredientID: id, Grams: g, Reason: ReasonSpoilage})
		}
		loss := totalInput[id] - completedW[id] - spoiledW[id]
		if loss >= Epsilon {
			plan.Postings = append(plan.Postings, Posting{IngredientID: id, Grams: loss, Reason: ReasonProcessLoss})
		}
	}
	return plan, nil
}
