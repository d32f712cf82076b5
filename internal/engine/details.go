package engine

import (
	"github.com/shopspring/decimal"

	"github.com/ovenledger/ovenledger/internal/recipe"
)

// DetailNode is one recipe version of a priced tree: the weights the node
// resolves to at its entry amount, with per-line grams and costs preserved
// instead of flattened away.
type DetailNode struct {
	VersionID  recipe.VersionID  `json:"version_id"`
	FamilyName string            `json:"family_name"`
	Kind       recipe.RecipeKind `json:"kind"`

	// TotalInput is the weight entering the root component; TargetOutput is
	// the weight leaving it after loss. FlourWeight is the absolute weight
	// corresponding to 100% baker's percentage.
	TotalInput   float64 `json:"total_input_g"`
	TargetOutput float64 `json:"target_output_g"`
	FlourWeight  float64 `json:"flour_weight_g"`

	Cost  decimal.Decimal `json:"cost"`
	Lines []DetailLine    `json:"lines,omitempty"`
}

// DetailLine is one priced ingredient line. Links carry the priced subtree
// in Sub; their Grams is the weight the line contributes to the batch.
type DetailLine struct {
	Name         string              `json:"name"`
	IngredientID recipe.IngredientID `json:"ingredient_id,omitempty"`
	Ratio        float64             `json:"ratio,omitempty"`
	FlourRatio   float64             `json:"flour_ratio,omitempty"`
	Grams        float64             `json:"grams"`
	Cost         decimal.Decimal     `json:"cost"`
	Sub          *DetailNode         `json:"sub,omitempty"`
}

// Detail builds the priced tree for node at targetOutputWeight. Same
// traversal and degrade policy as Flatten, but per-line weights and costs
// are kept instead of folded into a single map.
func (r *Resolver) Detail(node *recipe.ResolvedNode, targetOutputWeight float64, ledger Ledger) (*DetailNode, error) {
	return r.detailNode(node, entryTarget, targetOutputWeight, ledger, nil, 0)
}

func (r *Resolver) detailNode(
	node *recipe.ResolvedNode,
	mode entryMode,
	amount float64,
	ledger Ledger,
	path []recipe.VersionID,
	depth int,
) (*DetailNode, error) {
	if node == nil {
		return nil, nil
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

	d := &DetailNode{
		VersionID:  node.VersionID,
		FamilyName: node.FamilyName,
		Kind:       node.Kind,
		Cost:       decimal.Zero,
	}
	root := node.RootComponent()
	if root == nil {
		return d, nil
	}
	totalInput, ok := r.inputWeight(root, mode, amount, false)
	if !ok {
		return d, nil
	}
	totalRatio := root.TotalRatio()
	if totalRatio <= 0 {
		return d, nil
	}
	perPoint := totalInput / totalRatio
	d.TotalInput = totalInput
	d.TargetOutput = totalInput * (1 - root.LossRatio)
	d.FlourWeight = perPoint * 100

	subPath := make([]recipe.VersionID, len(path), len(path)+1)
	copy(subPath, path)
	subPath = append(subPath, node.VersionID)

	for _, line := range root.Ingredients {
		dl := DetailLine{
			Name:       line.Name,
			Ratio:      line.Ratio,
			FlourRatio: line.FlourRatio,
			Cost:       decimal.Zero,
		}
		switch {
		case !line.IsLink():
			if line.IngredientID == "" {
				continue
			}
			dl.IngredientID = line.IngredientID
			dl.Grams = perPoint * line.Ratio
			if ing, ok := ledger[line.IngredientID]; ok {
				dl.Cost = ing.UnitCost().Mul(decimal.NewFromFloat(dl.Grams))
			}

		case line.LinkKind == recipe.KindPreDough:
			sub, err := r.detailNode(line.Sub, entryFlour, d.FlourWeight*line.FlourRatio, ledger, subPath, depth+1)
			if err != nil {
				return nil, err
			}
			if sub == nil {
				continue
			}
			dl.Sub = sub
			dl.Grams = sub.TotalInput
			dl.Cost = sub.Cost

		default:
			sub, err := r.detailNode(line.Sub, entryTarget, perPoint*line.Ratio, ledger, subPath, depth+1)
			if err != nil {
				return nil, err
			}
			if sub == nil {
				continue
			}
			dl.Sub = sub
			dl.Grams = perPoint * line.Ratio
			dl.Cost = sub.Cost
		}
		d.Cost = d.Cost.Add(dl.Cost)
		d.Lines = append(d.Lines, dl)
	}
	return d, nil
}
