package production

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ovenledger/ovenledger/internal/engine"
	"github.com/ovenledger/ovenledger/internal/recipe"
)

// CalculateProductCost prices one unit of a product at current weighted-
// average ingredient costs: the with-loss consumption of the base dough at
// its target output weight plus all mix-ins.
func (s *Service) CalculateProductCost(ctx context.Context, tenant string, id recipe.ProductID) (decimal.Decimal, error) {
	w, ledger, err := s.unitWeights(ctx, tenant, id)
	if err != nil {
		return decimal.Zero, err
	}
	return s.costs.Cost(w, ledger), nil
}

// GetCostBreakdown returns per-ingredient cost shares for one unit, sorted
// descending and collapsed to the top entries plus an "other" bucket.
func (s *Service) GetCostBreakdown(ctx context.Context, tenant string, id recipe.ProductID) ([]engine.CostShare, error) {
	w, ledger, err := s.unitWeights(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	return s.costs.Breakdown(w, ledger), nil
}

// GetCostHistory recomputes the unit cost at each of the last points
// distinct purchase dates, with the live cost appended when it differs.
func (s *Service) GetCostHistory(ctx context.Context, tenant string, id recipe.ProductID, points int) ([]engine.CostPoint, error) {
	w, ledger, err := s.unitWeights(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	purchases, err := s.store.GetPurchases(ctx, tenant, w.IDs())
	if err != nil {
		return nil, err
	}
	return s.costs.History(w, ledger, purchases, points, s.now()), nil
}

// ProductDetails is the fully priced view of one product unit: the dough
// tree with per-line weights and costs, the mix-in lines, true hydration
// and the total.
type ProductDetails struct {
	ProductID       recipe.ProductID    `json:"product_id"`
	Name            string              `json:"name"`
	VersionID       recipe.VersionID    `json:"version_id"`
	BaseDoughWeight float64             `json:"base_dough_weight_g"`
	TotalCost       decimal.Decimal     `json:"total_cost"`
	Hydration       float64             `json:"hydration"`
	Dough           *engine.DetailNode  `json:"dough"`
	MixIns          []engine.DetailLine `json:"mix_ins,omitempty"`
}

// GetCalculatedProductDetails builds the priced tree for one product unit.
func (s *Service) GetCalculatedProductDetails(ctx context.Context, tenant string, id recipe.ProductID) (*ProductDetails, error) {
	spec, tree, source, err := s.liveProduct(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	w, err := s.calc.Unit(tree, source, spec)
	if err != nil {
		return nil, err
	}
	ledger, err := s.ledgerFor(ctx, tenant, w)
	if err != nil {
		return nil, err
	}

	dough, err := s.resolver.Detail(tree, spec.BaseDoughWeight, ledger)
	if err != nil {
		return nil, err
	}

	details := &ProductDetails{
		ProductID:       spec.ProductID,
		Name:            spec.Name,
		VersionID:       spec.VersionID,
		BaseDoughWeight: spec.BaseDoughWeight,
		TotalCost:       s.costs.Cost(w, ledger),
		Hydration:       engine.Hydration(w, ledger),
		Dough:           dough,
	}

	flourRef := s.resolver.FlourWeightRef(tree, spec.BaseDoughWeight)
	for _, pi := range spec.Ingredients {
		grams := flourRef * pi.Ratio / 100
		if grams <= 0 {
			continue
		}
		dl := engine.DetailLine{
			Name:  pi.Name,
			Ratio: pi.Ratio,
			Grams: grams,
			Cost:  decimal.Zero,
		}
		if !pi.IsLink() {
			if pi.IngredientID == "" {
				continue
			}
			dl.IngredientID = pi.IngredientID
			if ing, ok := ledger[pi.IngredientID]; ok {
				dl.Cost = ing.UnitCost().Mul(decimal.NewFromFloat(grams))
			}
		} else {
			sub, err := s.resolver.Detail(source(pi.LinkedVersionID), grams, ledger)
			if err != nil {
				return nil, err
			}
			if sub != nil {
				dl.Sub = sub
				dl.Cost = sub.Cost
			}
		}
		details.MixIns = append(details.MixIns, dl)
	}
	return details, nil
}

// unitWeights flattens one live product unit and loads the matching ledger
// rows, the shared front half of every costing operation.
func (s *Service) unitWeights(ctx context.Context, tenant string, id recipe.ProductID) (engine.Weights, engine.Ledger, error) {
	spec, tree, source, err := s.liveProduct(ctx, tenant, id)
	if err != nil {
		return nil, nil, err
	}
	w, err := s.calc.Unit(tree, source, spec)
	if err != nil {
		return nil, nil, err
	}
	ledger, err := s.ledgerFor(ctx, tenant, w)
	if err != nil {
		return nil, nil, err
	}
	return w, ledger, nil
}
