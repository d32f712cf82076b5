package production

import (
	"context"
	"time"

	"github.com/ovenledger/ovenledger/internal/engine"
	"github.com/ovenledger/ovenledger/internal/recipe"
)

// ConsumptionRow is one ingredient line of a consumption view, carrying
// both the theoretical (no-loss) weight and the total batch input.
type ConsumptionRow struct {
	IngredientID     recipe.IngredientID `json:"ingredient_id"`
	Name             string              `json:"name"`
	TheoreticalGrams float64             `json:"theoretical_g"`
	TotalInputGrams  float64             `json:"total_input_g"`
}

// ItemConsumption is the consumption view for one product at one quantity.
type ItemConsumption struct {
	ProductID   recipe.ProductID `json:"product_id"`
	ProductName string           `json:"product_name"`
	Quantity    int              `json:"quantity"`
	Rows        []ConsumptionRow `json:"rows"`
}

// CalculateTaskConsumptions derives per-item consumption for a task from
// its frozen snapshot: what each scheduled item will theoretically consume
// and what the batch physically needs.
func (s *Service) CalculateTaskConsumptions(ctx context.Context, tenant string, taskID recipe.TaskID) ([]ItemConsumption, error) {
	t, err := s.store.GetTask(ctx, tenant, taskID)
	if err != nil {
		return nil, mapNotFound(err, "task", string(taskID))
	}
	snap, err := s.taskSnapshot(ctx, tenant, t)
	if err != nil {
		return nil, err
	}

	type pending struct {
		item  recipe.TaskItem
		theo  engine.Weights
		total engine.Weights
	}
	computed := make([]pending, 0, len(t.Items))
	union := make(engine.Weights)
	for _, item := range t.Items {
		spec, tree, source, err := s.itemSpec(ctx, tenant, snap, item.ProductID)
		if err != nil {
			return nil, err
		}
		theo, err := s.calc.Theoretical(tree, source, spec, item.Quantity)
		if err != nil {
			return nil, err
		}
		total, err := s.calc.TotalInput(tree, source, spec, item.Quantity)
		if err != nil {
			return nil, err
		}
		computed = append(computed, pending{item: item, theo: theo, total: total})
		union.Merge(theo)
		union.Merge(total)
	}

	ledger, err := s.ledgerFor(ctx, tenant, union)
	if err != nil {
		return nil, err
	}

	out := make([]ItemConsumption, 0, len(computed))
	for _, c := range computed {
		out = append(out, ItemConsumption{
			ProductID:   c.item.ProductID,
			ProductName: c.item.ProductName,
			Quantity:    c.item.Quantity,
			Rows:        consumptionRows(c.theo, c.total, ledger),
		})
	}
	return out, nil
}

// CalculateProductConsumption derives the consumption view for quantity
// units of one product against current recipe state.
func (s *Service) CalculateProductConsumption(ctx context.Context, tenant string, id recipe.ProductID, quantity int) (*ItemConsumption, error) {
	if quantity <= 0 {
		return nil, engine.NewBadRequest("quantity must be positive")
	}
	spec, tree, source, err := s.liveProduct(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	theo, err := s.calc.Theoretical(tree, source, spec, quantity)
	if err != nil {
		return nil, err
	}
	total, err := s.calc.TotalInput(tree, source, spec, quantity)
	if err != nil {
		return nil, err
	}

	union := make(engine.Weights)
	union.Merge(theo)
	union.Merge(total)
	ledger, err := s.ledgerFor(ctx, tenant, union)
	if err != nil {
		return nil, err
	}

	return &ItemConsumption{
		ProductID:   spec.ProductID,
		ProductName: spec.Name,
		Quantity:    quantity,
		Rows:        consumptionRows(theo, total, ledger),
	}, nil
}

// consumptionRows merges the two views into named rows, ordered by
// ingredient id. Rows below the posting floor in both views are dropped.
func consumptionRows(theo, total engine.Weights, ledger engine.Ledger) []ConsumptionRow {
	union := make(engine.Weights)
	union.Merge(theo)
	union.Merge(total)

	rows := make([]ConsumptionRow, 0, len(union))
	for _, id := range union.IDs() {
		if theo[id] < engine.Epsilon && total[id] < engine.Epsilon {
			continue
		}
		name := string(id)
		if ing, ok := ledger[id]; ok {
			name = ing.Name
		}
		rows = append(rows, ConsumptionRow{
			IngredientID:     id,
			Name:             name,
			TheoreticalGrams: theo[id],
			TotalInputGrams:  total[id],
		})
	}
	return rows
}

// GetBillOfMaterials aggregates total-input consumption across every task
// whose window includes date (cancelled tasks excluded) into a procurement
// list split by inventory-tracking class.
func (s *Service) GetBillOfMaterials(ctx context.Context, tenant string, date time.Time) (*engine.BillOfMaterials, error) {
	tasks, err := s.store.ListTasksActiveOn(ctx, tenant, date)
	if err != nil {
		return nil, err
	}

	var perTask []engine.Weights
	union := make(engine.Weights)
	for _, t := range tasks {
		snap, err := s.taskSnapshot(ctx, tenant, t)
		if err != nil {
			return nil, err
		}
		for _, item := range t.Items {
			spec, tree, source, err := s.itemSpec(ctx, tenant, snap, item.ProductID)
			if err != nil {
				return nil, err
			}
			w, err := s.calc.TotalInput(tree, source, spec, item.Quantity)
			if err != nil {
				return nil, err
			}
			perTask = append(perTask, w)
			union.Merge(w)
		}
	}

	ledger, err := s.ledgerFor(ctx, tenant, union)
	if err != nil {
		return nil, err
	}
	return engine.AggregateBOM(perTask, ledger), nil
}
