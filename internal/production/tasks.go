package production

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ovenledger/ovenledger/internal/engine"
	"github.com/ovenledger/ovenledger/internal/recipe"
	"github.com/ovenledger/ovenledger/internal/snapshot"
	"github.com/ovenledger/ovenledger/internal/store"
)

// TaskInput describes a task to create or the replacement content of a
// PENDING task.
type TaskInput struct {
	StartDate time.Time
	EndDate   time.Time
	Items     []TaskItemInput
}

// TaskItemInput is one requested product line.
type TaskItemInput struct {
	ProductID recipe.ProductID
	Quantity  int
}

// ItemOutcome is the reported result for one task item at completion.
type ItemOutcome struct {
	ProductID recipe.ProductID
	Completed int
	Spoiled   int
}

// CreateTask validates the requested items against current state, freezes a
// recipe snapshot and persists the task as PENDING. Items may not mix
// product categories, and discontinued recipe families are rejected.
func (s *Service) CreateTask(ctx context.Context, tenant string, in TaskInput) (*recipe.ProductionTask, error) {
	items, products, roots, err := s.validateItems(ctx, tenant, in)
	if err != nil {
		return nil, err
	}

	t := &recipe.ProductionTask{
		ID:        recipe.TaskID(uuid.NewString()),
		Tenant:    tenant,
		Status:    recipe.StatusPending,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Items:     items,
		CreatedAt: s.now().UTC(),
	}

	// Assemble before persisting anything: a defective tree (cycle, missing
	// root) must not leave a task row behind.
	snap, err := s.assembler.Assemble(ctx, tenant, t.ID, roots, products, s.now())
	if err != nil {
		return nil, err
	}
	data, err := snapshot.Encode(snap)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateTask(ctx, t); err != nil {
		return nil, err
	}
	if err := s.store.SaveTaskSnapshot(ctx, tenant, t.ID, snap.ID, snap.CreatedAt, data); err != nil {
		return nil, err
	}
	t.SnapshotID = snap.ID

	slog.Info("task created",
		"task_id", t.ID,
		"snapshot_id", snap.ID,
		"items", len(items),
	)
	return t, nil
}

// UpdateTask replaces a PENDING task's window and items. The original
// snapshot stays bound; items introduced by the edit resolve against live
// recipe state until completion.
func (s *Service) UpdateTask(ctx context.Context, tenant string, id recipe.TaskID, in TaskInput) (*recipe.ProductionTask, error) {
	t, err := s.GetTask(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if t.Status != recipe.StatusPending {
		return nil, engine.NewConflict(id, t.Status, "edit")
	}
	items, _, _, err := s.validateItems(ctx, tenant, in)
	if err != nil {
		return nil, err
	}

	t.StartDate = in.StartDate
	t.EndDate = in.EndDate
	t.Items = items
	if err := s.store.UpdateTaskItems(ctx, t); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, engine.NewConflict(id, t.Status, "edit")
		}
		return nil, err
	}
	return t, nil
}

// DeleteTask removes a PENDING task.
func (s *Service) DeleteTask(ctx context.Context, tenant string, id recipe.TaskID) error {
	t, err := s.GetTask(ctx, tenant, id)
	if err != nil {
		return err
	}
	if t.Status != recipe.StatusPending {
		return engine.NewConflict(id, t.Status, "delete")
	}
	if err := s.store.DeleteTask(ctx, tenant, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return engine.NewConflict(id, t.Status, "delete")
		}
		return err
	}
	return nil
}

// StartTask transitions a PENDING task to IN_PROGRESS.
func (s *Service) StartTask(ctx context.Context, tenant string, id recipe.TaskID) (*recipe.ProductionTask, error) {
	return s.transition(ctx, tenant, id, recipe.StatusInProgress, "start")
}

// CancelTask cancels a PENDING or IN_PROGRESS task. Nothing is posted;
// cancelled tasks drop out of bill-of-materials aggregation.
func (s *Service) CancelTask(ctx context.Context, tenant string, id recipe.TaskID) (*recipe.ProductionTask, error) {
	return s.transition(ctx, tenant, id, recipe.StatusCancelled, "cancel")
}

func (s *Service) transition(ctx context.Context, tenant string, id recipe.TaskID, to recipe.TaskStatus, action string) (*recipe.ProductionTask, error) {
	t, err := s.GetTask(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if !t.Status.CanTransition(to) {
		return nil, engine.NewConflict(id, t.Status, action)
	}
	if err := s.store.UpdateTaskStatus(ctx, tenant, id, t.Status, to); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Lost a race against another transition.
			return nil, engine.NewConflict(id, t.Status, action)
		}
		return nil, err
	}
	t.Status = to
	slog.Info("task transitioned", "task_id", id, "status", to)
	return t, nil
}

// CompleteTask reports the per-item outcome of an IN_PROGRESS task and
// posts every derived stock movement atomically: consumption for
// successful units, spoilage, the remaining process loss, and self-made
// output entering the ledger. Insufficient tracked stock rejects the
// completion before anything is written; the transaction re-validates
// under the write lock.
func (s *Service) CompleteTask(ctx context.Context, tenant string, id recipe.TaskID, outcomes []ItemOutcome) (*recipe.ProductionTask, error) {
	t, err := s.GetTask(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if !t.Status.CanTransition(recipe.StatusCompleted) {
		return nil, engine.NewConflict(id, t.Status, "complete")
	}

	byProduct := make(map[recipe.ProductID]ItemOutcome, len(outcomes))
	for _, oc := range outcomes {
		if _, dup := byProduct[oc.ProductID]; dup {
			return nil, engine.NewBadRequest(fmt.Sprintf("duplicate outcome for product %s", oc.ProductID))
		}
		byProduct[oc.ProductID] = oc
	}

	snap, err := s.taskSnapshot(ctx, tenant, t)
	if err != nil {
		return nil, err
	}

	type itemPlan struct {
		item recipe.TaskItem
		spec engine.ProductSpec
		tree *recipe.ResolvedNode
		plan *engine.CompletionPlan
	}
	plans := make([]itemPlan, 0, len(t.Items))
	required := make(engine.Weights)
	for i, item := range t.Items {
		oc, ok := byProduct[item.ProductID]
		if !ok {
			return nil, engine.NewBadRequest(fmt.Sprintf("missing outcome for product %s", item.ProductID))
		}
		delete(byProduct, item.ProductID)
		if oc.Completed < 0 || oc.Spoiled < 0 || oc.Completed+oc.Spoiled > item.Quantity {
			return nil, engine.NewBadRequest(fmt.Sprintf(
				"outcome for product %s exceeds scheduled quantity %d", item.ProductID, item.Quantity))
		}

		spec, tree, source, err := s.itemSpec(ctx, tenant, snap, item.ProductID)
		if err != nil {
			return nil, err
		}
		plan, err := s.calc.PlanCompletion(tree, source, spec, item.Quantity, oc.Completed, oc.Spoiled)
		if err != nil {
			return nil, err
		}
		t.Items[i].Completed = oc.Completed
		t.Items[i].Spoiled = oc.Spoiled
		plans = append(plans, itemPlan{item: t.Items[i], spec: spec, tree: tree, plan: plan})
		required.Merge(plan.TotalInput)
	}
	for pid := range byProduct {
		return nil, engine.NewBadRequest(fmt.Sprintf("product %s is not part of the task", pid))
	}

	ledger, err := s.ledgerFor(ctx, tenant, required)
	if err != nil {
		return nil, err
	}

	// Advisory sufficiency check; the transaction is the authority.
	for _, iid := range required.IDs() {
		ing, ok := ledger[iid]
		if !ok || ing.Class == recipe.ClassNonInventoried {
			continue
		}
		if ing.StockGrams+engine.Epsilon < required[iid] {
			return nil, engine.NewInsufficientStock(iid, ing.Name, required[iid], ing.StockGrams)
		}
	}

	params := store.CompletionParams{
		TaskID:      id,
		CompletedAt: s.now(),
	}
	for _, ip := range plans {
		params.Items = append(params.Items, store.ItemResult{
			ProductID: ip.item.ProductID,
			Completed: ip.item.Completed,
			Spoiled:   ip.item.Spoiled,
		})
		for _, post := range ip.plan.Postings {
			ing, ok := ledger[post.IngredientID]
			cost := decimal.Zero
			if ok {
				cost = ing.UnitCost().Mul(decimal.NewFromFloat(post.Grams))
			}
			params.Deductions = append(params.Deductions, store.StockDeduction{
				IngredientID: post.IngredientID,
				Grams:        post.Grams,
				Cost:         cost,
				Reason:       string(post.Reason),
				Tracked:      ok && ing.Class != recipe.ClassNonInventoried,
			})
		}

		out, err := s.selfOutput(ctx, tenant, ip.tree, ip.item, ip.spec, ip.plan, ledger)
		if err != nil {
			return nil, err
		}
		if out != nil {
			params.SelfOutputs = append(params.SelfOutputs, *out)
		}
	}

	if err := s.store.CompleteTask(ctx, tenant, params); err != nil {
		var short *store.InsufficientStockError
		if errors.As(err, &short) {
			return nil, engine.NewInsufficientStock(short.IngredientID, short.Name, short.RequiredGrams, short.StockGrams)
		}
		if errors.Is(err, store.ErrNotFound) {
			return nil, engine.NewConflict(id, t.Status, "complete")
		}
		return nil, err
	}
	t.Status = recipe.StatusCompleted

	slog.Info("task completed",
		"task_id", id,
		"items", len(plans),
		"deductions", len(params.Deductions),
		"self_outputs", len(params.SelfOutputs),
	)
	return t, nil
}

// selfOutput derives the stock increment for a self-made recipe family:
// the completed units' dough weight entering the ledger at the value of
// their theoretical consumption.
func (s *Service) selfOutput(
	ctx context.Context,
	tenant string,
	tree *recipe.ResolvedNode,
	item recipe.TaskItem,
	spec engine.ProductSpec,
	plan *engine.CompletionPlan,
	ledger engine.Ledger,
) (*store.SelfOutput, error) {
	if tree == nil || item.Completed <= 0 {
		return nil, nil
	}
	f, err := s.store.GetFamily(ctx, tenant, tree.FamilyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if f.OutputIngredientID == "" {
		return nil, nil
	}
	out, err := s.store.GetIngredient(ctx, tenant, f.OutputIngredientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("output ingredient missing; self-made stock not incremented",
				"family_id", f.ID,
				"ingredient_id", f.OutputIngredientID,
			)
			return nil, nil
		}
		return nil, err
	}
	if out.Class != recipe.ClassSelfMade {
		return nil, nil
	}

	return &store.SelfOutput{
		IngredientID: out.ID,
		Grams:        float64(item.Completed) * spec.BaseDoughWeight,
		Value:        s.costs.Cost(plan.Completed, ledger),
	}, nil
}

// validateItems checks a task's requested items against current state and
// returns the task items plus the snapshot inputs. Category mixing,
// discontinued families, non-positive quantities and an inverted window
// are all BAD_REQUEST.
func (s *Service) validateItems(
	ctx context.Context,
	tenant string,
	in TaskInput,
) ([]recipe.TaskItem, []recipe.SnapshotProduct, []recipe.VersionID, error) {
	if len(in.Items) == 0 {
		return nil, nil, nil, engine.NewBadRequest("task needs at least one item")
	}
	if in.EndDate.Before(in.StartDate) {
		return nil, nil, nil, engine.NewBadRequest("task end date precedes start date")
	}

	var category recipe.RecipeCategory
	items := make([]recipe.TaskItem, 0, len(in.Items))
	products := make([]recipe.SnapshotProduct, 0, len(in.Items))
	var roots []recipe.VersionID
	for i, it := range in.Items {
		if it.Quantity <= 0 {
			return nil, nil, nil, engine.NewBadRequest(fmt.Sprintf("quantity for product %s must be positive", it.ProductID))
		}
		p, err := s.store.GetProduct(ctx, tenant, it.ProductID)
		if err != nil {
			return nil, nil, nil, mapNotFound(err, "product", string(it.ProductID))
		}
		f, err := s.store.GetFamily(ctx, tenant, p.FamilyID)
		if err != nil {
			return nil, nil, nil, mapNotFound(err, "recipe family", string(p.FamilyID))
		}
		if f.Discontinued {
			return nil, nil, nil, engine.NewBadRequest(fmt.Sprintf("recipe %s is discontinued", f.Name))
		}
		if i == 0 {
			category = p.Category
		} else if p.Category != category {
			return nil, nil, nil, engine.NewBadRequest("task mixes product categories")
		}
		if p.VersionID == "" {
			return nil, nil, nil, engine.NewBadRequest("product " + string(p.ID) + " has no active recipe version")
		}

		items = append(items, recipe.TaskItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    it.Quantity,
		})
		products = append(products, recipe.SnapshotProduct{
			ProductID:       p.ID,
			Name:            p.Name,
			VersionID:       p.VersionID,
			BaseDoughWeight: p.BaseDoughWeight,
			Ingredients:     p.Ingredients,
		})
		roots = append(roots, p.VersionID)
		for _, pi := range p.Ingredients {
			if pi.IsLink() && pi.LinkedVersionID != "" {
				roots = append(roots, pi.LinkedVersionID)
			}
		}
	}
	return items, products, roots, nil
}
