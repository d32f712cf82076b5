package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ovenledger/ovenledger/internal/recipe"
)

// ErrNotFound is returned when a requested row does not exist within the
// tenant scope. Callers translate it to their own NOT_FOUND error.
var ErrNotFound = errors.New("not found")

// GetIngredient returns one ledger row.
func (s *Store) GetIngredient(ctx context.Context, tenant string, id recipe.IngredientID) (*recipe.Ingredient, error) {
	ledger, err := s.GetIngredients(ctx, tenant, []recipe.IngredientID{id})
	if err != nil {
		return nil, err
	}
	ing, ok := ledger[id]
	if !ok {
		return nil, fmt.Errorf("ingredient %s: %w", id, ErrNotFound)
	}
	return &ing, nil
}

// GetIngredients bulk-loads ledger rows for the given ids. Ids that do not
// exist are simply absent from the result.
func (s *Store) GetIngredients(ctx context.Context, tenant string, ids []recipe.IngredientID) (map[recipe.IngredientID]recipe.Ingredient, error) {
	out := make(map[recipe.IngredientID]recipe.Ingredient, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, tenant)
	for _, id := range ids {
		args = append(args, string(id))
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, is_flour, water_content, stock_grams, stock_value, class
		FROM ingredients
		WHERE tenant = ? AND id IN (`+placeholders(len(ids))+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("get ingredients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ing      recipe.Ingredient
			isFlour  int
			valueStr string
			class    string
		)
		if err := rows.Scan(&ing.ID, &ing.Name, &isFlour, &ing.WaterContent, &ing.StockGrams, &valueStr, &class); err != nil {
			return nil, fmt.Errorf("get ingredients: scan: %w", err)
		}
		ing.Tenant = tenant
		ing.IsFlour = isFlour != 0
		ing.Class = recipe.InventoryClass(class)
		ing.StockValue, err = decimal.NewFromString(valueStr)
		if err != nil {
			return nil, fmt.Errorf("get ingredients: stock value %q: %w", valueStr, err)
		}
		out[ing.ID] = ing
	}
	return out, rows.Err()
}

// GetPurchases returns the purchase history for the given ingredients,
// ordered ascending by purchase date.
func (s *Store) GetPurchases(ctx context.Context, tenant string, ids []recipe.IngredientID) (map[recipe.IngredientID][]recipe.PurchaseRecord, error) {
	out := make(map[recipe.IngredientID][]recipe.PurchaseRecord)
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, tenant)
	for _, id := range ids {
		args = append(args, string(id))
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT ingredient_id, price, package_grams, purchased_at
		FROM purchases
		WHERE tenant = ? AND ingredient_id IN (`+placeholders(len(ids))+`)
		ORDER BY purchased_at ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("get purchases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p        recipe.PurchaseRecord
			priceStr string
			dateStr  string
		)
		if err := rows.Scan(&p.IngredientID, &priceStr, &p.PackageGrams, &dateStr); err != nil {
			return nil, fmt.Errorf("get purchases: scan: %w", err)
		}
		if p.Price, err = decimal.NewFromString(priceStr); err != nil {
			return nil, fmt.Errorf("get purchases: price %q: %w", priceStr, err)
		}
		if p.PurchasedAt, err = parseDate(dateStr); err != nil {
			return nil, fmt.Errorf("get purchases: %w", err)
		}
		out[p.IngredientID] = append(out[p.IngredientID], p)
	}
	return out, rows.Err()
}

// GetFamily returns one recipe family.
func (s *Store) GetFamily(ctx context.Context, tenant string, id recipe.FamilyID) (*recipe.Family, error) {
	var (
		f            recipe.Family
		discontinued int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, kind, output_ingredient_id, active_version_id, discontinued
		FROM families
		WHERE tenant = ? AND id = ?
	`, tenant, string(id)).Scan(
		&f.ID, &f.Name, &f.Category, &f.Kind, &f.OutputIngredientID, &f.ActiveVersionID, &discontinued,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("family %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get family %s: %w", id, err)
	}
	f.Tenant = tenant
	f.Discontinued = discontinued != 0
	return &f, nil
}

// FetchVersions bulk-loads shallow version nodes: each node carries its own
// components and ingredient lines, with nested sub-recipes appearing only as
// the linked family's currently active version id. This is the single fetch
// the snapshot assembler issues per BFS round.
func (s *Store) FetchVersions(ctx context.Context, tenant string, ids []recipe.VersionID) (map[recipe.VersionID]*recipe.VersionNode, error) {
	out := make(map[recipe.VersionID]*recipe.VersionNode, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, tenant)
	for _, id := range ids {
		args = append(args, string(id))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT v.id, v.family_id, f.name, f.kind
		FROM versions v
		JOIN families f ON f.tenant = v.tenant AND f.id = v.family_id
		WHERE v.tenant = ? AND v.id IN (`+placeholders(len(ids))+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch versions: %w", err)
	}
	for rows.Next() {
		var n recipe.VersionNode
		if err := rows.Scan(&n.ID, &n.FamilyID, &n.FamilyName, &n.Kind); err != nil {
			rows.Close()
			return nil, fmt.Errorf("fetch versions: scan: %w", err)
		}
		out[n.ID] = &n
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(out) == 0 {
		return out, nil
	}

	componentOwner, err := s.fetchComponents(ctx, tenant, out)
	if err != nil {
		return nil, err
	}
	if err := s.fetchComponentIngredients(ctx, tenant, out, componentOwner); err != nil {
		return nil, err
	}
	return out, nil
}

// fetchComponents loads the components of every fetched version, in
// position order, and returns a component id -> owning version index.
func (s *Store) fetchComponents(ctx context.Context, tenant string, nodes map[recipe.VersionID]*recipe.VersionNode) (map[recipe.ComponentID]recipe.VersionID, error) {
	args := make([]any, 0, len(nodes)+1)
	args = append(args, tenant)
	for id := range nodes {
		args = append(args, string(id))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, version_id, name, loss_ratio, division_loss
		FROM components
		WHERE tenant = ? AND version_id IN (`+placeholders(len(nodes))+`)
		ORDER BY version_id, position
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch components: %w", err)
	}
	defer rows.Close()

	owner := make(map[recipe.ComponentID]recipe.VersionID)
	for rows.Next() {
		var (
			c         recipe.Component
			versionID recipe.VersionID
		)
		if err := rows.Scan(&c.ID, &versionID, &c.Name, &c.LossRatio, &c.DivisionLoss); err != nil {
			return nil, fmt.Errorf("fetch components: scan: %w", err)
		}
		node := nodes[versionID]
		if node == nil {
			continue
		}
		node.Components = append(node.Components, c)
		owner[c.ID] = versionID
	}
	return owner, rows.Err()
}

// fetchComponentIngredients loads the lines of every fetched component,
// resolving linked families to their active version and kind.
func (s *Store) fetchComponentIngredients(
	ctx context.Context,
	tenant string,
	nodes map[recipe.VersionID]*recipe.VersionNode,
	owner map[recipe.ComponentID]recipe.VersionID,
) error {
	if len(owner) == 0 {
		return nil
	}
	args := make([]any, 0, len(owner)+1)
	args = append(args, tenant)
	for id := range owner {
		args = append(args, string(id))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ci.component_id, ci.name, ci.ingredient_id, ci.linked_family_id,
		       COALESCE(lf.active_version_id, ''), COALESCE(lf.kind, ''),
		       ci.ratio, ci.flour_ratio
		FROM component_ingredients ci
		LEFT JOIN families lf ON lf.tenant = ci.tenant AND lf.id = ci.linked_family_id
		WHERE ci.tenant = ? AND ci.component_id IN (`+placeholders(len(owner))+`)
		ORDER BY ci.component_id, ci.position
	`, args...)
	if err != nil {
		return fmt.Errorf("fetch component ingredients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			componentID recipe.ComponentID
			ci          recipe.ComponentIngredient
			linkedKind  string
		)
		if err := rows.Scan(
			&componentID, &ci.Name, &ci.IngredientID, &ci.LinkedFamilyID,
			&ci.LinkedVersionID, &linkedKind, &ci.Ratio, &ci.FlourRatio,
		); err != nil {
			return fmt.Errorf("fetch component ingredients: scan: %w", err)
		}
		if ci.IsLink() {
			ci.LinkKind = linkKindFor(recipe.RecipeKind(linkedKind))
		}
		versionID, ok := owner[componentID]
		if !ok {
			continue
		}
		node := nodes[versionID]
		for i := range node.Components {
			if node.Components[i].ID == componentID {
				node.Components[i].Ingredients = append(node.Components[i].Ingredients, ci)
				break
			}
		}
	}
	return rows.Err()
}

// linkKindFor maps a linked family's kind to the scaling rule of the link:
// pre-doughs scale by flour ratio, everything else batches as an extra.
func linkKindFor(kind recipe.RecipeKind) recipe.RecipeKind {
	if kind == recipe.KindPreDough {
		return recipe.KindPreDough
	}
	return recipe.KindExtra
}

// GetProduct returns one product with its mix-in lines. The product's
// VersionID is the family's currently active version.
func (s *Store) GetProduct(ctx context.Context, tenant string, id recipe.ProductID) (*recipe.Product, error) {
	var p recipe.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.name, p.family_id, p.category, p.base_dough_weight,
		       COALESCE(f.active_version_id, '')
		FROM products p
		LEFT JOIN families f ON f.tenant = p.tenant AND f.id = p.family_id
		WHERE p.tenant = ? AND p.id = ?
	`, tenant, string(id)).Scan(&p.ID, &p.Name, &p.FamilyID, &p.Category, &p.BaseDoughWeight, &p.VersionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	p.Tenant = tenant

	rows, err := s.db.QueryContext(ctx, `
		SELECT pi.name, pi.ingredient_id, pi.linked_family_id,
		       COALESCE(lf.active_version_id, ''), pi.ratio
		FROM product_ingredients pi
		LEFT JOIN families lf ON lf.tenant = pi.tenant AND lf.id = pi.linked_family_id
		WHERE pi.tenant = ? AND pi.product_id = ?
		ORDER BY pi.position
	`, tenant, string(id))
	if err != nil {
		return nil, fmt.Errorf("get product %s: ingredients: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var pi recipe.ProductIngredient
		if err := rows.Scan(&pi.Name, &pi.IngredientID, &pi.LinkedFamilyID, &pi.LinkedVersionID, &pi.Ratio); err != nil {
			return nil, fmt.Errorf("get product %s: scan: %w", id, err)
		}
		p.Ingredients = append(p.Ingredients, pi)
	}
	return &p, rows.Err()
}

// GetTask returns one production task with its items.
func (s *Store) GetTask(ctx context.Context, tenant string, id recipe.TaskID) (*recipe.ProductionTask, error) {
	var (
		t          recipe.ProductionTask
		startStr   string
		endStr     string
		snapshotID sql.NullString
		createdStr string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, status, start_date, end_date, snapshot_id, created_at
		FROM tasks
		WHERE tenant = ? AND id = ?
	`, tenant, string(id)).Scan(&t.ID, &t.Status, &startStr, &endStr, &snapshotID, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	t.Tenant = tenant
	t.SnapshotID = snapshotID.String
	if t.StartDate, err = parseDate(startStr); err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	if t.EndDate, err = parseDate(endStr); err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	if t.CreatedAt, err = time.Parse(time.RFC3339, createdStr); err != nil {
		return nil, fmt.Errorf("get task %s: created_at: %w", id, err)
	}

	if t.Items, err = s.taskItems(ctx, tenant, id); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) taskItems(ctx context.Context, tenant string, id recipe.TaskID) ([]recipe.TaskItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, product_name, quantity, completed, spoiled
		FROM task_items
		WHERE tenant = ? AND task_id = ?
		ORDER BY position
	`, tenant, string(id))
	if err != nil {
		return nil, fmt.Errorf("task %s items: %w", id, err)
	}
	defer rows.Close()

	var items []recipe.TaskItem
	for rows.Next() {
		var item recipe.TaskItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Quantity, &item.Completed, &item.Spoiled); err != nil {
			return nil, fmt.Errorf("task %s items: scan: %w", id, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListTasksActiveOn returns all tasks whose window includes the given date,
// any status except CANCELLED.
func (s *Store) ListTasksActiveOn(ctx context.Context, tenant string, date time.Time) ([]*recipe.ProductionTask, error) {
	day := formatDate(date)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id
		FROM tasks
		WHERE tenant = ? AND start_date <= ? AND end_date >= ? AND status != ?
		ORDER BY id
	`, tenant, day, day, string(recipe.StatusCancelled))
	if err != nil {
		return nil, fmt.Errorf("list tasks on %s: %w", day, err)
	}

	var ids []recipe.TaskID
	for rows.Next() {
		var id recipe.TaskID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("list tasks on %s: scan: %w", day, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	tasks := make([]*recipe.ProductionTask, 0, len(ids))
	for _, id := range ids {
		t, err := s.GetTask(ctx, tenant, id)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// LoadSnapshotByTask returns the stored snapshot blob for a task, or
// ErrNotFound when the task has none yet.
func (s *Store) LoadSnapshotByTask(ctx context.Context, tenant string, taskID recipe.TaskID) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM snapshots WHERE tenant = ? AND task_id = ?
	`, tenant, string(taskID)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot for task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot for task %s: %w", taskID, err)
	}
	return data, nil
}

// GetProductionLogs returns the output rows posted when a task completed.
func (s *Store) GetProductionLogs(ctx context.Context, tenant string, taskID recipe.TaskID) ([]recipe.ProductionLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, quantity, spoiled, logged_at
		FROM production_logs
		WHERE tenant = ? AND task_id = ?
		ORDER BY product_id
	`, tenant, string(taskID))
	if err != nil {
		return nil, fmt.Errorf("production logs for task %s: %w", taskID, err)
	}
	defer rows.Close()

	var logs []recipe.ProductionLog
	for rows.Next() {
		l := recipe.ProductionLog{TaskID: taskID}
		var loggedStr string
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.Spoiled, &loggedStr); err != nil {
			return nil, fmt.Errorf("production logs for task %s: scan: %w", taskID, err)
		}
		if l.LoggedAt, err = time.Parse(time.RFC3339, loggedStr); err != nil {
			return nil, fmt.Errorf("production logs for task %s: %w", taskID, err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// GetConsumptionLogs returns the per-ingredient consumption posted for a
// task, ordered by ingredient id.
func (s *Store) GetConsumptionLogs(ctx context.Context, tenant string, taskID recipe.TaskID) ([]recipe.ConsumptionLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ingredient_id, grams, cost, logged_at
		FROM consumption_logs
		WHERE tenant = ? AND task_id = ?
		ORDER BY ingredient_id
	`, tenant, string(taskID))
	if err != nil {
		return nil, fmt.Errorf("consumption logs for task %s: %w", taskID, err)
	}
	defer rows.Close()

	var logs []recipe.ConsumptionLog
	for rows.Next() {
		l := recipe.ConsumptionLog{TaskID: taskID}
		var costStr, loggedStr string
		if err := rows.Scan(&l.IngredientID, &l.Grams, &costStr, &loggedStr); err != nil {
			return nil, fmt.Errorf("consumption logs for task %s: scan: %w", taskID, err)
		}
		if l.Cost, err = decimal.NewFromString(costStr); err != nil {
			return nil, fmt.Errorf("consumption logs for task %s: cost %q: %w", taskID, costStr, err)
		}
		if l.LoggedAt, err = time.Parse(time.RFC3339, loggedStr); err != nil {
			return nil, fmt.Errorf("consumption logs for task %s: %w", taskID, err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// GetSpoilageLogs returns the spoilage rows posted for a task, ordered by
// ingredient id.
func (s *Store) GetSpoilageLogs(ctx context.Context, tenant string, taskID recipe.TaskID) ([]recipe.SpoilageLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ingredient_id, grams, logged_at
		FROM spoilage_logs
		WHERE tenant = ? AND task_id = ?
		ORDER BY ingredient_id
	`, tenant, string(taskID))
	if err != nil {
		return nil, fmt.Errorf("spoilage logs for task %s: %w", taskID, err)
	}
	defer rows.Close()

	var logs []recipe.SpoilageLog
	for rows.Next() {
		l := recipe.SpoilageLog{TaskID: taskID}
		var loggedStr string
		if err := rows.Scan(&l.IngredientID, &l.Grams, &loggedStr); err != nil {
			return nil, fmt.Errorf("spoilage logs for task %s: scan: %w", taskID, err)
		}
		if l.LoggedAt, err = time.Parse(time.RFC3339, loggedStr); err != nil {
			return nil, fmt.Errorf("spoilage logs for task %s: %w", taskID, err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// GetStockAdjustments returns an ingredient's adjustment audit trail in
// insertion order.
func (s *Store) GetStockAdjustments(ctx context.Context, tenant string, id recipe.IngredientID) ([]recipe.StockAdjustment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT delta_grams, reason, adjusted_at
		FROM stock_adjustments
		WHERE tenant = ? AND ingredient_id = ?
		ORDER BY rowid
	`, tenant, string(id))
	if err != nil {
		return nil, fmt.Errorf("stock adjustments for %s: %w", id, err)
	}
	defer rows.Close()

	var adjustments []recipe.StockAdjustment
	for rows.Next() {
		a := recipe.StockAdjustment{IngredientID: id}
		var adjustedStr string
		if err := rows.Scan(&a.DeltaGrams, &a.Reason, &adjustedStr); err != nil {
			return nil, fmt.Errorf("stock adjustments for %s: scan: %w", id, err)
		}
		if a.AdjustedAt, err = time.Parse(time.RFC3339, adjustedStr); err != nil {
			return nil, fmt.Errorf("stock adjustments for %s: %w", id, err)
		}
		adjustments = append(adjustments, a)
	}
	return adjustments, rows.Err()
}
