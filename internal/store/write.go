package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ovenledger/ovenledger/internal/recipe"
)

// UpsertIngredient inserts or replaces a ledger row.
func (s *Store) UpsertIngredient(ctx context.Context, ing *recipe.Ingredient) error {
	isFlour := 0
	if ing.IsFlour {
		isFlour = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingredients (tenant, id, name, is_flour, water_content, stock_grams, stock_value, class)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant, id) DO UPDATE SET
			name = excluded.name,
			is_flour = excluded.is_flour,
			water_content = excluded.water_content,
			stock_grams = excluded.stock_grams,
			stock_value = excluded.stock_value,
			class = excluded.class
	`,
		ing.Tenant, string(ing.ID), ing.Name, isFlour, ing.WaterContent,
		ing.StockGrams, ing.StockValue.String(), string(ing.Class),
	)
	if err != nil {
		return fmt.Errorf("upsert ingredient %s: %w", ing.ID, err)
	}
	return nil
}

// AddPurchase appends a purchase record for an ingredient.
func (s *Store) AddPurchase(ctx context.Context, tenant string, p recipe.PurchaseRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO purchases (tenant, ingredient_id, price, package_grams, purchased_at)
		VALUES (?, ?, ?, ?, ?)
	`, tenant, string(p.IngredientID), p.Price.String(), p.PackageGrams, formatDate(p.PurchasedAt))
	if err != nil {
		return fmt.Errorf("add purchase for %s: %w", p.IngredientID, err)
	}
	return nil
}

// UpsertFamily inserts or replaces a recipe family.
func (s *Store) UpsertFamily(ctx context.Context, f *recipe.Family) error {
	discontinued := 0
	if f.Discontinued {
		discontinued = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO families (tenant, id, name, category, kind, output_ingredient_id, active_version_id, discontinued)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant, id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			kind = excluded.kind,
			output_ingredient_id = excluded.output_ingredient_id,
			active_version_id = excluded.active_version_id,
			discontinued = excluded.discontinued
	`,
		f.Tenant, string(f.ID), f.Name, string(f.Category), string(f.Kind),
		string(f.OutputIngredientID), string(f.ActiveVersionID), discontinued,
	)
	if err != nil {
		return fmt.Errorf("upsert family %s: %w", f.ID, err)
	}
	return nil
}

// UpsertVersion replaces a version node: the version row plus all its
// components and lines, in one transaction.
func (s *Store) UpsertVersion(ctx context.Context, tenant string, node *recipe.VersionNode) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO versions (tenant, id, family_id)
			VALUES (?, ?, ?)
			ON CONFLICT(tenant, id) DO UPDATE SET family_id = excluded.family_id
		`, tenant, string(node.ID), string(node.FamilyID)); err != nil {
			return fmt.Errorf("upsert version %s: %w", node.ID, err)
		}

		// Replace component rows wholesale; authored order is the position.
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM component_ingredients
			WHERE tenant = ? AND component_id IN (
				SELECT id FROM components WHERE tenant = ? AND version_id = ?
			)
		`, tenant, tenant, string(node.ID)); err != nil {
			return fmt.Errorf("upsert version %s: clear lines: %w", node.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM components WHERE tenant = ? AND version_id = ?
		`, tenant, string(node.ID)); err != nil {
			return fmt.Errorf("upsert version %s: clear components: %w", node.ID, err)
		}

		for pos, c := range node.Components {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO components (tenant, id, version_id, position, name, loss_ratio, division_loss)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, tenant, string(c.ID), string(node.ID), pos, c.Name, c.LossRatio, c.DivisionLoss); err != nil {
				return fmt.Errorf("upsert version %s: component %s: %w", node.ID, c.ID, err)
			}
			for ipos, ci := range c.Ingredients {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO component_ingredients
					(tenant, component_id, position, name, ingredient_id, linked_family_id, ratio, flour_ratio)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				`,
					tenant, string(c.ID), ipos, ci.Name, string(ci.IngredientID),
					string(ci.LinkedFamilyID), ci.Ratio, ci.FlourRatio,
				); err != nil {
					return fmt.Errorf("upsert version %s: line %d of %s: %w", node.ID, ipos, c.ID, err)
				}
			}
		}
		return nil
	})
}

// UpsertProduct inserts or replaces a product and its mix-in lines.
func (s *Store) UpsertProduct(ctx context.Context, p *recipe.Product) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO products (tenant, id, name, family_id, category, base_dough_weight)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(tenant, id) DO UPDATE SET
				name = excluded.name,
				family_id = excluded.family_id,
				category = excluded.category,
				base_dough_weight = excluded.base_dough_weight
		`, p.Tenant, string(p.ID), p.Name, string(p.FamilyID), string(p.Category), p.BaseDoughWeight); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM product_ingredients WHERE tenant = ? AND product_id = ?
		`, p.Tenant, string(p.ID)); err != nil {
			return fmt.Errorf("upsert product %s: clear lines: %w", p.ID, err)
		}
		for pos, pi := range p.Ingredients {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO product_ingredients (tenant, product_id, position, name, ingredient_id, linked_family_id, ratio)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, p.Tenant, string(p.ID), pos, pi.Name, string(pi.IngredientID), string(pi.LinkedFamilyID), pi.Ratio); err != nil {
				return fmt.Errorf("upsert product %s: line %d: %w", p.ID, pos, err)
			}
		}
		return nil
	})
}

// CreateTask inserts a new task with its items.
func (s *Store) CreateTask(ctx context.Context, t *recipe.ProductionTask) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var snapshotID any
		if t.SnapshotID != "" {
			snapshotID = t.SnapshotID
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (tenant, id, status, start_date, end_date, snapshot_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			t.Tenant, string(t.ID), string(t.Status),
			formatDate(t.StartDate), formatDate(t.EndDate),
			snapshotID, t.CreatedAt.UTC().Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("create task %s: %w", t.ID, err)
		}
		return insertTaskItems(ctx, tx, t)
	})
}

// UpdateTaskItems replaces a PENDING task's window and items. The status
// precondition is enforced in SQL so a racing transition loses cleanly.
func (s *Store) UpdateTaskItems(ctx context.Context, t *recipe.ProductionTask) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks SET start_date = ?, end_date = ?
			WHERE tenant = ? AND id = ? AND status = ?
		`, formatDate(t.StartDate), formatDate(t.EndDate), t.Tenant, string(t.ID), string(recipe.StatusPending))
		if err != nil {
			return fmt.Errorf("update task %s: %w", t.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update task %s: %w", t.ID, err)
		}
		if n == 0 {
			return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM task_items WHERE tenant = ? AND task_id = ?
		`, t.Tenant, string(t.ID)); err != nil {
			return fmt.Errorf("update task %s: clear items: %w", t.ID, err)
		}
		return insertTaskItems(ctx, tx, t)
	})
}

func insertTaskItems(ctx context.Context, tx *sql.Tx, t *recipe.ProductionTask) error {
	for pos, item := range t.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO task_items (tenant, task_id, position, product_id, product_name, quantity, completed, spoiled)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			t.Tenant, string(t.ID), pos, string(item.ProductID), item.ProductName,
			item.Quantity, item.Completed, item.Spoiled,
		); err != nil {
			return fmt.Errorf("task %s: item %d: %w", t.ID, pos, err)
		}
	}
	return nil
}

// DeleteTask removes a PENDING task and its items.
func (s *Store) DeleteTask(ctx context.Context, tenant string, id recipe.TaskID) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM tasks WHERE tenant = ? AND id = ? AND status = ?
		`, tenant, string(id), string(recipe.StatusPending))
		if err != nil {
			return fmt.Errorf("delete task %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete task %s: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		_, err = tx.ExecContext(ctx, `
			DELETE FROM task_items WHERE tenant = ? AND task_id = ?
		`, tenant, string(id))
		if err != nil {
			return fmt.Errorf("delete task %s: items: %w", id, err)
		}
		return nil
	})
}

// UpdateTaskStatus transitions a task from one status to another. The
// precondition is part of the UPDATE so concurrent transitions serialize;
// zero rows affected means the task was not in the expected status (or does
// not exist in this tenant).
func (s *Store) UpdateTaskStatus(ctx context.Context, tenant string, id recipe.TaskID, from, to recipe.TaskStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?
		WHERE tenant = ? AND id = ? AND status = ?
	`, string(to), tenant, string(id), string(from))
	if err != nil {
		return fmt.Errorf("transition task %s to %s: %w", id, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition task %s to %s: %w", id, to, err)
	}
	if n == 0 {
		return fmt.Errorf("task %s not in status %s: %w", id, from, ErrNotFound)
	}
	return nil
}

// SaveTaskSnapshot persists an encoded snapshot and binds it to its task,
// exactly once: a task that already has a snapshot keeps it untouched.
func (s *Store) SaveTaskSnapshot(ctx context.Context, tenant string, taskID recipe.TaskID, snapshotID string, createdAt time.Time, data []byte) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks SET snapshot_id = ?
			WHERE tenant = ? AND id = ? AND snapshot_id IS NULL
		`, snapshotID, tenant, string(taskID))
		if err != nil {
			return fmt.Errorf("bind snapshot to task %s: %w", taskID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("bind snapshot to task %s: %w", taskID, err)
		}
		if n == 0 {
			// Already has one; the stored snapshot wins.
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO snapshots (tenant, id, task_id, created_at, data)
			VALUES (?, ?, ?, ?, ?)
		`, tenant, snapshotID, string(taskID), createdAt.UTC().Format(time.RFC3339), data); err != nil {
			return fmt.Errorf("save snapshot %s: %w", snapshotID, err)
		}
		return nil
	})
}
