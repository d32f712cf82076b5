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

// stockEpsilon absorbs float noise when comparing stock against a
// deduction; a stock short by less than this is considered sufficient.
const stockEpsilon = 1e-6

// InsufficientStockError reports a tracked ingredient whose stock cannot
// cover a deduction. Raised inside the completion transaction, which then
// rolls back in full.
type InsufficientStockError struct {
	IngredientID  recipe.IngredientID
	Name          string
	RequiredGrams float64
	StockGrams    float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: need %.2f g, have %.2f g", e.Name, e.RequiredGrams, e.StockGrams)
}

// StockDeduction is one planned stock movement of a task completion.
type StockDeduction struct {
	IngredientID recipe.IngredientID

	// Grams to remove from stock, and the stock value removed with them
	// (grams times the weighted-average unit cost at completion time).
	Grams float64
	Cost  decimal.Decimal

	// Reason tags the movement: consumption, spoilage or process_loss.
	Reason string

	// Tracked ingredients (STANDARD, SELF_MADE) have their stock validated
	// and deducted; non-inventoried ones are only logged.
	Tracked bool
}

// SelfOutput is a stock increment for a self-produced ingredient: the
// completed task's own output entering the ledger.
type SelfOutput struct {
	IngredientID recipe.IngredientID
	Grams        float64
	Value        decimal.Decimal
}

// ItemResult carries the reported outcome for one task item.
type ItemResult struct {
	ProductID recipe.ProductID
	Completed int
	Spoiled   int
}

// CompletionParams is everything the completion transaction posts.
type CompletionParams struct {
	TaskID      recipe.TaskID
	Items       []ItemResult
	Deductions  []StockDeduction
	SelfOutputs []SelfOutput
	CompletedAt time.Time
}

// CompleteTask atomically transitions a task to COMPLETED and posts every
// computed stock movement: successful-unit consumption, spoilage, process
// loss and self-produced output, plus the append-only log rows. Any failure,
// including a tracked ingredient with insufficient stock, rolls back the
// entire transaction; no partial postings survive.
//
// The pre-flight sufficiency check callers run is advisory only. This
// transaction is the authority: it re-reads each tracked stock row under
// the write lock, so concurrent completions racing for the same ingredient
// serialize correctly.
func (s *Store) CompleteTask(ctx context.Context, tenant string, p CompletionParams) error {
	loggedAt := p.CompletedAt.UTC().Format(time.RFC3339)

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE tasks SET status = ?
			WHERE tenant = ? AND id = ? AND status = ?
		`, string(recipe.StatusCompleted), tenant, string(p.TaskID), string(recipe.StatusInProgress))
		if err != nil {
			return fmt.Errorf("complete task %s: %w", p.TaskID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("complete task %s: %w", p.TaskID, err)
		}
		if n == 0 {
			return fmt.Errorf("task %s not in status %s: %w", p.TaskID, recipe.StatusInProgress, ErrNotFound)
		}

		for _, item := range p.Items {
			if _, err := tx.ExecContext(ctx, `
				UPDATE task_items SET completed = ?, spoiled = ?
				WHERE tenant = ? AND task_id = ? AND product_id = ?
			`, item.Completed, item.Spoiled, tenant, string(p.TaskID), string(item.ProductID)); err != nil {
				return fmt.Errorf("complete task %s: item %s: %w", p.TaskID, item.ProductID, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO production_logs (tenant, task_id, product_id, quantity, spoiled, logged_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`, tenant, string(p.TaskID), string(item.ProductID), item.Completed, item.Spoiled, loggedAt); err != nil {
				return fmt.Errorf("complete task %s: production log %s: %w", p.TaskID, item.ProductID, err)
			}
		}

		for _, d := range p.Deductions {
			if err := s.applyDeduction(ctx, tx, tenant, p.TaskID, d, loggedAt); err != nil {
				return err
			}
		}

		for _, o := range p.SelfOutputs {
			if err := s.applySelfOutput(ctx, tx, tenant, p.TaskID, o, loggedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) applyDeduction(ctx context.Context, tx *sql.Tx, tenant string, taskID recipe.TaskID, d StockDeduction, loggedAt string) error {
	if d.Tracked {
		var (
			name     string
			grams    float64
			valueStr string
		)
		err := tx.QueryRowContext(ctx, `
			SELECT name, stock_grams, stock_value FROM ingredients
			WHERE tenant = ? AND id = ?
		`, tenant, string(d.IngredientID)).Scan(&name, &grams, &valueStr)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("ingredient %s: %w", d.IngredientID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("deduct %s: %w", d.IngredientID, err)
		}
		if grams+stockEpsilon < d.Grams {
			return &InsufficientStockError{
				IngredientID:  d.IngredientID,
				Name:          name,
				RequiredGrams: d.Grams,
				StockGrams:    grams,
			}
		}
		value, err := decimal.NewFromString(valueStr)
		if err != nil {
			return fmt.Errorf("deduct %s: stock value %q: %w", d.IngredientID, valueStr, err)
		}
		newGrams := grams - d.Grams
		if newGrams < 0 {
			newGrams = 0
		}
		newValue := value.Sub(d.Cost)
		if newValue.IsNegative() {
			newValue = decimal.Zero
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE ingredients SET stock_grams = ?, stock_value = ?
			WHERE tenant = ? AND id = ?
		`, newGrams, newValue.String(), tenant, string(d.IngredientID)); err != nil {
			return fmt.Errorf("deduct %s: %w", d.IngredientID, err)
		}
	}

	reason := fmt.Sprintf("%s for task %s", d.Reason, taskID)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stock_adjustments (tenant, ingredient_id, delta_grams, reason, adjusted_at)
		VALUES (?, ?, ?, ?, ?)
	`, tenant, string(d.IngredientID), -d.Grams, reason, loggedAt); err != nil {
		return fmt.Errorf("adjustment for %s: %w", d.IngredientID, err)
	}

	switch d.Reason {
	case "spoilage":
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO spoilage_logs (tenant, task_id, ingredient_id, grams, logged_at)
			VALUES (?, ?, ?, ?, ?)
		`, tenant, string(taskID), string(d.IngredientID), d.Grams, loggedAt); err != nil {
			return fmt.Errorf("spoilage log for %s: %w", d.IngredientID, err)
		}
	case "consumption":
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO consumption_logs (tenant, task_id, ingredient_id, grams, cost, logged_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, tenant, string(taskID), string(d.IngredientID), d.Grams, d.Cost.String(), loggedAt); err != nil {
			return fmt.Errorf("consumption log for %s: %w", d.IngredientID, err)
		}
	}
	return nil
}

func (s *Store) applySelfOutput(ctx context.Context, tx *sql.Tx, tenant string, taskID recipe.TaskID, o SelfOutput, loggedAt string) error {
	var (
		grams    float64
		valueStr string
	)
	err := tx.QueryRowContext(ctx, `
		SELECT stock_grams, stock_value FROM ingredients
		WHERE tenant = ? AND id = ?
	`, tenant, string(o.IngredientID)).Scan(&grams, &valueStr)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("self-made ingredient %s: %w", o.IngredientID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("increment %s: %w", o.IngredientID, err)
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return fmt.Errorf("increment %s: stock value %q: %w", o.IngredientID, valueStr, err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE ingredients SET stock_grams = ?, stock_value = ?
		WHERE tenant = ? AND id = ?
	`, grams+o.Grams, value.Add(o.Value).String(), tenant, string(o.IngredientID)); err != nil {
		return fmt.Errorf("increment %s: %w", o.IngredientID, err)
	}

	reason := fmt.Sprintf("self-produced output for task %s", taskID)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO stock_adjustments (tenant, ingredient_id, delta_grams, reason, adjusted_at)
		VALUES (?, ?, ?, ?, ?)
	`, tenant, string(o.IngredientID), o.Grams, reason, loggedAt); err != nil {
		return fmt.Errorf("adjustment for %s: %w", o.IngredientID, err)
	}
	return nil
}
