package recipe

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaskStatus is the production task lifecycle state.
//
// Transitions:
//
//	PENDING     -> IN_PROGRESS | CANCELLED
//	IN_PROGRESS -> COMPLETED | CANCELLED
//	COMPLETED   -> (terminal)
//	CANCELLED   -> (terminal)
//
// Only PENDING tasks may be edited or deleted. COMPLETED is irreversible and
// triggers the inventory posting pipeline.
type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
	StatusCancelled  TaskStatus = "CANCELLED"
)

// CanTransition reports whether moving from s to next is a legal lifecycle
// transition.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusCancelled
	case StatusInProgress:
		return next == StatusCompleted || next == StatusCancelled
	default:
		return false
	}
}

// Terminal reports whether the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ProductionTask is an order to produce N units of one or more products
// on or between two dates.
type ProductionTask struct {
	ID        TaskID
	Tenant    string
	Status    TaskStatus
	StartDate time.Time
	EndDate   time.Time
	Items     []TaskItem

	// SnapshotID references the immutable recipe snapshot captured at
	// creation. Empty only for tasks persisted before the snapshot
	// mechanism existed; those get one lazily on first read.
	SnapshotID string

	CreatedAt time.Time
}

// ActiveOn reports whether the task's window includes the given date
// (date precision, inclusive on both ends).
func (t *ProductionTask) ActiveOn(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	start := t.StartDate.Truncate(24 * time.Hour)
	end := t.EndDate.Truncate(24 * time.Hour)
	return !d.Before(start) && !d.After(end)
}

// TaskItem is one product line of a production task.
type TaskItem struct {
	ProductID   ProductID
	ProductName string
	Quantity    int

	// Completed and Spoiled are reported at completion time.
	// Completed + Spoiled <= Quantity.
	Completed int
	Spoiled   int
}

// Append-only records created exactly once at task completion.

// ProductionLog records the finished output of one task item.
type ProductionLog struct {
	TaskID    TaskID
	ProductID ProductID
	Quantity  int
	Spoiled   int
	LoggedAt  time.Time
}

// ConsumptionLog records per-ingredient consumption posted for a task.
type ConsumptionLog struct {
	TaskID       TaskID
	IngredientID IngredientID
	Grams        float64
	Cost         decimal.Decimal
	LoggedAt     time.Time
}

// SpoilageLog records consumption attributable to reported spoilage,
// posted separately from ordinary process loss.
type SpoilageLog struct {
	TaskID       TaskID
	IngredientID IngredientID
	Grams        float64
	LoggedAt     time.Time
}

// StockAdjustment is a signed correction to an ingredient's stock with an
// audit reason referencing the originating task.
type StockAdjustment struct {
	IngredientID IngredientID
	DeltaGrams   float64
	Reason       string
	AdjustedAt   time.Time
}
