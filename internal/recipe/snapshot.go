package recipe

import "time"

// SnapshotSchemaVersion is the current snapshot record schema version.
// Bump when the serialized shape changes; DecodeSnapshot rejects versions it
// does not know how to read instead of casting through.
const SnapshotSchemaVersion = "1"

// Snapshot is an immutable, fully resolved copy of the recipe trees a
// production task depends on, captured when the task is created.
//
// Once persisted a snapshot is never mutated. Downstream consumption and
// bill-of-materials computations prefer the snapshot over live lookups so
// that later edits to the live recipe cannot retroactively change a task's
// committed economics.
type Snapshot struct {
	SchemaVersion string      `json:"schema_version"`
	ID            string      `json:"id"`
	TaskID        TaskID      `json:"task_id"`
	CreatedAt     time.Time   `json:"created_at"`
	Roots         []VersionID `json:"roots"`

	// Trees holds the resolved tree per root version id. Shared sub-recipes
	// appear inline in every tree that references them.
	Trees map[VersionID]*ResolvedNode `json:"trees"`

	// Products freezes the product bindings the task was created with.
	Products []SnapshotProduct `json:"products"`

	// Hash is the hex SHA-256 of the canonical JSON form of the snapshot
	// with this field empty. Used to detect storage corruption.
	Hash string `json:"hash,omitempty"`
}

// SnapshotProduct is the frozen product data needed to derive consumption
// without consulting the live product record.
type SnapshotProduct struct {
	ProductID       ProductID           `json:"product_id"`
	Name            string              `json:"name"`
	VersionID       VersionID           `json:"version_id"`
	BaseDoughWeight float64             `json:"base_dough_weight"`
	Ingredients     []ProductIngredient `json:"ingredients,omitempty"`
}

// Tree returns the resolved tree for a root version id, or nil.
func (s *Snapshot) Tree(id VersionID) *ResolvedNode {
	if s == nil {
		return nil
	}
	return s.Trees[id]
}

// Product returns the frozen product binding for id, or nil.
func (s *Snapshot) Product(id ProductID) *SnapshotProduct {
	if s == nil {
		return nil
	}
	for i := range s.Products {
		if s.Products[i].ProductID == id {
			return &s.Products[i]
		}
	}
	return nil
}
