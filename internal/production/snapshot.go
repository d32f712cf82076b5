package production

import (
	"context"
	"log/slog"

	"github.com/ovenledger/ovenledger/internal/recipe"
	"github.com/ovenledger/ovenledger/internal/snapshot"
)

// BuildSnapshot returns the task's frozen recipe snapshot, generating and
// persisting one from current recipe state when the task predates the
// snapshot mechanism. Once a snapshot is bound it is immutable; repeated
// calls return the stored copy.
func (s *Service) BuildSnapshot(ctx context.Context, tenant string, taskID recipe.TaskID) (*recipe.Snapshot, error) {
	t, err := s.store.GetTask(ctx, tenant, taskID)
	if err != nil {
		return nil, mapNotFound(err, "task", string(taskID))
	}
	return s.taskSnapshot(ctx, tenant, t)
}

// taskSnapshot loads the task's snapshot, building it lazily if absent.
func (s *Service) taskSnapshot(ctx context.Context, tenant string, t *recipe.ProductionTask) (*recipe.Snapshot, error) {
	if t.SnapshotID != "" {
		data, err := s.store.LoadSnapshotByTask(ctx, tenant, t.ID)
		if err != nil {
			return nil, mapNotFound(err, "snapshot for task", string(t.ID))
		}
		return snapshot.Decode(data)
	}

	products, roots, err := s.snapshotInputs(ctx, tenant, t.Items)
	if err != nil {
		return nil, err
	}
	snap, err := s.assembler.Assemble(ctx, tenant, t.ID, roots, products, s.now())
	if err != nil {
		return nil, err
	}
	data, err := snapshot.Encode(snap)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveTaskSnapshot(ctx, tenant, t.ID, snap.ID, snap.CreatedAt, data); err != nil {
		return nil, err
	}
	slog.Info("snapshot generated lazily",
		"task_id", t.ID,
		"snapshot_id", snap.ID,
	)

	// A concurrent builder may have bound its snapshot first; the stored
	// copy is authoritative either way.
	stored, err := s.store.LoadSnapshotByTask(ctx, tenant, t.ID)
	if err != nil {
		return nil, mapNotFound(err, "snapshot for task", string(t.ID))
	}
	return snapshot.Decode(stored)
}

// snapshotInputs derives the snapshot's product bindings and root version
// ids from the task items' current products: each product's active version
// plus every linked mix-in version.
func (s *Service) snapshotInputs(
	ctx context.Context,
	tenant string,
	items []recipe.TaskItem,
) ([]recipe.SnapshotProduct, []recipe.VersionID, error) {
	products := make([]recipe.SnapshotProduct, 0, len(items))
	var roots []recipe.VersionID
	for _, item := range items {
		p, err := s.store.GetProduct(ctx, tenant, item.ProductID)
		if err != nil {
			return nil, nil, mapNotFound(err, "product", string(item.ProductID))
		}
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
	return products, roots, nil
}
