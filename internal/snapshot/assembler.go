// Package snapshot materializes immutable point-in-time copies of recipe
// trees for production tasks.
//
// Assembly is two-phase. Collection walks the referenced sub-tree breadth
// first, issuing one bulk fetch per level so round trips are bounded by tree
// depth, not node count, and each version is fetched exactly once no matter
// how many parents reference it. Stitching then resolves each root depth
// first over the collected shallow nodes, memoized per version id, with an
// in-progress sentinel that turns an unexpected cycle into a hard error
// instead of infinite recursion. The shallow node map is never mutated;
// every resolved node is built fresh, so parents sharing a sub-recipe share
// the same resolved subtree without cross-contamination.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ovenledger/ovenledger/internal/engine"
	"github.com/ovenledger/ovenledger/internal/recipe"
)

// VersionSource supplies shallow version nodes in bulk. Implemented by the
// store; tests use an in-memory map.
type VersionSource interface {
	// FetchVersions returns the shallow nodes for the requested ids,
	// tenant-scoped. Ids absent from the result simply do not exist.
	FetchVersions(ctx context.Context, tenant string, ids []recipe.VersionID) (map[recipe.VersionID]*recipe.VersionNode, error)
}

// Assembler builds snapshots from a VersionSource.
type Assembler struct {
	source VersionSource
}

// NewAssembler creates an Assembler.
func NewAssembler(source VersionSource) *Assembler {
	return &Assembler{source: source}
}

// Assemble collects and stitches the trees rooted at roots and freezes them
// into a snapshot for taskID, together with the given product bindings.
//
// A root that does not exist is a hard NOT_FOUND failure: the operation was
// asked to snapshot something that is not there. A nested version that has
// gone missing (family deleted after authoring) is stitched as a dangling
// link and contributes zero weight downstream, matching the resolver's
// degrade policy for missing references.
func (a *Assembler) Assemble(
	ctx context.Context,
	tenant string,
	taskID recipe.TaskID,
	roots []recipe.VersionID,
	products []recipe.SnapshotProduct,
	now time.Time,
) (*recipe.Snapshot, error) {
	trees, rootList, err := a.Trees(ctx, tenant, roots)
	if err != nil {
		return nil, err
	}

	snap := &recipe.Snapshot{
		SchemaVersion: recipe.SnapshotSchemaVersion,
		ID:            uuid.NewString(),
		TaskID:        taskID,
		CreatedAt:     now.UTC(),
		Roots:         rootList,
		Trees:         trees,
		Products:      products,
	}
	hash, err := recipe.SnapshotHash(snap)
	if err != nil {
		return nil, fmt.Errorf("assemble snapshot for task %s: %w", taskID, err)
	}
	snap.Hash = hash

	slog.Info("snapshot assembled",
		"task_id", taskID,
		"snapshot_id", snap.ID,
		"roots", len(rootList),
	)
	return snap, nil
}

// Trees collects and stitches the trees rooted at roots without freezing
// them into a snapshot record. This is the live-resolution entry point for
// operations running against current recipe state rather than a frozen
// copy. Returns the resolved tree per root plus the deduplicated root order.
func (a *Assembler) Trees(
	ctx context.Context,
	tenant string,
	roots []recipe.VersionID,
) (map[recipe.VersionID]*recipe.ResolvedNode, []recipe.VersionID, error) {
	shallow, err := a.collect(ctx, tenant, roots)
	if err != nil {
		return nil, nil, err
	}

	memo := make(map[recipe.VersionID]*recipe.ResolvedNode)
	inProgress := make(map[recipe.VersionID]bool)

	trees := make(map[recipe.VersionID]*recipe.ResolvedNode, len(roots))
	rootList := make([]recipe.VersionID, 0, len(roots))
	seenRoots := make(map[recipe.VersionID]bool, len(roots))
	for _, id := range roots {
		if id == "" || seenRoots[id] {
			continue
		}
		seenRoots[id] = true
		if shallow[id] == nil {
			return nil, nil, engine.NewNotFound("recipe version", string(id))
		}
		node, err := stitch(id, shallow, memo, inProgress, nil)
		if err != nil {
			return nil, nil, err
		}
		trees[id] = node
		rootList = append(rootList, id)
	}
	return trees, rootList, nil
}

// collect walks the referenced sub-tree breadth first. Each round issues one
// bulk fetch for every id discovered in the previous round that has not been
// seen before, so the number of store round trips equals the tree depth.
func (a *Assembler) collect(ctx context.Context, tenant string, roots []recipe.VersionID) (map[recipe.VersionID]*recipe.VersionNode, error) {
	collected := make(map[recipe.VersionID]*recipe.VersionNode)
	discovered := make(map[recipe.VersionID]bool)

	var batch []recipe.VersionID
	for _, id := range roots {
		if id == "" || discovered[id] {
			continue
		}
		discovered[id] = true
		batch = append(batch, id)
	}

	rounds := 0
	for len(batch) > 0 {
		rounds++
		fetched, err := a.source.FetchVersions(ctx, tenant, batch)
		if err != nil {
			return nil, fmt.Errorf("collect round %d (%d ids): %w", rounds, len(batch), err)
		}

		var next []recipe.VersionID
		for _, id := range batch {
			node, ok := fetched[id]
			if !ok || node == nil {
				// Dangling reference; stitched as a nil link later.
				slog.Warn("referenced recipe version missing", "version_id", id)
				continue
			}
			collected[id] = node
			for _, child := range node.LinkedVersionIDs() {
				if child == "" || discovered[child] {
					continue
				}
				discovered[child] = true
				next = append(next, child)
			}
		}
		batch = next
	}

	slog.Debug("snapshot collection finished",
		"versions", len(collected),
		"rounds", rounds,
	)
	return collected, nil
}

// stitch resolves one version id against the shallow map. memo caches
// finished nodes so shared sub-recipes are resolved once; inProgress marks
// ids currently being resolved so a revisit during resolution is a cycle.
func stitch(
	id recipe.VersionID,
	shallow map[recipe.VersionID]*recipe.VersionNode,
	memo map[recipe.VersionID]*recipe.ResolvedNode,
	inProgress map[recipe.VersionID]bool,
	path []recipe.VersionID,
) (*recipe.ResolvedNode, error) {
	if node, ok := memo[id]; ok {
		return node, nil
	}
	if inProgress[id] {
		return nil, engine.NewCycleError(path, id)
	}
	sn := shallow[id]
	if sn == nil {
		// Dangling link: resolved as absent, zero contribution downstream.
		return nil, nil
	}

	inProgress[id] = true
	defer delete(inProgress, id)
	path = append(path, id)

	resolved := &recipe.ResolvedNode{
		VersionID:  sn.ID,
		FamilyID:   sn.FamilyID,
		FamilyName: sn.FamilyName,
		Kind:       sn.Kind,
		Components: make([]recipe.ResolvedComponent, 0, len(sn.Components)),
	}
	for _, c := range sn.Components {
		rc := recipe.ResolvedComponent{
			ID:           c.ID,
			Name:         c.Name,
			LossRatio:    c.LossRatio,
			DivisionLoss: c.DivisionLoss,
			Ingredients:  make([]recipe.ResolvedIngredient, 0, len(c.Ingredients)),
		}
		for _, ci := range c.Ingredients {
			ri := recipe.ResolvedIngredient{
				Name:         ci.Name,
				IngredientID: ci.IngredientID,
				LinkKind:     ci.LinkKind,
				Ratio:        ci.Ratio,
				FlourRatio:   ci.FlourRatio,
			}
			if ci.IsLink() && ci.LinkedVersionID != "" {
				sub, err := stitch(ci.LinkedVersionID, shallow, memo, inProgress, path)
				if err != nil {
					return nil, err
				}
				ri.Sub = sub
			}
			rc.Ingredients = append(rc.Ingredients, ri)
		}
		resolved.Components = append(resolved.Components, rc)
	}

	memo[id] = resolved
	return resolved, nil
}
