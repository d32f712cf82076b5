// Package production wires the resolution engine, the snapshot assembler
// and the store into the tenant-scoped operations the CLI exposes.
//
// Every operation takes the tenant explicitly. Entities belonging to another
// tenant are reported NOT_FOUND, never as a permission failure, so callers
// cannot probe for foreign data. Computation runs against a task's frozen
// snapshot once one exists; tasks persisted before the snapshot mechanism
// get one generated lazily on first read.
package production

import (
	"context"
	"errors"
	"time"

	"github.com/ovenledger/ovenledger/internal/engine"
	"github.com/ovenledger/ovenledger/internal/recipe"
	"github.com/ovenledger/ovenledger/internal/snapshot"
	"github.com/ovenledger/ovenledger/internal/store"
)

// Service exposes the production-side operations over one store.
type Service struct {
	store     *store.Store
	assembler *snapshot.Assembler
	resolver  *engine.Resolver
	costs     *engine.Aggregator
	calc      *engine.Calculator
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source. Tests pin it.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithResolver overrides the tree resolver (e.g. to lower the depth bound).
func WithResolver(r *engine.Resolver) Option {
	return func(s *Service) { s.resolver = r }
}

// NewService creates a Service over the given store.
func NewService(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:    st,
		resolver: engine.NewResolver(),
		costs:    engine.NewAggregator(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.assembler = snapshot.NewAssembler(st)
	s.calc = engine.NewCalculator(s.resolver)
	return s
}

// GetTask returns one production task.
func (s *Service) GetTask(ctx context.Context, tenant string, id recipe.TaskID) (*recipe.ProductionTask, error) {
	t, err := s.store.GetTask(ctx, tenant, id)
	if err != nil {
		return nil, mapNotFound(err, "task", string(id))
	}
	return t, nil
}

// mapNotFound translates the store's row-missing sentinel into the engine's
// NOT_FOUND error; everything else passes through.
func mapNotFound(err error, kind, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return engine.NewNotFound(kind, id)
	}
	return err
}

// liveProduct loads a product and resolves its recipe trees from current
// state: the product's active version plus every linked mix-in version.
func (s *Service) liveProduct(
	ctx context.Context,
	tenant string,
	id recipe.ProductID,
) (engine.ProductSpec, *recipe.ResolvedNode, engine.TreeSource, error) {
	var none engine.ProductSpec

	p, err := s.store.GetProduct(ctx, tenant, id)
	if err != nil {
		return none, nil, nil, mapNotFound(err, "product", string(id))
	}
	if p.VersionID == "" {
		return none, nil, nil, engine.NewBadRequest("product " + string(id) + " has no active recipe version")
	}

	roots := []recipe.VersionID{p.VersionID}
	for _, pi := range p.Ingredients {
		if pi.IsLink() && pi.LinkedVersionID != "" {
			roots = append(roots, pi.LinkedVersionID)
		}
	}
	trees, _, err := s.assembler.Trees(ctx, tenant, roots)
	if err != nil {
		return none, nil, nil, err
	}

	source := func(id recipe.VersionID) *recipe.ResolvedNode { return trees[id] }
	return engine.LiveProductSpec(p), trees[p.VersionID], source, nil
}

// itemSpec resolves the computation inputs for one task item: the frozen
// snapshot binding when the item is covered by it, otherwise the live
// product (an item added to a PENDING task after its snapshot was taken).
func (s *Service) itemSpec(
	ctx context.Context,
	tenant string,
	snap *recipe.Snapshot,
	productID recipe.ProductID,
) (engine.ProductSpec, *recipe.ResolvedNode, engine.TreeSource, error) {
	if sp := snap.Product(productID); sp != nil {
		spec := engine.SnapshotProductSpec(sp)
		return spec, snap.Tree(sp.VersionID), snap.Tree, nil
	}
	return s.liveProduct(ctx, tenant, productID)
}

// ledgerFor bulk-loads the ingredient rows referenced by a weight map.
func (s *Service) ledgerFor(ctx context.Context, tenant string, w engine.Weights) (engine.Ledger, error) {
	rows, err := s.store.GetIngredients(ctx, tenant, w.IDs())
	if err != nil {
		return nil, err
	}
	return engine.Ledger(rows), nil
}
