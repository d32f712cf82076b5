package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ovenledger/ovenledger/internal/store"
)

// Seed writes the catalog into the store: ingredients first, then families
// with their versions, then products and purchase history. Catalog entities
// are upserted, so reloading an edited definitions directory is safe;
// purchases are append-only history and are written as given.
func (c *Catalog) Seed(ctx context.Context, st *store.Store, tenant string) error {
	for i := range c.Ingredients {
		if err := st.UpsertIngredient(ctx, &c.Ingredients[i]); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	for i := range c.Families {
		def := &c.Families[i]
		if err := st.UpsertFamily(ctx, &def.Family); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		if err := st.UpsertVersion(ctx, tenant, &def.Version); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	for i := range c.Products {
		p := c.Products[i]
		if p.Category == "" {
			for _, def := range c.Families {
				if def.Family.ID == p.FamilyID {
					p.Category = def.Family.Category
					break
				}
			}
		}
		if err := st.UpsertProduct(ctx, &p); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	for _, p := range c.Purchases {
		if err := st.AddPurchase(ctx, tenant, p); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	slog.Info("catalog seeded",
		"ingredients", len(c.Ingredients),
		"families", len(c.Families),
		"products", len(c.Products),
		"purchases", len(c.Purchases),
	)
	return nil
}
