package catalog

import (
	"fmt"

	"github.com/ovenledger/ovenledger/internal/recipe"
)

// validate cross-checks the compiled catalog: enum values, ratio ranges,
// reference resolution and family-link acyclicity. All defects are
// collected; a catalog with any defect is never seeded.
func (c *Catalog) validate() []error {
	var errs []error

	ingredients := make(map[recipe.IngredientID]bool, len(c.Ingredients))
	for _, ing := range c.Ingredients {
		ingredients[ing.ID] = true
		switch ing.Class {
		case recipe.ClassStandard, recipe.ClassNonInventoried, recipe.ClassSelfMade:
		default:
			errs = append(errs, fmt.Errorf("ingredient %s: unknown class %q", ing.ID, ing.Class))
		}
		if ing.WaterContent < 0 || ing.WaterContent > 1 {
			errs = append(errs, fmt.Errorf("ingredient %s: water_content %v outside [0,1]", ing.ID, ing.WaterContent))
		}
		if ing.StockGrams < 0 {
			errs = append(errs, fmt.Errorf("ingredient %s: negative stock", ing.ID))
		}
	}

	families := make(map[recipe.FamilyID]*familyDef, len(c.Families))
	for i := range c.Families {
		def := &c.Families[i]
		families[def.Family.ID] = def
	}

	for _, def := range c.Families {
		f := def.Family
		switch f.Category {
		case recipe.CategoryBread, recipe.CategoryOther:
		default:
			errs = append(errs, fmt.Errorf("family %s: unknown category %q", f.ID, f.Category))
		}
		switch f.Kind {
		case recipe.KindMain, recipe.KindPreDough, recipe.KindExtra:
		default:
			errs = append(errs, fmt.Errorf("family %s: unknown kind %q", f.ID, f.Kind))
		}
		if f.OutputIngredientID != "" && !ingredients[f.OutputIngredientID] {
			errs = append(errs, fmt.Errorf("family %s: output ingredient %s does not exist", f.ID, f.OutputIngredientID))
		}
		errs = append(errs, validateVersion(def.Version, ingredients, families)...)
	}

	errs = append(errs, checkFamilyCycles(families)...)

	products := make(map[recipe.ProductID]bool, len(c.Products))
	for _, p := range c.Products {
		products[p.ID] = true
		fam, ok := families[p.FamilyID]
		if !ok {
			errs = append(errs, fmt.Errorf("product %s: family %s does not exist", p.ID, p.FamilyID))
			continue
		}
		if p.Category == "" {
			// Default to the family's category; seeding persists the result.
		} else if p.Category != fam.Family.Category {
			errs = append(errs, fmt.Errorf("product %s: category %q differs from family %s", p.ID, p.Category, p.FamilyID))
		}
		if p.BaseDoughWeight <= 0 {
			errs = append(errs, fmt.Errorf("product %s: base dough weight must be positive", p.ID))
		}
		for _, pi := range p.Ingredients {
			if pi.Ratio < 0 {
				errs = append(errs, fmt.Errorf("product %s: mix-in %s has negative ratio", p.ID, pi.Name))
			}
			if pi.IngredientID != "" && !ingredients[pi.IngredientID] {
				errs = append(errs, fmt.Errorf("product %s: mix-in ingredient %s does not exist", p.ID, pi.IngredientID))
			}
			if pi.LinkedFamilyID != "" && families[pi.LinkedFamilyID] == nil {
				errs = append(errs, fmt.Errorf("product %s: mix-in family %s does not exist", p.ID, pi.LinkedFamilyID))
			}
		}
	}

	for _, p := range c.Purchases {
		if !ingredients[p.IngredientID] {
			errs = append(errs, fmt.Errorf("purchase references unknown ingredient %s", p.IngredientID))
		}
		if p.PackageGrams <= 0 {
			errs = append(errs, fmt.Errorf("purchase for %s: package weight must be positive", p.IngredientID))
		}
	}

	return errs
}

func validateVersion(
	node recipe.VersionNode,
	ingredients map[recipe.IngredientID]bool,
	families map[recipe.FamilyID]*familyDef,
) []error {
	var errs []error
	for _, comp := range node.Components {
		if comp.LossRatio < 0 || comp.LossRatio >= 1 {
			errs = append(errs, fmt.Errorf("version %s: component %s: loss_ratio %v outside [0,1)", node.ID, comp.Name, comp.LossRatio))
		}
		if comp.DivisionLoss < 0 {
			errs = append(errs, fmt.Errorf("version %s: component %s: negative division_loss", node.ID, comp.Name))
		}
		for _, line := range comp.Ingredients {
			if line.Ratio < 0 {
				errs = append(errs, fmt.Errorf("version %s: line %s: negative ratio", node.ID, line.Name))
			}
			if line.IngredientID != "" && !ingredients[line.IngredientID] {
				errs = append(errs, fmt.Errorf("version %s: line %s: ingredient %s does not exist", node.ID, line.Name, line.IngredientID))
			}
			if line.LinkedFamilyID == "" {
				continue
			}
			linked, ok := families[line.LinkedFamilyID]
			if !ok {
				errs = append(errs, fmt.Errorf("version %s: line %s: family %s does not exist", node.ID, line.Name, line.LinkedFamilyID))
				continue
			}
			if linked.Family.Kind == recipe.KindPreDough {
				if line.FlourRatio <= 0 || line.FlourRatio > 1 {
					errs = append(errs, fmt.Errorf("version %s: line %s: flour_ratio %v outside (0,1]", node.ID, line.Name, line.FlourRatio))
				}
			} else if line.Ratio <= 0 {
				errs = append(errs, fmt.Errorf("version %s: line %s: linked extra needs a positive ratio", node.ID, line.Name))
			}
		}
	}
	return errs
}

// checkFamilyCycles walks the family link graph depth first. Authored
// recipes must form a DAG; a cycle here would resolve forever at runtime.
func checkFamilyCycles(families map[recipe.FamilyID]*familyDef) []error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[recipe.FamilyID]int, len(families))
	var errs []error

	var visit func(id recipe.FamilyID, path []recipe.FamilyID)
	visit = func(id recipe.FamilyID, path []recipe.FamilyID) {
		switch state[id] {
		case done:
			return
		case visiting:
			errs = append(errs, fmt.Errorf("recipe cycle: %v -> %s", path, id))
			return
		}
		state[id] = visiting
		def := families[id]
		if def != nil {
			for _, comp := range def.Version.Components {
				for _, line := range comp.Ingredients {
					if line.LinkedFamilyID == "" {
						continue
					}
					if _, ok := families[line.LinkedFamilyID]; !ok {
						continue
					}
					visit(line.LinkedFamilyID, append(path, id))
				}
			}
		}
		state[id] = done
	}

	for id := range families {
		visit(id, nil)
	}
	return errs
}
