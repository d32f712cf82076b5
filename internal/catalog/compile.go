package catalog

import (
	"fmt"
	"time"

	"cuelang.org/go/cue"
	"github.com/shopspring/decimal"

	"github.com/ovenledger/ovenledger/internal/recipe"
)

const dateLayout = "2006-01-02"

func (c *Catalog) compileIngredients(v cue.Value, tenant string) []error {
	return eachField(v, "ingredient", func(label string, member cue.Value) error {
		ing := recipe.Ingredient{
			ID:         recipe.IngredientID(label),
			Tenant:     tenant,
			Class:      recipe.ClassStandard,
			StockValue: decimal.Zero,
		}
		var err error
		if ing.Name, err = requiredString(member, "name"); err != nil {
			return err
		}
		if ing.IsFlour, err = optionalBool(member, "flour"); err != nil {
			return err
		}
		if ing.WaterContent, err = optionalFloat(member, "water_content"); err != nil {
			return err
		}
		if ing.StockGrams, err = optionalFloat(member, "stock_g"); err != nil {
			return err
		}
		if ing.StockValue, err = optionalDecimal(member, "stock_value"); err != nil {
			return err
		}
		if class, err := optionalString(member, "class"); err != nil {
			return err
		} else if class != "" {
			ing.Class = recipe.InventoryClass(class)
		}
		c.Ingredients = append(c.Ingredients, ing)
		return nil
	})
}

func (c *Catalog) compileFamilies(v cue.Value, tenant string) []error {
	return eachField(v, "family", func(label string, member cue.Value) error {
		def := familyDef{
			Family: recipe.Family{
				ID:     recipe.FamilyID(label),
				Tenant: tenant,
			},
		}
		f := &def.Family
		var err error
		if f.Name, err = requiredString(member, "name"); err != nil {
			return err
		}
		if cat, err := requiredString(member, "category"); err != nil {
			return err
		} else {
			f.Category = recipe.RecipeCategory(cat)
		}
		if kind, err := requiredString(member, "kind"); err != nil {
			return err
		} else {
			f.Kind = recipe.RecipeKind(kind)
		}
		if out, err := optionalString(member, "output_ingredient"); err != nil {
			return err
		} else {
			f.OutputIngredientID = recipe.IngredientID(out)
		}
		if f.Discontinued, err = optionalBool(member, "discontinued"); err != nil {
			return err
		}

		versionVal := member.LookupPath(cue.ParsePath("version"))
		if !versionVal.Exists() {
			return &CompileError{
				Field:   "version",
				Message: fmt.Sprintf("family %s has no version", label),
				Pos:     member.Pos(),
			}
		}
		node, err := compileVersion(versionVal, f.ID)
		if err != nil {
			return err
		}
		def.Version = *node
		f.ActiveVersionID = node.ID

		c.Families = append(c.Families, def)
		return nil
	})
}

func compileVersion(v cue.Value, familyID recipe.FamilyID) (*recipe.VersionNode, error) {
	node := &recipe.VersionNode{FamilyID: familyID}
	id, err := optionalString(v, "id")
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = string(familyID) + "-v1"
	}
	node.ID = recipe.VersionID(id)

	compIter, err := v.LookupPath(cue.ParsePath("component")).List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	pos := 0
	for compIter.Next() {
		comp, err := compileComponent(compIter.Value(), node.ID, pos)
		if err != nil {
			return nil, err
		}
		node.Components = append(node.Components, *comp)
		pos++
	}
	if len(node.Components) == 0 {
		return nil, &CompileError{
			Field:   "component",
			Message: fmt.Sprintf("version %s has no components", node.ID),
			Pos:     v.Pos(),
		}
	}
	return node, nil
}

func compileComponent(v cue.Value, versionID recipe.VersionID, pos int) (*recipe.Component, error) {
	comp := &recipe.Component{
		ID: recipe.ComponentID(fmt.Sprintf("%s/%d", versionID, pos)),
	}
	var err error
	if comp.Name, err = requiredString(v, "name"); err != nil {
		return nil, err
	}
	if comp.LossRatio, err = optionalFloat(v, "loss_ratio"); err != nil {
		return nil, err
	}
	if comp.DivisionLoss, err = optionalFloat(v, "division_loss"); err != nil {
		return nil, err
	}

	lineIter, err := v.LookupPath(cue.ParsePath("line")).List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for lineIter.Next() {
		line, err := compileLine(lineIter.Value())
		if err != nil {
			return nil, err
		}
		comp.Ingredients = append(comp.Ingredients, *line)
	}
	if len(comp.Ingredients) == 0 {
		return nil, &CompileError{
			Field:   "line",
			Message: fmt.Sprintf("component %s has no lines", comp.Name),
			Pos:     v.Pos(),
		}
	}
	return comp, nil
}

func compileLine(v cue.Value) (*recipe.ComponentIngredient, error) {
	line := &recipe.ComponentIngredient{}
	var err error
	if line.Name, err = requiredString(v, "name"); err != nil {
		return nil, err
	}
	ing, err := optionalString(v, "ingredient")
	if err != nil {
		return nil, err
	}
	fam, err := optionalString(v, "family")
	if err != nil {
		return nil, err
	}
	if (ing == "") == (fam == "") {
		return nil, &CompileError{
			Field:   "line",
			Message: fmt.Sprintf("line %s must reference exactly one of ingredient or family", line.Name),
			Pos:     v.Pos(),
		}
	}
	line.IngredientID = recipe.IngredientID(ing)
	line.LinkedFamilyID = recipe.FamilyID(fam)
	if line.Ratio, err = optionalFloat(v, "ratio"); err != nil {
		return nil, err
	}
	if line.FlourRatio, err = optionalFloat(v, "flour_ratio"); err != nil {
		return nil, err
	}
	return line, nil
}

func (c *Catalog) compileProducts(v cue.Value, tenant string) []error {
	return eachField(v, "product", func(label string, member cue.Value) error {
		p := recipe.Product{
			ID:     recipe.ProductID(label),
			Tenant: tenant,
		}
		var err error
		if p.Name, err = requiredString(member, "name"); err != nil {
			return err
		}
		if fam, err := requiredString(member, "family"); err != nil {
			return err
		} else {
			p.FamilyID = recipe.FamilyID(fam)
		}
		if p.BaseDoughWeight, err = requiredFloat(member, "base_dough_weight_g"); err != nil {
			return err
		}
		if cat, err := optionalString(member, "category"); err != nil {
			return err
		} else if cat != "" {
			p.Category = recipe.RecipeCategory(cat)
		}

		mixVal := member.LookupPath(cue.ParsePath("mix_in"))
		if mixVal.Exists() {
			iter, err := mixVal.List()
			if err != nil {
				return formatCUEError(err)
			}
			for iter.Next() {
				pi, err := compileMixIn(iter.Value())
				if err != nil {
					return err
				}
				p.Ingredients = append(p.Ingredients, *pi)
			}
		}
		c.Products = append(c.Products, p)
		return nil
	})
}

func compileMixIn(v cue.Value) (*recipe.ProductIngredient, error) {
	pi := &recipe.ProductIngredient{}
	var err error
	if pi.Name, err = requiredString(v, "name"); err != nil {
		return nil, err
	}
	ing, err := optionalString(v, "ingredient")
	if err != nil {
		return nil, err
	}
	fam, err := optionalString(v, "family")
	if err != nil {
		return nil, err
	}
	if (ing == "") == (fam == "") {
		return nil, &CompileError{
			Field:   "mix_in",
			Message: fmt.Sprintf("mix-in %s must reference exactly one of ingredient or family", pi.Name),
			Pos:     v.Pos(),
		}
	}
	pi.IngredientID = recipe.IngredientID(ing)
	pi.LinkedFamilyID = recipe.FamilyID(fam)
	if pi.Ratio, err = requiredFloat(v, "ratio"); err != nil {
		return nil, err
	}
	return pi, nil
}

func (c *Catalog) compilePurchases(v cue.Value) []error {
	root := v.LookupPath(cue.ParsePath("purchase"))
	if !root.Exists() {
		return nil
	}
	iter, err := root.List()
	if err != nil {
		return []error{formatCUEError(err)}
	}
	var errs []error
	for iter.Next() {
		member := iter.Value()
		var p recipe.PurchaseRecord
		ing, err := requiredString(member, "ingredient")
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p.IngredientID = recipe.IngredientID(ing)
		if p.Price, err = requiredDecimal(member, "price"); err != nil {
			errs = append(errs, err)
			continue
		}
		if p.PackageGrams, err = requiredFloat(member, "package_g"); err != nil {
			errs = append(errs, err)
			continue
		}
		dateStr, err := requiredString(member, "date")
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if p.PurchasedAt, err = time.Parse(dateLayout, dateStr); err != nil {
			errs = append(errs, &CompileError{
				Field:   "date",
				Message: fmt.Sprintf("purchase date %q: want YYYY-MM-DD", dateStr),
				Pos:     member.Pos(),
			})
			continue
		}
		c.Purchases = append(c.Purchases, p)
	}
	return errs
}

// Field accessors. CUE distinguishes absent from invalid; absent optional
// fields fall back to zero values, invalid ones are compile errors.

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func requiredFloat(v cue.Value, field string) (float64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	f, err := fv.Float64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return f, nil
}

func optionalFloat(v cue.Value, field string) (float64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, nil
	}
	f, err := fv.Float64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return f, nil
}

func requiredDecimal(v cue.Value, field string) (decimal.Decimal, error) {
	s, err := requiredString(v, field)
	if err != nil {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s %q is not a decimal amount", field, s),
			Pos:     v.Pos(),
		}
	}
	return d, nil
}

func optionalDecimal(v cue.Value, field string) (decimal.Decimal, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return decimal.Zero, nil
	}
	return requiredDecimal(v, field)
}
