// Package catalog loads authored recipe definitions from CUE files and
// seeds the store with them. Definitions are grouped under four top-level
// structs: ingredient, family, product and purchase.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/ovenledger/ovenledger/internal/recipe"
)

// Catalog is the compiled content of one definitions directory.
type Catalog struct {
	Ingredients []recipe.Ingredient
	Families    []familyDef
	Products    []recipe.Product
	Purchases   []recipe.PurchaseRecord

	FileCount int
}

// familyDef pairs a family with its single authored version.
type familyDef struct {
	Family  recipe.Family
	Version recipe.VersionNode
}

// Load compiles all CUE files under dir into a Catalog and validates it.
// All compile and validation errors are collected before returning so one
// run reports every defect in the authored files.
func Load(dir, tenant string) (*Catalog, []error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("definitions directory %s: %w", dir, err)}
	}
	if !info.IsDir() {
		return nil, []error{fmt.Errorf("definitions path %s is not a directory", dir)}
	}
	files, err := findCUEFiles(dir)
	if err != nil {
		return nil, []error{fmt.Errorf("scanning %s: %w", dir, err)}
	}
	if len(files) == 0 {
		return nil, []error{fmt.Errorf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{fmt.Errorf("no CUE instances loaded from %s", dir)}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{formatCUEError(inst.Err)}
	}
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}

	c := &Catalog{FileCount: len(files)}
	var errs []error

	errs = append(errs, c.compileIngredients(value, tenant)...)
	errs = append(errs, c.compileFamilies(value, tenant)...)
	errs = append(errs, c.compileProducts(value, tenant)...)
	errs = append(errs, c.compilePurchases(value)...)

	if len(errs) == 0 {
		errs = append(errs, c.validate()...)
	}
	if len(errs) > 0 {
		return c, errs
	}
	return c, nil
}

// eachField iterates a top-level struct of the definitions document,
// calling fn with each member's label and value. A missing struct is fine.
func eachField(v cue.Value, path string, fn func(label string, member cue.Value) error) []error {
	root := v.LookupPath(cue.ParsePath(path))
	if !root.Exists() {
		return nil
	}
	iter, err := root.Fields()
	if err != nil {
		return []error{formatCUEError(err)}
	}
	var errs []error
	for iter.Next() {
		if err := fn(iter.Label(), iter.Value()); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
