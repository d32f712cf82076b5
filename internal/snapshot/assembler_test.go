package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenledger/ovenledger/internal/engine"
	"github.com/ovenledger/ovenledger/internal/recipe"
	"github.com/ovenledger/ovenledger/internal/testutil"
)

func TestAssembler_Trees_StitchesNestedLinks(t *testing.T) {
	source := testutil.NewVersionSource(
		testutil.ShallowNode("bread-v1", "fam-bread", recipe.KindMain, 0.05,
			testutil.ShallowLeaf("Flour", "ing-flour", 70),
			testutil.ShallowLink("Poolish", "fam-poolish", "poolish-v1", recipe.KindPreDough, 30, 0.3),
		),
		testutil.ShallowNode("poolish-v1", "fam-poolish", recipe.KindPreDough, 0,
			testutil.ShallowLeaf("Flour", "ing-flour", 100),
			testutil.ShallowLeaf("Water", "ing-water", 100),
		),
	)
	a := NewAssembler(source)

	trees, roots, err := a.Trees(context.Background(), "t1", []recipe.VersionID{"bread-v1"})
	require.NoError(t, err)
	require.Equal(t, []recipe.VersionID{"bread-v1"}, roots)

	tree := trees["bread-v1"]
	require.NotNil(t, tree)
	require.Len(t, tree.Components, 1)
	require.Len(t, tree.Components[0].Ingredients, 2)

	link := tree.Components[0].Ingredients[1]
	require.True(t, link.IsLink())
	assert.Equal(t, recipe.VersionID("poolish-v1"), link.Sub.VersionID)
	assert.Equal(t, recipe.KindPreDough, link.Sub.Kind)
	assert.Len(t, link.Sub.Components[0].Ingredients, 2)
}

func TestAssembler_Trees_OneFetchPerDepthLevel(t *testing.T) {
	// Three levels; the two mid-level versions share the bottom one.
	source := testutil.NewVersionSource(
		testutil.ShallowNode("top", "fam-top", recipe.KindMain, 0,
			testutil.ShallowLink("A", "fam-a", "mid-a", recipe.KindExtra, 10, 0),
			testutil.ShallowLink("B", "fam-b", "mid-b", recipe.KindExtra, 10, 0),
		),
		testutil.ShallowNode("mid-a", "fam-a", recipe.KindExtra, 0,
			testutil.ShallowLink("Shared", "fam-s", "bottom", recipe.KindExtra, 10, 0),
		),
		testutil.ShallowNode("mid-b", "fam-b", recipe.KindExtra, 0,
			testutil.ShallowLink("Shared", "fam-s", "bottom", recipe.KindExtra, 10, 0),
		),
		testutil.ShallowNode("bottom", "fam-s", recipe.KindExtra, 0,
			testutil.ShallowLeaf("Sugar", "ing-sugar", 100),
		),
	)
	a := NewAssembler(source)

	trees, _, err := a.Trees(context.Background(), "t1", []recipe.VersionID{"top"})
	require.NoError(t, err)

	// One bulk fetch per level, and the shared bottom version requested
	// exactly once despite two parents.
	require.Equal(t, 3, source.FetchCount())
	assert.Equal(t, []recipe.VersionID{"top"}, source.Fetches[0])
	assert.ElementsMatch(t, []recipe.VersionID{"mid-a", "mid-b"}, source.Fetches[1])
	assert.Equal(t, []recipe.VersionID{"bottom"}, source.Fetches[2])

	// Memoized stitching: both parents hold the same resolved subtree.
	top := trees["top"]
	subA := top.Components[0].Ingredients[0].Sub
	subB := top.Components[0].Ingredients[1].Sub
	require.NotNil(t, subA)
	require.NotNil(t, subB)
	assert.Same(t, subA.Components[0].Ingredients[0].Sub, subB.Components[0].Ingredients[0].Sub)
}

func TestAssembler_Trees_MissingRootIsNotFound(t *testing.T) {
	a := NewAssembler(testutil.NewVersionSource())

	_, _, err := a.Trees(context.Background(), "t1", []recipe.VersionID{"gone-v1"})
	require.Error(t, err)
	assert.True(t, engine.IsNotFound(err))
}

func TestAssembler_Trees_MissingNestedBecomesDanglingLink(t *testing.T) {
	source := testutil.NewVersionSource(
		testutil.ShallowNode("bread-v1", "fam-bread", recipe.KindMain, 0,
			testutil.ShallowLeaf("Flour", "ing-flour", 100),
			testutil.ShallowLink("Gone", "fam-gone", "gone-v1", recipe.KindExtra, 10, 0),
		),
	)
	a := NewAssembler(source)

	trees, _, err := a.Trees(context.Background(), "t1", []recipe.VersionID{"bread-v1"})
	require.NoError(t, err)

	link := trees["bread-v1"].Components[0].Ingredients[1]
	assert.Nil(t, link.Sub)
	assert.False(t, link.IsLink())

	// The dangling link contributes zero weight downstream.
	w, err := engine.NewResolver().FlattenInput(trees["bread-v1"], 1100)
	require.NoError(t, err)
	assert.InDelta(t, 1000, w.Total(), 0.01)
}

func TestAssembler_Trees_CycleIsHardError(t *testing.T) {
	source := testutil.NewVersionSource(
		testutil.ShallowNode("a-v1", "fam-a", recipe.KindMain, 0,
			testutil.ShallowLink("B", "fam-b", "b-v1", recipe.KindExtra, 10, 0),
		),
		testutil.ShallowNode("b-v1", "fam-b", recipe.KindExtra, 0,
			testutil.ShallowLink("A", "fam-a", "a-v1", recipe.KindExtra, 10, 0),
		),
	)
	a := NewAssembler(source)

	_, _, err := a.Trees(context.Background(), "t1", []recipe.VersionID{"a-v1"})
	require.Error(t, err)

	var ee *engine.Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, engine.ErrCodeCycleDetected, ee.Code)
	assert.Equal(t, []recipe.VersionID{"a-v1", "b-v1", "a-v1"}, ee.Path)
}

func TestAssembler_Trees_DeduplicatesRoots(t *testing.T) {
	source := testutil.NewVersionSource(
		testutil.ShallowNode("v1", "fam-1", recipe.KindMain, 0,
			testutil.ShallowLeaf("Flour", "ing-flour", 100),
		),
	)
	a := NewAssembler(source)

	trees, roots, err := a.Trees(context.Background(), "t1", []recipe.VersionID{"v1", "", "v1"})
	require.NoError(t, err)
	assert.Equal(t, []recipe.VersionID{"v1"}, roots)
	assert.Len(t, trees, 1)
	require.Equal(t, 1, source.FetchCount())
	assert.Equal(t, []recipe.VersionID{"v1"}, source.Fetches[0])
}

func TestAssembler_Assemble_ProducesHashedSnapshot(t *testing.T) {
	source := testutil.NewVersionSource(
		testutil.ShallowNode("white-v1", "fam-white", recipe.KindMain, 0,
			testutil.ShallowLeaf("Flour", "ing-flour", 100),
			testutil.ShallowLeaf("Water", "ing-water", 60),
		),
	)
	a := NewAssembler(source)
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	products := []recipe.SnapshotProduct{{
		ProductID:       "prod-1",
		Name:            "White Loaf",
		VersionID:       "white-v1",
		BaseDoughWeight: 750,
	}}

	snap, err := a.Assemble(context.Background(), "t1", "task-1", []recipe.VersionID{"white-v1"}, products, now)
	require.NoError(t, err)

	assert.Equal(t, recipe.SnapshotSchemaVersion, snap.SchemaVersion)
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, recipe.TaskID("task-1"), snap.TaskID)
	assert.Equal(t, now, snap.CreatedAt)
	assert.NotEmpty(t, snap.Hash)
	require.NoError(t, recipe.VerifySnapshotHash(snap))

	require.NotNil(t, snap.Tree("white-v1"))
	require.NotNil(t, snap.Product("prod-1"))
	assert.InDelta(t, 750.0, snap.Product("prod-1").BaseDoughWeight, 1e-9)
}
