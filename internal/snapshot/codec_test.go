package snapshot

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenledger/ovenledger/internal/engine"
	"github.com/ovenledger/ovenledger/internal/recipe"
	"github.com/ovenledger/ovenledger/internal/testutil"
)

func fixtureSnapshot(t *testing.T) *recipe.Snapshot {
	t.Helper()
	snap := &recipe.Snapshot{
		SchemaVersion: recipe.SnapshotSchemaVersion,
		ID:            "snap-1",
		TaskID:        "task-1",
		CreatedAt:     time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
		Roots:         []recipe.VersionID{"white-v1"},
		Trees: map[recipe.VersionID]*recipe.ResolvedNode{
			"white-v1": testutil.Node("white-v1", recipe.KindMain, 0.05,
				testutil.Leaf("Flour", "ing-flour", 100),
				testutil.Leaf("Water", "ing-water", 60),
			),
		},
		Products: []recipe.SnapshotProduct{{
			ProductID:       "prod-1",
			Name:            "White Loaf",
			VersionID:       "white-v1",
			BaseDoughWeight: 750,
		}},
	}
	hash, err := recipe.SnapshotHash(snap)
	require.NoError(t, err)
	snap.Hash = hash
	return snap
}

func TestCodec_RoundTrip(t *testing.T) {
	snap := fixtureSnapshot(t)

	data, err := Encode(snap)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestEncode_RefusesUnhashedSnapshot(t *testing.T) {
	snap := fixtureSnapshot(t)
	snap.Hash = ""

	_, err := Encode(snap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing content hash")
}

func TestEncode_RefusesMissingSchemaVersion(t *testing.T) {
	snap := fixtureSnapshot(t)
	snap.SchemaVersion = ""

	_, err := Encode(snap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing schema version")
}

func TestDecode_UnknownSchemaVersion(t *testing.T) {
	_, err := Decode([]byte(`{"schema_version":"999"}`))
	require.Error(t, err)

	var ee *engine.Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, engine.ErrCodeSnapshotVersion, ee.Code)
}

func TestDecode_DetectsTampering(t *testing.T) {
	data, err := Encode(fixtureSnapshot(t))
	require.NoError(t, err)

	tampered := bytes.Replace(data, []byte("White Loaf"), []byte("Rye Loaf"), 1)
	require.NotEqual(t, data, tampered)

	_, err = Decode(tampered)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content hash mismatch")
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode([]byte("not json"))
	require.Error(t, err)
}
