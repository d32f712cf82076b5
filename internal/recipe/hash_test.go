package recipe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hashFixture() *Snapshot {
	return &Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		ID:            "snap-1",
		TaskID:        "task-1",
		CreatedAt:     time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
		Roots:         []VersionID{"white-v1"},
		Trees: map[VersionID]*ResolvedNode{
			"white-v1": {
				VersionID:  "white-v1",
				FamilyID:   "fam-white",
				FamilyName: "White",
				Kind:       KindMain,
				Components: []ResolvedComponent{{
					ID:        "white-v1/0",
					Name:      "main",
					LossRatio: 0.05,
					Ingredients: []ResolvedIngredient{
						{Name: "Flour", IngredientID: "ing-flour", Ratio: 100},
						{Name: "Water", IngredientID: "ing-water", Ratio: 60},
					},
				}},
			},
		},
		Products: []SnapshotProduct{{
			ProductID:       "prod-1",
			Name:            "White Loaf",
			VersionID:       "white-v1",
			BaseDoughWeight: 750,
		}},
	}
}

func TestSnapshotHash_Deterministic(t *testing.T) {
	a, err := SnapshotHash(hashFixture())
	require.NoError(t, err)
	b, err := SnapshotHash(hashFixture())
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // hex SHA-256
}

func TestSnapshotHash_IgnoresStoredHash(t *testing.T) {
	s := hashFixture()
	a, err := SnapshotHash(s)
	require.NoError(t, err)

	s.Hash = a
	b, err := SnapshotHash(s)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSnapshotHash_SensitiveToContent(t *testing.T) {
	a, err := SnapshotHash(hashFixture())
	require.NoError(t, err)

	changed := hashFixture()
	changed.Trees["white-v1"].Components[0].Ingredients[1].Ratio = 61
	b, err := SnapshotHash(changed)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifySnapshotHash(t *testing.T) {
	s := hashFixture()
	hash, err := SnapshotHash(s)
	require.NoError(t, err)
	s.Hash = hash
	require.NoError(t, VerifySnapshotHash(s))

	s.Hash = "deadbeef"
	err = VerifySnapshotHash(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content hash mismatch")

	// Legacy records persisted without a hash pass verification.
	s.Hash = ""
	assert.NoError(t, VerifySnapshotHash(s))
}
