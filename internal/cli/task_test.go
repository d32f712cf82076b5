package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenledger/ovenledger/internal/production"
	"github.com/ovenledger/ovenledger/internal/recipe"
)

func TestParseTaskInput(t *testing.T) {
	in, err := parseTaskInput("2026-08-31", "2026-09-02", []string{
		"prod-white=10",
		"prod-rye=4",
	})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC), in.StartDate)
	assert.Equal(t, time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC), in.EndDate)
	require.Len(t, in.Items, 2)
	assert.Equal(t, production.TaskItemInput{ProductID: "prod-white", Quantity: 10}, in.Items[0])
	assert.Equal(t, production.TaskItemInput{ProductID: "prod-rye", Quantity: 4}, in.Items[1])
}

func TestParseTaskInput_Rejections(t *testing.T) {
	cases := []struct {
		name  string
		start string
		end   string
		items []string
		want  string
	}{
		{"bad start", "31.08.2026", "2026-09-02", nil, "--start"},
		{"missing end", "2026-08-31", "", nil, "--end"},
		{"item without quantity", "2026-08-31", "2026-09-02", []string{"prod-white"}, "--item"},
		{"item with bad quantity", "2026-08-31", "2026-09-02", []string{"prod-white=ten"}, "quantity"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseTaskInput(tc.start, tc.end, tc.items)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParseOutcomes(t *testing.T) {
	got, err := parseOutcomes([]string{"prod-white=8:1", "prod-rye=4"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, production.ItemOutcome{ProductID: "prod-white", Completed: 8, Spoiled: 1}, got[0])
	assert.Equal(t, production.ItemOutcome{ProductID: "prod-rye", Completed: 4}, got[1])
}

func TestParseOutcomes_Rejections(t *testing.T) {
	for _, bad := range []string{"prod-white", "prod-white=x", "prod-white=8:x"} {
		_, err := parseOutcomes([]string{bad})
		assert.Error(t, err, "input %q", bad)
	}
}

func TestWriteTask(t *testing.T) {
	var buf strings.Builder
	writeTask(&buf, &recipe.ProductionTask{
		ID:         "task-1",
		Status:     recipe.StatusCompleted,
		StartDate:  time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		SnapshotID: "snap-1",
		Items: []recipe.TaskItem{
			{ProductID: "prod-white", ProductName: "White Loaf", Quantity: 10, Completed: 8, Spoiled: 1},
		},
	})
	out := buf.String()
	assert.Contains(t, out, "task task-1")
	assert.Contains(t, out, "COMPLETED")
	assert.Contains(t, out, "2026-08-31 .. 2026-09-01")
	assert.Contains(t, out, "snapshot: snap-1")
	assert.Contains(t, out, "White Loaf")
	assert.Contains(t, out, "completed 8, spoiled 1")
}
