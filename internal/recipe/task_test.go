package recipe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTaskStatus_CanTransition(t *testing.T) {
	cases := []struct {
		from, to TaskStatus
		ok       bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusInProgress, StatusPending, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusCompleted, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.ok, tc.from.CanTransition(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTaskStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestProductionTask_ActiveOn(t *testing.T) {
	day := func(s string) time.Time {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			t.Fatal(err)
		}
		return d
	}
	task := &ProductionTask{
		StartDate: day("2026-08-10"),
		EndDate:   day("2026-08-12"),
	}

	assert.False(t, task.ActiveOn(day("2026-08-09")))
	assert.True(t, task.ActiveOn(day("2026-08-10")))
	assert.True(t, task.ActiveOn(day("2026-08-11")))
	assert.True(t, task.ActiveOn(day("2026-08-12")))
	assert.False(t, task.ActiveOn(day("2026-08-13")))

	// Time-of-day is ignored; the window is date precision.
	assert.True(t, task.ActiveOn(day("2026-08-12").Add(23*time.Hour)))
}
