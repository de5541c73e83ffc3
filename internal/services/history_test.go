package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-schema-sync/internal/models"
)

func TestHistory(t *testing.T) {
	h := NewHistory(3)
	assert.Nil(t, h.Last())
	assert.Empty(t, h.List())

	for i := 1; i <= 5; i++ {
		h.Record(&models.SyncOutcome{RunID: fmt.Sprintf("run-%d", i)})
	}

	runs := h.List()
	require.Len(t, runs, 3)
	assert.Equal(t, "run-5", runs[0].RunID)
	assert.Equal(t, "run-3", runs[2].RunID)

	_, ok := h.Get("run-1")
	assert.False(t, ok, "oldest runs are evicted")

	run, ok := h.Get("run-4")
	require.True(t, ok)
	assert.Equal(t, "run-4", run.RunID)

	assert.Equal(t, "run-5", h.Last().RunID)
}

func TestNewHistory_DefaultSize(t *testing.T) {
	h := NewHistory(0)
	for i := 0; i < defaultHistorySize+5; i++ {
		h.Record(&models.SyncOutcome{})
	}
	assert.Len(t, h.List(), defaultHistorySize)
}
