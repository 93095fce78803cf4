package iac

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openJournal(t *testing.T) *Journal {
	j, err := OpenJournal(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournalRuns(t *testing.T) {
	j := openJournal(t)

	id, err := j.StartRun("ABCD", "frame.raw", 10, 2048, "jpeg/q75")
	require.NoError(t, err)
	require.NoError(t, j.TileDelivered(id, 0, 1000, 1))
	require.NoError(t, j.TileDelivered(id, 1, 3000, 2))
	// Recording a tile twice replaces it
	require.NoError(t, j.TileDelivered(id, 1, 3000, 2))
	require.NoError(t, j.FinishRun(id, nil))

	runs, err := j.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	r := runs[0]
	assert.Equal(t, id, r.ID)
	assert.Equal(t, "ABCD", r.Image)
	assert.Equal(t, "frame.raw", r.Source)
	assert.Equal(t, 10, r.Divisions)
	assert.Equal(t, 2048, r.BlockSize)
	assert.Equal(t, "jpeg/q75", r.Encoding)
	assert.Equal(t, 2, r.Tiles)
	assert.False(t, r.Started.IsZero())
	assert.False(t, r.Finished.Before(r.Started))
	assert.True(t, r.Complete())
}

func TestJournalPending(t *testing.T) {
	j := openJournal(t)

	pending, err := j.Pending("ABCD", 10, 2048, "jpeg/q75")
	require.NoError(t, err)
	assert.Nil(t, pending)

	id, err := j.StartRun("ABCD", "frame.raw", 10, 2048, "jpeg/q75")
	require.NoError(t, err)
	require.NoError(t, j.TileDelivered(id, 0, 1000, 1))
	require.NoError(t, j.TileDelivered(id, 7, 1000, 1))

	// Still running counts as unfinished
	pending, err = j.Pending("ABCD", 10, 2048, "jpeg/q75")
	require.NoError(t, err)
	assert.Equal(t, map[byte]bool{0: true, 7: true}, pending)

	require.NoError(t, j.FinishRun(id, errors.New("transport failure")))

	pending, err = j.Pending("ABCD", 10, 2048, "jpeg/q75")
	require.NoError(t, err)
	assert.Equal(t, map[byte]bool{0: true, 7: true}, pending)

	// Different geometry never resumes
	pending, err = j.Pending("ABCD", 5, 2048, "jpeg/q75")
	require.NoError(t, err)
	assert.Nil(t, pending)

	// Nor does a different encoding
	pending, err = j.Pending("ABCD", 10, 2048, "png/c0")
	require.NoError(t, err)
	assert.Nil(t, pending)

	runs, err := j.Runs(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.False(t, runs[0].Complete())
	assert.Equal(t, "transport failure", runs[0].Error)

	id, err = j.StartRun("ABCD", "frame.raw", 10, 2048, "jpeg/q75")
	require.NoError(t, err)
	require.NoError(t, j.FinishRun(id, nil))

	pending, err = j.Pending("ABCD", 10, 2048, "jpeg/q75")
	require.NoError(t, err)
	assert.Nil(t, pending)
}

func TestJournalRunsLimit(t *testing.T) {
	j := openJournal(t)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := j.StartRun("ABCD", "frame.raw", 10, 2048, "jpeg/q75")
		require.NoError(t, err)
		ids = append(ids, id)
	}

	runs, err := j.Runs(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
	assert.Zero(t, runs[0].Tiles)
	assert.True(t, runs[0].Finished.IsZero())
}
