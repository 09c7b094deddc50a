package sink

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pevans/historybrief/logger"
)

func createTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := NewArchive(filepath.Join(t.TempDir(), "runs"))
	require.NoError(t, err)
	return a
}

// TestArchiveSink_PublishesRun verifies a run directory holds one file per
// record and lists them in publish order.
func TestArchiveSink_PublishesRun(t *testing.T) {
	archive := createTestArchive(t)
	s := NewArchiveSink(archive, logger.NewNop())

	dest, err := s.Prepare(context.Background())
	require.NoError(t, err)
	runID, err := uuid.Parse(dest.ID)
	require.NoError(t, err)

	res := s.Publish(context.Background(), dest, testRecords("a", "b", "c"))
	assert.Equal(t, Result{SuccessCount: 3}, res)

	items, err := archive.Items(runID)
	require.NoError(t, err)
	require.Len(t, items.Items, 3)
	assert.Empty(t, items.Errors)
	assert.Equal(t, "a", items.Items[0].Title)
	assert.Equal(t, "c", items.Items[2].Title)
	assert.Equal(t, runID, items.Items[0].RunID)
	assert.Equal(t, testRecords("a")[0].Fingerprint(), items.Items[0].Fingerprint)

	run, err := archive.Run(runID)
	require.NoError(t, err)
	assert.Equal(t, 3, run.ItemCount)
}

// TestArchive_RunsNewestFirst verifies run ordering.
func TestArchive_RunsNewestFirst(t *testing.T) {
	archive := createTestArchive(t)

	older, err := archive.StartRun(time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	newer, err := archive.StartRun(time.Date(2024, 6, 2, 7, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// Stray entries are ignored.
	require.NoError(t, os.MkdirAll(filepath.Join(archive.Dir(), "not-a-run"), 0o700))

	runs, err := archive.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, older.ID, runs[1].ID)
}

// TestArchive_UnknownRun verifies ErrRunNotFound.
func TestArchive_UnknownRun(t *testing.T) {
	archive := createTestArchive(t)

	_, err := archive.Items(uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = archive.Run(uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)

	_, err = archive.Add(uuid.New(), 0, testRecords("a")[0], time.Now())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

// TestArchive_CorruptedFile verifies a bad file is reported, not fatal.
func TestArchive_CorruptedFile(t *testing.T) {
	archive := createTestArchive(t)
	run, err := archive.StartRun(time.Now())
	require.NoError(t, err)

	_, err = archive.Add(run.ID, 0, testRecords("a")[0], time.Now())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(archive.Dir(), run.ID.String(), "broken.json"), []byte("{"), 0o600))

	items, err := archive.Items(run.ID)
	require.NoError(t, err)
	assert.Len(t, items.Items, 1)
	require.Len(t, items.Errors, 1)
	assert.Equal(t, "broken.json", items.Errors[0].Filename)
}

// TestArchiveSink_InvalidDestination verifies every record counts as failed.
func TestArchiveSink_InvalidDestination(t *testing.T) {
	s := NewArchiveSink(createTestArchive(t), logger.NewNop())
	res := s.Publish(context.Background(), Destination{ID: "nope"}, testRecords("a", "b"))
	assert.Equal(t, Result{ErrorCount: 2}, res)
}

// TestWriterSink verifies one entry per record is printed.
func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)

	dest, err := s.Prepare(context.Background())
	require.NoError(t, err)

	records := testRecords("a", "b")
	records[1].Date = nil
	res := s.Publish(context.Background(), dest, records)
	assert.Equal(t, Result{SuccessCount: 2}, res)
	assert.Contains(t, buf.String(), "2024-06-01  PUF")
	assert.Contains(t, buf.String(), "https://example.com/b")
	assert.Contains(t, buf.String(), "----------")
}

// TestResult_Add verifies counts merge.
func TestResult_Add(t *testing.T) {
	r := Result{SuccessCount: 1}
	r.Add(Result{SuccessCount: 2, ErrorCount: 1})
	assert.Equal(t, Result{SuccessCount: 3, ErrorCount: 1}, r)
}
