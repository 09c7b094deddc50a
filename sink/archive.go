package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/pevans/historybrief/logger"
	"github.com/pevans/historybrief/record"
)

// DefaultArchiveDir is where archived runs are written unless configured.
const DefaultArchiveDir = "data/runs"

// runFile holds a run's metadata inside its directory.
const runFile = "run.json"

// ErrRunNotFound is returned when a run directory does not exist.
var ErrRunNotFound = errors.New("run not found")

// Run describes one archived run.
type Run struct {
	ID        uuid.UUID `json:"id"`
	StartedAt time.Time `json:"started_at"`
	ItemCount int       `json:"item_count"`
}

// ArchivedRecord is a record as written to the archive.
type ArchivedRecord struct {
	ID          uuid.UUID `json:"id"`
	RunID       uuid.UUID `json:"run_id"`
	Seq         int       `json:"seq"`
	Fingerprint string    `json:"fingerprint"`
	ArchivedAt  time.Time `json:"archived_at"`
	record.Record
}

// ReadError describes a failure to read a single archived file.
type ReadError struct {
	Filename string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}

// ListResult contains the records of a run and any per-file errors. A
// corrupted file never fails the whole listing.
type ListResult struct {
	Items  []ArchivedRecord
	Errors []ReadError
}

// Archive is a directory of runs, one subdirectory per run holding one JSON
// file per record.
type Archive struct {
	dir string
}

// NewArchive opens the archive at dir, creating it if needed.
func NewArchive(dir string) (*Archive, error) {
	if dir == "" {
		dir = DefaultArchiveDir
	}

	// 0700: owner-only access
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	return &Archive{dir: dir}, nil
}

// Dir returns the archive root.
func (a *Archive) Dir() string {
	return a.dir
}

func (a *Archive) runDir(id uuid.UUID) string {
	return filepath.Join(a.dir, id.String())
}

// StartRun creates the directory and metadata of a new run.
func (a *Archive) StartRun(startedAt time.Time) (Run, error) {
	run := Run{ID: uuid.New(), StartedAt: startedAt.UTC()}

	if err := os.MkdirAll(a.runDir(run.ID), 0o700); err != nil {
		return Run{}, fmt.Errorf("failed to create run directory: %w", err)
	}
	if err := writeJSON(filepath.Join(a.runDir(run.ID), runFile), run); err != nil {
		return Run{}, fmt.Errorf("failed to write run metadata: %w", err)
	}
	return run, nil
}

// Add writes one record into a run. seq orders the records of a run.
func (a *Archive) Add(runID uuid.UUID, seq int, r record.Record, archivedAt time.Time) (ArchivedRecord, error) {
	dir := a.runDir(runID)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return ArchivedRecord{}, ErrRunNotFound
	}

	item := ArchivedRecord{
		ID:          uuid.New(),
		RunID:       runID,
		Seq:         seq,
		Fingerprint: r.Fingerprint(),
		ArchivedAt:  archivedAt.UTC(),
		Record:      r,
	}
	if err := writeJSON(filepath.Join(dir, item.ID.String()+".json"), item); err != nil {
		return ArchivedRecord{}, fmt.Errorf("failed to write archived record: %w", err)
	}
	return item, nil
}

// Runs lists archived runs, newest first.
func (a *Archive) Runs() ([]Run, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	runs := []Run{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := uuid.Parse(entry.Name())
		if err != nil {
			continue
		}
		run, err := a.Run(id)
		if err != nil {
			continue
		}
		runs = append(runs, run)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs, nil
}

// Run returns the metadata of one run, with its current item count.
func (a *Archive) Run(id uuid.UUID) (Run, error) {
	dir := a.runDir(id)
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to stat run: %w", err)
	}

	run := Run{ID: id, StartedAt: info.ModTime().UTC()}
	if data, err := os.ReadFile(filepath.Join(dir, runFile)); err == nil {
		var meta Run
		if json.Unmarshal(data, &meta) == nil && !meta.StartedAt.IsZero() {
			run.StartedAt = meta.StartedAt
		}
	}

	files, err := itemFiles(dir)
	if err != nil {
		return Run{}, err
	}
	run.ItemCount = len(files)
	return run, nil
}

// Items returns the records of a run in publish order.
func (a *Archive) Items(id uuid.UUID) (*ListResult, error) {
	dir := a.runDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, ErrRunNotFound
	}

	files, err := itemFiles(dir)
	if err != nil {
		return nil, err
	}

	result := &ListResult{Items: []ArchivedRecord{}}
	for _, name := range files {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			result.Errors = append(result.Errors, ReadError{Filename: name, Err: err})
			continue
		}

		var item ArchivedRecord
		if err := json.Unmarshal(data, &item); err != nil {
			result.Errors = append(result.Errors, ReadError{Filename: name, Err: err})
			continue
		}
		result.Items = append(result.Items, item)
	}

	sort.SliceStable(result.Items, func(i, j int) bool {
		return result.Items[i].Seq < result.Items[j].Seq
	})
	return result, nil
}

func itemFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read run directory: %w", err)
	}

	files := []string{}
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == runFile || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		files = append(files, entry.Name())
	}
	return files, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	// 0600: owner-only read/write
	return os.WriteFile(path, data, 0o600)
}

// ArchiveSink writes each run into its own archive directory.
type ArchiveSink struct {
	archive *Archive
	log     logger.Logger
	now     func() time.Time
}

// NewArchiveSink creates a sink over archive.
func NewArchiveSink(archive *Archive, log logger.Logger) *ArchiveSink {
	return &ArchiveSink{archive: archive, log: log, now: time.Now}
}

// Prepare starts a new run; the destination ID is the run UUID.
func (s *ArchiveSink) Prepare(ctx context.Context) (Destination, error) {
	run, err := s.archive.StartRun(s.now())
	if err != nil {
		return Destination{}, err
	}
	return Destination{ID: run.ID.String(), Name: s.archive.runDir(run.ID)}, nil
}

// Publish writes every record of the run.
func (s *ArchiveSink) Publish(ctx context.Context, dest Destination, records []record.Record) Result {
	var res Result

	runID, err := uuid.Parse(dest.ID)
	if err != nil {
		s.log.Error("Invalid archive destination", logger.String("destination", dest.ID), logger.Error(err))
		res.ErrorCount = len(records)
		return res
	}

	for i, r := range records {
		if _, err := s.archive.Add(runID, i, r, s.now()); err != nil {
			res.ErrorCount++
			s.log.Warn("Failed to archive record", logger.String("title", r.Title), logger.Error(err))
			continue
		}
		res.SuccessCount++
	}

	s.log.Info("Archived run",
		logger.String("run_id", dest.ID),
		logger.Int("success", res.SuccessCount),
		logger.Int("errors", res.ErrorCount),
	)
	return res
}
