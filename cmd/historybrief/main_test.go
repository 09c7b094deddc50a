package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pevans/historybrief/config"
	"github.com/pevans/historybrief/sink"
	"github.com/pevans/historybrief/sources"
)

var envKeys = []string{
	"ENV_FILE",
	"HISTORYBRIEF_CONFIG",
	"NOTION_TOKEN",
	"NOTION_PARENT_PAGE_ID",
	"NOTION_DATABASE_NAME",
	"HISTORYBRIEF_SINK",
	"HISTORYBRIEF_SOURCES",
	"HISTORYBRIEF_ARCHIVE_DIR",
	"HISTORYBRIEF_SCHEDULE",
	"HISTORYBRIEF_LOG_LEVEL",
	"HISTORYBRIEF_LOG_JSON",
	"HISTORYBRIEF_USER_AGENT",
	"HISTORYBRIEF_API_ADDR",
	"HISTORYBRIEF_SEEN_BACKEND",
	"HISTORYBRIEF_SEEN_DSN",
	"HISTORYBRIEF_PARALLEL",
	"HISTORYBRIEF_FETCH_TIMEOUT",
	"REDIS_ADDR",
}

// testEnv isolates a command from the user's configuration and returns the
// seen file and archive directory it will use.
func testEnv(t *testing.T) (seenPath, archiveDir string) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	seenPath = filepath.Join(dir, "data", "seen.json")
	archiveDir = filepath.Join(dir, "data", "runs")
	t.Setenv("HISTORYBRIEF_SEEN_DSN", seenPath)
	t.Setenv("HISTORYBRIEF_ARCHIVE_DIR", archiveDir)
	t.Setenv("HISTORYBRIEF_LOG_LEVEL", "error")
	return seenPath, archiveDir
}

// feedServer serves an RSS feed of two recent episodes and counts requests.
func feedServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	recent := time.Now().AddDate(0, 0, -2).Format(time.RFC1123Z)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>Test</title>
<item><title>Les Capétiens</title><link>%[1]s/capetiens</link><description>Avec Jean Dupont</description><pubDate>%[2]s</pubDate></item>
<item><title>La Fronde</title><link>%[1]s/fronde</link><description>Un récit</description><pubDate>%[2]s</pubDate></item>
</channel></rss>`, "https://example.com", recent)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func writeSources(t *testing.T, serverURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	content := fmt.Sprintf(`sources:
  - name: Test Podcast
    url: %[1]s/
    feed_url: %[1]s/rss.xml
    type: podcast
    adapter: feed
    threshold: {months: 1}
`, serverURL)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// TestRun_MissingCredentials verifies the notion sink without credentials
// fails before any request is made
func TestRun_MissingCredentials(t *testing.T) {
	testEnv(t)
	srv, hits := feedServer(t)

	_, err := execute(t, "run", "--sources", writeSources(t, srv.URL))

	require.ErrorIs(t, err, config.ErrMissingCredentials)
	assert.Equal(t, int32(0), hits.Load(), "no source should be fetched")
}

// TestRun_InvalidSourcesFile verifies a broken sources file fails before any
// request is made
func TestRun_InvalidSourcesFile(t *testing.T) {
	testEnv(t)
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources:\n  - name: Broken\n    adapter: teleport\n"), 0o600))

	_, err := execute(t, "run", "--dry-run", "--sources", path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load sources")
}

// TestRun_DryRun verifies a dry run prints the new records and leaves the
// seen state untouched
func TestRun_DryRun(t *testing.T) {
	seenPath, _ := testEnv(t)
	srv, hits := feedServer(t)

	out, err := execute(t, "run", "--dry-run", "--sources", writeSources(t, srv.URL))
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Contains(t, out, "Les Capétiens")
	assert.Contains(t, out, "La Fronde")
	assert.Contains(t, out, "New items: 2")

	_, statErr := os.Stat(seenPath)
	assert.True(t, os.IsNotExist(statErr), "dry run must not write the seen file")
}

// TestRun_ArchiveSink verifies a second run publishes nothing already seen
func TestRun_ArchiveSink(t *testing.T) {
	seenPath, archiveDir := testEnv(t)
	t.Setenv("HISTORYBRIEF_SINK", "archive")
	srv, _ := feedServer(t)
	sourcesPath := writeSources(t, srv.URL)

	out, err := execute(t, "run", "--sources", sourcesPath)
	require.NoError(t, err)
	assert.Contains(t, out, "New items: 2")
	assert.Contains(t, out, "Published: 2")
	assert.FileExists(t, seenPath)

	out, err = execute(t, "run", "--sources", sourcesPath)
	require.NoError(t, err)
	assert.Contains(t, out, "New items: 0")

	archive, err := sink.NewArchive(archiveDir)
	require.NoError(t, err)
	runs, err := archive.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1, "a run with nothing new creates no archive run")
	assert.Equal(t, 2, runs[0].ItemCount)
}

// TestSources_Table verifies the built-in sources are listed
func TestSources_Table(t *testing.T) {
	testEnv(t)

	out, err := execute(t, "sources")
	require.NoError(t, err)

	assert.Contains(t, out, "CNRS Éditions")
	assert.Contains(t, out, "Concordance des temps")
	assert.Contains(t, out, "2 months")
}

// TestSources_JSON verifies the JSON listing decodes back into sources
func TestSources_JSON(t *testing.T) {
	testEnv(t)
	srv, _ := feedServer(t)

	out, err := execute(t, "sources", "--format", "json", "--sources", writeSources(t, srv.URL))
	require.NoError(t, err)

	var list []sources.Source
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Test Podcast", list[0].Name)
	assert.Equal(t, sources.AdapterFeed, list[0].Adapter)
}

func TestSources_InvalidFormat(t *testing.T) {
	testEnv(t)

	_, err := execute(t, "sources", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

// TestDoctor_Archive verifies doctor passes on a fresh archive setup
func TestDoctor_Archive(t *testing.T) {
	testEnv(t)
	t.Setenv("HISTORYBRIEF_SINK", "archive")

	out, err := execute(t, "doctor")
	require.NoError(t, err)

	assert.Contains(t, out, "Seen state is readable (0 fingerprints)")
	assert.Contains(t, out, "Archive directory does not exist yet")
}

// TestDoctor_MissingCredentials verifies doctor reports a notion sink without
// credentials as an error
func TestDoctor_MissingCredentials(t *testing.T) {
	testEnv(t)

	out, err := execute(t, "doctor")
	require.Error(t, err)
	assert.Contains(t, out, "NOTION_TOKEN")
	assert.Contains(t, out, "Checks failed")
}

// TestDoctor_CorruptSeenFile verifies an unreadable seen file is an error
func TestDoctor_CorruptSeenFile(t *testing.T) {
	seenPath, _ := testEnv(t)
	t.Setenv("HISTORYBRIEF_SINK", "archive")
	require.NoError(t, os.MkdirAll(filepath.Dir(seenPath), 0o700))
	require.NoError(t, os.WriteFile(seenPath, []byte("{broken"), 0o600))

	out, err := execute(t, "doctor")
	require.Error(t, err)
	assert.Contains(t, out, "Cannot read seen state")
}
