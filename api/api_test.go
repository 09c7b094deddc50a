package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pevans/historybrief/record"
	"github.com/pevans/historybrief/sink"
	"github.com/pevans/historybrief/sources"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// Test helper: create a test API server over an empty archive
func setupTestServer(t *testing.T) (*gin.Engine, *sink.Archive) {
	archive, err := sink.NewArchive(t.TempDir())
	require.NoError(t, err)

	list := []sources.Source{
		{Name: "PUF", URL: "https://www.puf.com", Type: record.TypePublisher, Adapter: sources.AdapterCrawl},
		{Name: "Storiavoce", URL: "https://storiavoce.com", Type: record.TypePodcast, Adapter: sources.AdapterCrawl},
		{Name: "EHESS", URL: "https://www.ehess.fr", Type: record.TypeInstitution, Adapter: sources.AdapterListing, Disabled: true},
	}

	return NewServer(archive, list).SetupRouter(), archive
}

// Test helper: archive a run holding one record per title
func addRun(t *testing.T, archive *sink.Archive, startedAt time.Time, recs ...record.Record) sink.Run {
	run, err := archive.StartRun(startedAt)
	require.NoError(t, err)
	for i, r := range recs {
		_, err := archive.Add(run.ID, i, r, startedAt)
		require.NoError(t, err)
	}
	return run
}

func sampleRecord(title, source string, kind record.Type) record.Record {
	return record.Record{
		Title:  title,
		URL:    "https://example.com/" + title,
		Source: source,
		Type:   kind,
	}
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// TestHealth verifies the liveness endpoint
func TestHealth(t *testing.T) {
	router, _ := setupTestServer(t)

	w := get(router, "/healthz")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

// TestHandleListRuns_Empty verifies behavior with no runs
func TestHandleListRuns_Empty(t *testing.T) {
	router, _ := setupTestServer(t)

	w := get(router, "/api/v1/runs")
	assert.Equal(t, http.StatusOK, w.Code)

	var resp ListRunsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Total)
	assert.Empty(t, resp.Runs)
	assert.Equal(t, 50, resp.Limit, "default limit should be 50")
}

// TestHandleListRuns_NewestFirst verifies runs are listed newest first with
// their item counts
func TestHandleListRuns_NewestFirst(t *testing.T) {
	router, archive := setupTestServer(t)

	base := time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)
	older := addRun(t, archive, base, sampleRecord("a", "PUF", record.TypePublisher))
	newer := addRun(t, archive, base.Add(24*time.Hour),
		sampleRecord("b", "PUF", record.TypePublisher),
		sampleRecord("c", "PUF", record.TypePublisher),
	)

	w := get(router, "/api/v1/runs")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListRunsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Runs, 2)
	assert.Equal(t, newer.ID, resp.Runs[0].ID)
	assert.Equal(t, 2, resp.Runs[0].ItemCount)
	assert.Equal(t, older.ID, resp.Runs[1].ID)
	assert.Equal(t, 1, resp.Runs[1].ItemCount)
}

// TestHandleListRuns_Pagination verifies limit and offset parameters
func TestHandleListRuns_Pagination(t *testing.T) {
	router, archive := setupTestServer(t)

	base := time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		addRun(t, archive, base.Add(time.Duration(i)*time.Hour))
	}

	tests := []struct {
		name          string
		query         string
		expectedLimit int
		expectedCount int
	}{
		{"default pagination", "", 50, 5},
		{"custom limit", "?limit=2", 2, 2},
		{"offset at end", "?limit=2&offset=4", 2, 1},
		{"offset beyond end", "?offset=10", 50, 0},
		{"max limit enforcement", "?limit=5000", 1000, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(router, "/api/v1/runs"+tt.query)
			require.Equal(t, http.StatusOK, w.Code)

			var resp ListRunsResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, 5, resp.Total, "total should always be 5")
			assert.Equal(t, tt.expectedLimit, resp.Limit)
			assert.Len(t, resp.Runs, tt.expectedCount)
		})
	}
}

// TestHandleListRuns_InvalidParameters verifies error handling for invalid
// pagination
func TestHandleListRuns_InvalidParameters(t *testing.T) {
	router, _ := setupTestServer(t)

	for _, params := range []string{"?limit=invalid", "?limit=0", "?limit=-1", "?offset=invalid", "?offset=-1"} {
		t.Run(params, func(t *testing.T) {
			w := get(router, "/api/v1/runs"+params)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var errResp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
			assert.Equal(t, "invalid_parameter", errResp.Error.Code)
		})
	}
}

// TestHandleGetRun verifies a single run lookup
func TestHandleGetRun(t *testing.T) {
	router, archive := setupTestServer(t)
	run := addRun(t, archive, time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC),
		sampleRecord("a", "PUF", record.TypePublisher))

	w := get(router, "/api/v1/runs/"+run.ID.String())
	require.Equal(t, http.StatusOK, w.Code)

	var resp sink.Run
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, run.ID, resp.ID)
	assert.Equal(t, 1, resp.ItemCount)
	assert.True(t, run.StartedAt.Equal(resp.StartedAt))
}

// TestHandleListRunItems_Success verifies items come back in publish order
func TestHandleListRunItems_Success(t *testing.T) {
	router, archive := setupTestServer(t)
	run := addRun(t, archive, time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC),
		sampleRecord("first", "PUF", record.TypePublisher),
		sampleRecord("second", "Storiavoce", record.TypePodcast),
		sampleRecord("third", "PUF", record.TypePublisher),
	)

	w := get(router, fmt.Sprintf("/api/v1/runs/%s/items", run.ID))
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListItemsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, run.ID, resp.RunID)
	assert.Equal(t, 3, resp.Total)
	require.Len(t, resp.Items, 3)
	assert.Equal(t, "first", resp.Items[0].Title)
	assert.Equal(t, "second", resp.Items[1].Title)
	assert.Equal(t, "third", resp.Items[2].Title)
	assert.Equal(t, resp.Items[0].Record.Fingerprint(), resp.Items[0].Fingerprint)
	assert.Empty(t, resp.Errors)
}

// TestHandleListRunItems_Filters verifies the source and type filters
func TestHandleListRunItems_Filters(t *testing.T) {
	router, archive := setupTestServer(t)
	run := addRun(t, archive, time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC),
		sampleRecord("first", "PUF", record.TypePublisher),
		sampleRecord("second", "Storiavoce", record.TypePodcast),
		sampleRecord("third", "PUF", record.TypePublisher),
	)

	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{"by source", "?source=PUF", []string{"first", "third"}},
		{"by type", "?type=podcast", []string{"second"}},
		{"no match", "?source=PUF&type=podcast", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(router, fmt.Sprintf("/api/v1/runs/%s/items%s", run.ID, tt.query))
			require.Equal(t, http.StatusOK, w.Code)

			var resp ListItemsResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			got := []string{}
			for _, item := range resp.Items {
				got = append(got, item.Title)
			}
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, len(tt.expected), resp.Total)
		})
	}
}

// TestHandleListRunItems_InvalidType verifies 400 for an unknown type filter
func TestHandleListRunItems_InvalidType(t *testing.T) {
	router, archive := setupTestServer(t)
	run := addRun(t, archive, time.Now())

	w := get(router, fmt.Sprintf("/api/v1/runs/%s/items?type=blog", run.ID))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// TestHandleListRunItems_InvalidID verifies 400 for invalid UUID
func TestHandleListRunItems_InvalidID(t *testing.T) {
	router, _ := setupTestServer(t)

	w := get(router, "/api/v1/runs/invalid-uuid/items")
	assert.Equal(t, http.StatusBadRequest, w.Code, "should return 400 for invalid UUID")

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "invalid_id", errResp.Error.Code)
}

// TestHandleListRunItems_NotFound verifies 404 for an unknown run
func TestHandleListRunItems_NotFound(t *testing.T) {
	router, _ := setupTestServer(t)

	w := get(router, fmt.Sprintf("/api/v1/runs/%s/items", uuid.New()))
	assert.Equal(t, http.StatusNotFound, w.Code, "should return 404 for unknown run")

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "not_found", errResp.Error.Code)
}

// TestHandleListRunItems_CorruptedFile verifies unreadable files are
// reported without failing the listing
func TestHandleListRunItems_CorruptedFile(t *testing.T) {
	router, archive := setupTestServer(t)
	run := addRun(t, archive, time.Now(), sampleRecord("ok", "PUF", record.TypePublisher))

	broken := filepath.Join(archive.Dir(), run.ID.String(), uuid.New().String()+".json")
	require.NoError(t, os.WriteFile(broken, []byte("{not json"), 0o600))

	w := get(router, fmt.Sprintf("/api/v1/runs/%s/items", run.ID))
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListItemsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 1)
	assert.Len(t, resp.Errors, 1)
}

// TestHandleListSources verifies the source list and its filters
func TestHandleListSources(t *testing.T) {
	router, _ := setupTestServer(t)

	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{"all", "", []string{"PUF", "Storiavoce", "EHESS"}},
		{"by type", "?type=podcast", []string{"Storiavoce"}},
		{"enabled only", "?enabled=true", []string{"PUF", "Storiavoce"}},
		{"disabled only", "?enabled=false", []string{"EHESS"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(router, "/api/v1/sources"+tt.query)
			require.Equal(t, http.StatusOK, w.Code)

			var resp ListSourcesResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			names := []string{}
			for _, src := range resp.Sources {
				names = append(names, src.Name)
			}
			assert.Equal(t, tt.expected, names)
			assert.Equal(t, len(tt.expected), resp.Total)
		})
	}
}

// TestCORS verifies preflight requests are answered
func TestCORS(t *testing.T) {
	router, _ := setupTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/runs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
