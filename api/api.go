// Package api serves the run archive and the configured sources over a
// read-only HTTP API.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pevans/historybrief/record"
	"github.com/pevans/historybrief/sink"
	"github.com/pevans/historybrief/sources"
)

// Pagination bounds.
const (
	defaultLimit = 50
	maxLimit     = 1000
)

// Server represents the HTTP API server.
type Server struct {
	archive *sink.Archive
	sources []sources.Source
}

// NewServer creates an API server over an archive and a source list.
func NewServer(archive *sink.Archive, list []sources.Source) *Server {
	return &Server{
		archive: archive,
		sources: list,
	}
}

// SetupRouter configures the Gin router with all routes.
func (s *Server) SetupRouter() *gin.Engine {
	router := gin.Default()

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	})

	router.GET("/healthz", s.HandleHealth)

	v1 := router.Group("/api/v1")
	v1.GET("/runs", s.HandleListRuns)
	v1.GET("/runs/:id", s.HandleGetRun)
	v1.GET("/runs/:id/items", s.HandleListRunItems)
	v1.GET("/sources", s.HandleListSources)

	return router
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error code and message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ListRunsResponse represents the response for GET /api/v1/runs.
type ListRunsResponse struct {
	Runs   []sink.Run `json:"runs"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// ListItemsResponse represents the response for GET /api/v1/runs/{id}/items.
type ListItemsResponse struct {
	RunID uuid.UUID             `json:"run_id"`
	Items []sink.ArchivedRecord `json:"items"`
	Total int                   `json:"total"`
	// Errors names archived files that could not be read.
	Errors []string `json:"errors,omitempty"`
}

// ListSourcesResponse represents the response for GET /api/v1/sources.
type ListSourcesResponse struct {
	Sources []sources.Source `json:"sources"`
	Total   int              `json:"total"`
}

// errorResponse creates a standardized error response.
func errorResponse(code, message string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Code: code, Message: message}}
}

// handleError maps domain errors to HTTP responses.
func (s *Server) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sink.ErrRunNotFound):
		c.JSON(http.StatusNotFound, errorResponse("not_found", err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to process request"))
	}
}

// HandleHealth handles GET /healthz.
func (s *Server) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleListRuns handles GET /api/v1/runs, newest first.
func (s *Server) HandleListRuns(c *gin.Context) {
	limit, offset, ok := parsePagination(c)
	if !ok {
		return
	}

	runs, err := s.archive.Runs()
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListRunsResponse{
		Runs:   paginate(runs, offset, limit),
		Total:  len(runs),
		Limit:  limit,
		Offset: offset,
	})
}

// HandleGetRun handles GET /api/v1/runs/{id}.
func (s *Server) HandleGetRun(c *gin.Context) {
	id, ok := parseRunID(c)
	if !ok {
		return
	}

	run, err := s.archive.Run(id)
	if err != nil {
		s.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, run)
}

// HandleListRunItems handles GET /api/v1/runs/{id}/items. The optional source
// and type parameters filter by exact match.
func (s *Server) HandleListRunItems(c *gin.Context) {
	id, ok := parseRunID(c)
	if !ok {
		return
	}

	typeParam := c.Query("type")
	if typeParam != "" && !record.Type(typeParam).Valid() {
		c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", "Invalid type parameter: "+typeParam))
		return
	}

	result, err := s.archive.Items(id)
	if err != nil {
		s.handleError(c, err)
		return
	}

	items := result.Items
	if source := c.Query("source"); source != "" {
		items = filterItems(items, func(item sink.ArchivedRecord) bool {
			return item.Source == source
		})
	}
	if typeParam != "" {
		items = filterItems(items, func(item sink.ArchivedRecord) bool {
			return string(item.Type) == typeParam
		})
	}

	resp := ListItemsResponse{
		RunID: id,
		Items: items,
		Total: len(items),
	}
	for _, readErr := range result.Errors {
		resp.Errors = append(resp.Errors, readErr.Error())
	}

	c.JSON(http.StatusOK, resp)
}

// HandleListSources handles GET /api/v1/sources. The optional type and
// enabled parameters filter the list.
func (s *Server) HandleListSources(c *gin.Context) {
	list := make([]sources.Source, 0, len(s.sources))
	for _, src := range s.sources {
		if typeParam := c.Query("type"); typeParam != "" && string(src.Type) != typeParam {
			continue
		}
		if enabledParam := c.Query("enabled"); enabledParam != "" {
			enabled := enabledParam == "true"
			if src.Disabled == enabled {
				continue
			}
		}
		list = append(list, src)
	}

	c.JSON(http.StatusOK, ListSourcesResponse{
		Sources: list,
		Total:   len(list),
	})
}

func parseRunID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid_id", "Invalid run ID: "+err.Error()))
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination reads limit and offset, writing a 400 on invalid values.
func parsePagination(c *gin.Context) (limit, offset int, ok bool) {
	limit = defaultLimit
	if limitParam := c.Query("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", "Invalid limit parameter"))
			return 0, 0, false
		}
		limit = min(parsed, maxLimit)
	}

	if offsetParam := c.Query("offset"); offsetParam != "" {
		parsed, err := strconv.Atoi(offsetParam)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, errorResponse("invalid_parameter", "Invalid offset parameter"))
			return 0, 0, false
		}
		offset = parsed
	}
	return limit, offset, true
}

// paginate returns a slice of items for the given offset and limit.
func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}

	end := min(offset+limit, len(items))

	return items[offset:end]
}

func filterItems(items []sink.ArchivedRecord, keep func(sink.ArchivedRecord) bool) []sink.ArchivedRecord {
	filtered := []sink.ArchivedRecord{}
	for _, item := range items {
		if keep(item) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
