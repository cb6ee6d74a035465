package handler

import (
	"context"
	"errors"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/anvisa/metrics"
	"github.com/use-agent/anvisa/models"
)

// Searcher runs searches and reports its load.
type Searcher interface {
	Search(ctx context.Context, q models.Query, opts models.SearchOptions) (*models.SearchResult, error)
	Active() int
	Capacity() int
}

// Search returns a handler for POST /api/v1/search.
//
// Flow:
//  1. Parse & validate request, apply defaults.
//  2. Searcher.Search → SearchResult.
//  3. Record metrics, return 200 with the result, even a partial one.
//
// Only failures to start a browser session at all produce an error body.
func Search(s Searcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		// ── 1. Parse request ────────────────────────────────────────
		var req models.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewSearchError(models.ErrCodeInvalidInput, err.Error(), err))
			return
		}
		req.Defaults()
		if utf8.RuneCountInString(req.Substance) < 2 {
			respondError(c, models.NewSearchError(models.ErrCodeInvalidInput, "substance must have at least 2 characters", nil))
			return
		}

		// ── 2. Search ───────────────────────────────────────────────
		start := time.Now()
		result, err := s.Search(c.Request.Context(), req.Query(), req.Options())
		elapsed := time.Since(start)

		if err != nil {
			metrics.ObserveSearch(models.StatusFailed, 0, elapsed)
			respondError(c, err)
			return
		}

		// ── 3. Respond ──────────────────────────────────────────────
		metrics.ObserveSearch(result.Status, len(result.Records), elapsed)
		c.JSON(http.StatusOK, result)
	}
}

// respondError writes err as an ErrorResponse with the matching status.
func respondError(c *gin.Context, err error) {
	searchErr := categorizeError(err)
	c.JSON(mapErrorToStatus(searchErr), models.ErrorResponse{Error: searchErr.ToDetail()})
}

// categorizeError wraps raw errors into typed SearchErrors so they can be
// mapped to HTTP status codes.
func categorizeError(err error) *models.SearchError {
	var searchErr *models.SearchError
	switch {
	case errors.As(err, &searchErr):
		return searchErr
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewSearchError(models.ErrCodeTimeout, "search timed out", err)
	case errors.Is(err, context.Canceled):
		return models.NewSearchError(models.ErrCodeTimeout, "request canceled", err)
	default:
		return models.NewSearchError(models.ErrCodeInternal, err.Error(), err)
	}
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.SearchError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500, includes SESSION_FATAL
	}
}
