package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/liveclass-api/internal/middleware"
	"github.com/noah-isme/liveclass-api/internal/models"
	appErrors "github.com/noah-isme/liveclass-api/pkg/errors"
	"github.com/noah-isme/liveclass-api/pkg/response"
)

func pickQuery(c *gin.Context, preferred string, fallback string) string {
	if value := strings.TrimSpace(c.Query(preferred)); value != "" {
		return value
	}
	return strings.TrimSpace(c.Query(fallback))
}

// requireDate parses a mandatory YYYY-MM-DD query parameter.
func requireDate(c *gin.Context, name string) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, name+" is required"))
		return time.Time{}, false
	}
	date, err := models.ParseDate(raw)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return time.Time{}, false
	}
	return date, true
}

func parseOptionalDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := models.ParseDate(raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	return &parsed, nil
}

func pageParams(c *gin.Context) (page, size int) {
	if v, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		page = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("page_size", c.DefaultQuery("limit", "100"))); err == nil {
		size = v
	}
	return page, size
}

// splitQuery accepts both repeated and comma separated values.
func splitQuery(c *gin.Context, name string) []string {
	var out []string
	for _, raw := range c.QueryArray(name) {
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

func respondCached(c *gin.Context, data interface{}, cacheHit bool, started time.Time) {
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(started).Milliseconds()
	response.JSON(c, http.StatusOK, data, nil, meta)
}
