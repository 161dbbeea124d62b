package service

import (
	"github.com/noah-isme/liveclass-api/internal/models"
	appErrors "github.com/noah-isme/liveclass-api/pkg/errors"
)

type detailer interface {
	Details() interface{}
}

// outcomeError flattens an error into the per-item shape of partial reports.
func outcomeError(err error) *models.OutcomeError {
	if err == nil {
		return nil
	}
	appErr := appErrors.FromError(err)
	out := &models.OutcomeError{Code: appErr.Code, Message: appErr.Message}
	if d, ok := appErr.Err.(detailer); ok {
		out.Details = d.Details()
	}
	return out
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func paginationFor(page, size, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 500 {
		size = 100
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}
