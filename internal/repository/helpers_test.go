package repository

import (
	"time"

	"github.com/umoja-platform/umoja-api/internal/models"
)

func nowRow() time.Time {
	return time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
}

func listFilterPendingSearch(term string) models.ContentFilter {
	return models.ContentFilter{
		Search:   term,
		Approval: models.ApprovalPending,
		Page:     1,
		PageSize: 20,
	}
}
