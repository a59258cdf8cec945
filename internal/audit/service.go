package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/stellarc/stellarc/internal/platform/httpx"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	// MaxExportRows caps a single CSV export.
	MaxExportRows = 5000
)

// ErrExportTooLarge reports an export window with more than MaxExportRows rows.
var ErrExportTooLarge = httpx.NewError(httpx.ErrInvalidRequest, "Export range too large, narrow the filters")

// Service coordinates audit timeline reads.
type Service struct {
	repo Repository
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of audit rows.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, errors.New("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.repo.Window(ctx, windowParams(filters, (page-1)*pageSize, pageSize+1))
	if err != nil {
		return Result{}, fmt.Errorf("audit timeline: %w: %v", httpx.ErrStorage, err)
	}
	if rows == nil {
		rows = []TimelineRow{}
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every row matching filters, ignoring paging.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	rows, err := s.repo.Window(ctx, windowParams(filters, 0, MaxExportRows+1))
	if err != nil {
		return nil, fmt.Errorf("audit export: %w: %v", httpx.ErrStorage, err)
	}
	if len(rows) > MaxExportRows {
		return nil, ErrExportTooLarge
	}
	return rows, nil
}

func windowParams(filters TimelineFilters, offset, limit int) WindowParams {
	return WindowParams{
		From:   filters.From,
		To:     filters.To,
		Actor:  filters.Actor,
		Entity: filters.Entity,
		Action: filters.Action,
		Offset: offset,
		Limit:  limit,
	}
}
