package roster

import (
	"context"

	"github.com/mskdash/mskdash/internal/platform/source"
	"github.com/mskdash/mskdash/internal/platform/table"
	"github.com/mskdash/mskdash/pkg/pagination"
)

type Service struct {
	src   source.Source
	rules *table.Rules
	limit int
}

// NewService returns a roster service paging by limit rows; zero means
// pagination.DefaultLimit.
func NewService(src source.Source, rules *table.Rules, limit int) *Service {
	if rules == nil {
		rules = table.DefaultRules()
	}
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}
	return &Service{src: src, rules: rules, limit: limit}
}

// List loads a fresh dataset and returns one roster page.
func (s *Service) List(ctx context.Context, q Query) (*Result, error) {
	ds, err := source.LoadDataset(ctx, s.src)
	if err != nil {
		return nil, err
	}
	return List(ds.Demographics, s.rules, q, s.limit)
}
