package alerts

import (
	"context"

	"github.com/mskdash/mskdash/internal/platform/source"
	"github.com/mskdash/mskdash/internal/platform/table"
)

type Service struct {
	src   source.Source
	rules *table.Rules
}

func NewService(src source.Source, rules *table.Rules) *Service {
	if rules == nil {
		rules = table.DefaultRules()
	}
	return &Service{src: src, rules: rules}
}

// Table loads a fresh dataset and builds the alert table.
func (s *Service) Table(ctx context.Context) (*Table, error) {
	ds, err := source.LoadDataset(ctx, s.src)
	if err != nil {
		return nil, err
	}
	return Build(ds.Alerts, ds.Demographics, s.rules)
}
