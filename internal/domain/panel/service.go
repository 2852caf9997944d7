package panel

import (
	"context"

	"github.com/mskdash/mskdash/internal/platform/source"
)

type Service struct {
	src source.Source
	asm *Assembler
}

func NewService(src source.Source, asm *Assembler) *Service {
	return &Service{src: src, asm: asm}
}

// Panel loads a fresh dataset and assembles the panel for sel.
func (s *Service) Panel(ctx context.Context, sel Selection) (*Panel, error) {
	ds, err := source.LoadDataset(ctx, s.src)
	if err != nil {
		return nil, err
	}
	return s.asm.Assemble(ds, sel)
}
