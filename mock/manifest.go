package mock

import (
	"context"

	"github.com/fwojciec/kura"
)

var _ kura.ManifestService = (*ManifestService)(nil)

// ManifestService is a mock implementation of kura.ManifestService.
type ManifestService struct {
	CreateRunFn   func(ctx context.Context, run *kura.Run) error
	FinishRunFn   func(ctx context.Context, run *kura.Run) error
	FindRunByIDFn func(ctx context.Context, id string) (*kura.Run, error)
	FindRunsFn    func(ctx context.Context, filter kura.RunFilter) ([]*kura.Run, error)
	RecordPageFn  func(ctx context.Context, rec *kura.PageRecord) error
	FindPagesFn   func(ctx context.Context, filter kura.PageFilter) ([]*kura.PageRecord, error)
}

func (s *ManifestService) CreateRun(ctx context.Context, run *kura.Run) error {
	return s.CreateRunFn(ctx, run)
}

func (s *ManifestService) FinishRun(ctx context.Context, run *kura.Run) error {
	return s.FinishRunFn(ctx, run)
}

func (s *ManifestService) FindRunByID(ctx context.Context, id string) (*kura.Run, error) {
	return s.FindRunByIDFn(ctx, id)
}

func (s *ManifestService) FindRuns(ctx context.Context, filter kura.RunFilter) ([]*kura.Run, error) {
	return s.FindRunsFn(ctx, filter)
}

func (s *ManifestService) RecordPage(ctx context.Context, rec *kura.PageRecord) error {
	return s.RecordPageFn(ctx, rec)
}

func (s *ManifestService) FindPages(ctx context.Context, filter kura.PageFilter) ([]*kura.PageRecord, error) {
	return s.FindPagesFn(ctx, filter)
}
