package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Strob0t/devorch/internal/domain/run"
	"github.com/Strob0t/devorch/internal/port/ledger"
)

// DefaultRecent is how many runs Recent shows when n is not positive.
const DefaultRecent = 10

// QueryService answers read-only questions about the ledger.
type QueryService struct {
	store ledger.Store
	log   *slog.Logger
}

// NewQueryService creates a query service over store.
func NewQueryService(store ledger.Store, log *slog.Logger) *QueryService {
	if log == nil {
		log = slog.Default()
	}
	return &QueryService{store: store, log: log}
}

// Status loads one run.
func (s *QueryService) Status(ctx context.Context, id string) (*run.Run, error) {
	r, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}
	return r, nil
}

// List returns every run, newest first.
func (s *QueryService) List(ctx context.Context) ([]run.Summary, error) {
	runs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Recent returns the n newest runs.
func (s *QueryService) Recent(ctx context.Context, n int) ([]run.Summary, error) {
	if n <= 0 {
		n = DefaultRecent
	}
	runs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) > n {
		runs = runs[:n]
	}
	return runs, nil
}

// Report returns the markdown report of a run.
func (s *QueryService) Report(ctx context.Context, id string) (string, error) {
	md, err := s.store.LoadReport(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load report %s: %w", id, err)
	}
	return md, nil
}
