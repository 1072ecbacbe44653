package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/taxii/internal/taxii"
)

// ResultSetManager materializes and resolves result sets, the frozen filters
// behind paginated and deferred polls.
type ResultSetManager struct {
	repo taxii.Repository
	ids  IDGenerator
}

// NewResultSetManager creates a manager that stores result sets in repo.
func NewResultSetManager(repo taxii.Repository, ids IDGenerator) *ResultSetManager {
	return &ResultSetManager{repo: repo, ids: ids}
}

// Freeze captures (collection, bindings, window) under a fresh id.
// The stored copy never shares slices with the caller.
func (m *ResultSetManager) Freeze(ctx context.Context, collectionID int64, bindings []taxii.ContentBinding, window taxii.TimeWindow) (*taxii.ResultSet, error) {
	rs := taxii.ResultSet{
		ID:           m.ids.Generate(),
		CollectionID: collectionID,
		Bindings:     cloneBindings(bindings),
		Window:       cloneWindow(window),
	}
	created, err := m.repo.CreateResultSet(ctx, rs)
	if err != nil {
		return nil, fmt.Errorf("create result set: %w", err)
	}
	return created, nil
}

// Resolve returns the result set with the given id, NOT_FOUND if absent.
func (m *ResultSetManager) Resolve(ctx context.Context, id string) (*taxii.ResultSet, error) {
	rs, err := m.repo.GetResultSet(ctx, id)
	if errors.Is(err, taxii.ErrNotFound) {
		return nil, NewNotFound(id, "result set %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get result set %s: %w", id, err)
	}
	return rs, nil
}

func cloneBindings(in []taxii.ContentBinding) []taxii.ContentBinding {
	if in == nil {
		return nil
	}
	out := make([]taxii.ContentBinding, len(in))
	for i, b := range in {
		out[i] = taxii.ContentBinding{ID: b.ID, Subtypes: append([]string(nil), b.Subtypes...)}
	}
	return out
}

func cloneWindow(w taxii.TimeWindow) taxii.TimeWindow {
	var out taxii.TimeWindow
	if w.Begin != nil {
		b := *w.Begin
		out.Begin = &b
	}
	if w.End != nil {
		e := *w.End
		out.End = &e
	}
	return out
}
