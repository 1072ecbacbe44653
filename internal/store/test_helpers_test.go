package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/taxii/internal/taxii"
	"github.com/roach88/taxii/internal/testutil"
)

// createTestStore creates a new temporary store for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestCollection provisions a poll service "poll" and attaches a new
// feed collection to it.
func createTestCollection(t *testing.T, s *Store, name string, bindings ...taxii.ContentBinding) *taxii.Collection {
	t.Helper()
	ctx := context.Background()

	svc := taxii.DefaultServiceConfig("poll", taxii.ServicePoll)
	require.NoError(t, s.UpsertService(ctx, svc))

	c, err := s.UpsertCollection(ctx, testutil.Feed(name, bindings...))
	require.NoError(t, err)
	require.NoError(t, s.AttachService(ctx, "poll", c.ID))
	return c
}

// seedBlocks stores blocks into the collection and returns them with ids.
func seedBlocks(t *testing.T, s *Store, c *taxii.Collection, blocks ...taxii.ContentBlock) []taxii.ContentBlock {
	t.Helper()
	out := make([]taxii.ContentBlock, 0, len(blocks))
	for _, b := range blocks {
		b.CreatedAt = b.TimestampLabel
		stored, err := s.CreateContentBlock(context.Background(), b, []int64{c.ID})
		require.NoError(t, err)
		out = append(out, *stored)
	}
	return out
}

func contents(blocks []taxii.ContentBlock) []string {
	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, string(b.Content))
	}
	return out
}
