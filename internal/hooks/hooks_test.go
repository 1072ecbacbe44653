package hooks

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taxii/internal/taxii"
)

func TestRegistry_NotifyByKind(t *testing.T) {
	r := NewRegistry(nil)

	var got []EventKind
	r.Subscribe(func(ctx context.Context, ev Event) error {
		got = append(got, ev.Kind)
		return nil
	}, SubscriptionCreated, InboxMessageCreated)

	r.Notify(context.Background(), Event{Kind: SubscriptionCreated})
	r.Notify(context.Background(), Event{Kind: ContentBlockCreated})
	r.Notify(context.Background(), Event{Kind: InboxMessageCreated})

	assert.Equal(t, []EventKind{SubscriptionCreated, InboxMessageCreated}, got)
}

func TestRegistry_FailingListenersAreIsolated(t *testing.T) {
	var buf bytes.Buffer
	r := NewRegistry(slog.New(slog.NewTextHandler(&buf, nil)))

	calls := 0
	r.Subscribe(func(ctx context.Context, ev Event) error {
		return errors.New("boom")
	}, ContentBlockCreated)
	r.Subscribe(func(ctx context.Context, ev Event) error {
		panic("worse")
	}, ContentBlockCreated)
	r.Subscribe(func(ctx context.Context, ev Event) error {
		calls++
		return nil
	}, ContentBlockCreated)

	require.NotPanics(t, func() {
		r.Notify(context.Background(), Event{Kind: ContentBlockCreated})
	})
	assert.Equal(t, 1, calls)
	assert.Contains(t, buf.String(), "boom")
	assert.Contains(t, buf.String(), "listener panic: worse")
}

func TestLogListener(t *testing.T) {
	var buf bytes.Buffer
	l := LogListener(slog.New(slog.NewTextHandler(&buf, nil)))

	err := l(context.Background(), Event{
		Kind:         SubscriptionCreated,
		ServiceID:    "mgmt",
		Subscription: &taxii.Subscription{ID: "sub-1", CollectionID: 7},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "subscription_id=sub-1")
	assert.Contains(t, buf.String(), "service=mgmt")
}
