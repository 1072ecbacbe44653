package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taxii/internal/taxii"
	"github.com/roach88/taxii/internal/testutil"
)

func TestResultSet_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := createTestCollection(t, s, "feed")

	rs := taxii.ResultSet{
		ID:           "rs-1",
		CollectionID: c.ID,
		Bindings:     []taxii.ContentBinding{testutil.Binding("openioc", "v1")},
		Window:       taxii.TimeWindow{Begin: testutil.AtPtr(1)},
		CreatedAt:    testutil.At(2),
	}
	_, err := s.CreateResultSet(ctx, rs)
	require.NoError(t, err)

	got, err := s.GetResultSet(ctx, "rs-1")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.CollectionID)
	assert.Equal(t, rs.Bindings, got.Bindings)
	require.NotNil(t, got.Window.Begin)
	assert.True(t, got.Window.Begin.Equal(testutil.At(1)))
	assert.Nil(t, got.Window.End)
	assert.True(t, got.CreatedAt.Equal(testutil.At(2)))

	_, err = s.GetResultSet(ctx, "rs-2")
	assert.ErrorIs(t, err, taxii.ErrNotFound)
}

func TestResultSet_NoBindings(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := createTestCollection(t, s, "feed")

	_, err := s.CreateResultSet(ctx, taxii.ResultSet{ID: "rs-1", CollectionID: c.ID})
	require.NoError(t, err)

	got, err := s.GetResultSet(ctx, "rs-1")
	require.NoError(t, err)
	assert.Nil(t, got.Bindings)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSubscription_CreateUpdateList(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	c := createTestCollection(t, s, "feed")

	first := taxii.Subscription{
		ID:           "sub-1",
		CollectionID: c.ID,
		ServiceID:    "mgmt",
		Status:       taxii.SubscriptionActive,
		Params: taxii.SubscriptionParams{
			ResponseType: taxii.ResponseCountOnly,
			Bindings:     []taxii.ContentBinding{testutil.Binding("stix")},
		},
		CreatedAt: testutil.At(1),
	}
	second := first
	second.ID = "sub-2"
	second.CreatedAt = testutil.At(2)
	other := first
	other.ID = "sub-3"
	other.ServiceID = "elsewhere"

	for _, sub := range []taxii.Subscription{second, first, other} {
		_, err := s.CreateSubscription(ctx, sub)
		require.NoError(t, err)
	}

	first.Status = taxii.SubscriptionPaused
	require.NoError(t, s.UpdateSubscription(ctx, first))

	got, err := s.GetSubscription(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, taxii.SubscriptionPaused, got.Status)
	assert.Equal(t, first.Params, got.Params)
	assert.True(t, got.CreatedAt.Equal(testutil.At(1)))

	subs, err := s.ListSubscriptions(ctx, "mgmt")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "sub-1", subs[0].ID)
	assert.Equal(t, "sub-2", subs[1].ID)
}

func TestSubscription_Missing(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.GetSubscription(ctx, "nope")
	assert.ErrorIs(t, err, taxii.ErrNotFound)

	err = s.UpdateSubscription(ctx, taxii.Subscription{ID: "nope", Status: taxii.SubscriptionPaused})
	assert.ErrorIs(t, err, taxii.ErrNotFound)
}

func TestInboxMessage_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	count := int64(12)
	msg := taxii.InboxMessage{
		MessageID:         "m1",
		ServiceID:         "inbox",
		Raw:               []byte(`{"kind":"inbox_message"}`),
		Message:           "hello",
		ContentBlockCount: 2,
		DestinationNames:  []string{"a", "b"},
		ResultID:          "rs-9",
		SubscriptionID:    "sub-1",
		RecordCount:       &count,
		PartialCount:      true,
		ExclusiveBegin:    testutil.AtPtr(1),
		InclusiveEnd:      testutil.AtPtr(2),
		CreatedAt:         testutil.At(3),
	}
	stored, err := s.CreateInboxMessage(ctx, msg)
	require.NoError(t, err)
	require.NotZero(t, stored.ID)

	got, err := s.GetInboxMessage(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, msg.Raw, got.Raw)
	assert.Equal(t, msg.DestinationNames, got.DestinationNames)
	require.NotNil(t, got.RecordCount)
	assert.Equal(t, int64(12), *got.RecordCount)
	assert.True(t, got.PartialCount)
	assert.True(t, got.InclusiveEnd.Equal(testutil.At(2)))
}

func TestInboxMessage_NoDestinations(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	stored, err := s.CreateInboxMessage(ctx, taxii.InboxMessage{MessageID: "m1", ServiceID: "inbox"})
	require.NoError(t, err)

	got, err := s.GetInboxMessage(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{}, got.DestinationNames)
	assert.Nil(t, got.RecordCount)
	assert.Nil(t, got.ExclusiveBegin)
}
