package engine

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taxii/internal/hooks"
	"github.com/roach88/taxii/internal/metrics"
	"github.com/roach88/taxii/internal/taxii"
	"github.com/roach88/taxii/internal/testutil"
)

func subtyped(b taxii.ContentBlock, subtype string) taxii.ContentBlock {
	b.BindingSubtype = subtype
	return b
}

func TestInbox_MissingRequiredDestinationWritesNothing(t *testing.T) {
	f := newFixture(t)
	rc := f.request(f.inbox, taxii.Version11)
	rc.Service.DestinationCollectionRequired = true

	_, err := f.engine.Inbox(context.Background(), rc, taxii.InboxRequest{
		MessageID:        "in-1",
		DestinationNames: []string{"feed", "nope"},
		Blocks:           []taxii.ContentBlock{testutil.Block("stix", 1)},
	})
	se, ok := AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, taxii.StatusNotFound, se.Type)
	assert.Equal(t, "nope", se.Details.Get(taxii.DetailItem))
	assert.Empty(t, f.repo.blocks)
	assert.Empty(t, f.repo.inbox)
}

func TestInbox_DestinationPolicy(t *testing.T) {
	f := newFixture(t)

	required := f.request(f.inbox, taxii.Version11)
	required.Service.DestinationCollectionRequired = true
	_, err := f.engine.Inbox(context.Background(), required, taxii.InboxRequest{})
	se, ok := AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, taxii.StatusDestinationCollectionError, se.Type)
	assert.Equal(t, []string{"feed", "ioc", "set"}, se.Details[taxii.DetailAcceptableDestination])

	optional := f.request(f.inbox, taxii.Version11)
	_, err = f.engine.Inbox(context.Background(), optional, taxii.InboxRequest{DestinationNames: []string{"feed"}})
	assert.True(t, IsDestinationError(err))

	assert.Empty(t, f.repo.inbox)
}

func TestInbox_DefaultFanOutPerBlock(t *testing.T) {
	registry := hooks.NewRegistry(nil)
	var kinds []hooks.EventKind
	registry.Subscribe(func(ctx context.Context, ev hooks.Event) error {
		kinds = append(kinds, ev.Kind)
		return nil
	}, hooks.InboxMessageCreated, hooks.ContentBlockCreated)
	rec, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)
	f := newFixture(t, WithNotifier(registry), WithMetrics(rec))

	status, err := f.engine.Inbox(context.Background(), f.request(f.inbox, taxii.Version11), taxii.InboxRequest{
		MessageID: "in-1",
		Raw:       []byte("<Inbox_Message/>"),
		Blocks: []taxii.ContentBlock{
			testutil.Block("stix", 1),
			subtyped(testutil.Block("openioc", 2), "v1"),
			subtyped(testutil.Block("openioc", 3), "v2"),
			testutil.Block("cybox", 4),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, taxii.StatusSuccess, status.Type)
	assert.Equal(t, "in-1", status.InResponseTo)

	require.Len(t, f.repo.inbox, 1)
	audit := f.repo.inbox[0]
	assert.Equal(t, []string{"feed", "ioc", "set"}, audit.DestinationNames)
	assert.Equal(t, 4, audit.ContentBlockCount)
	assert.Equal(t, []byte("<Inbox_Message/>"), audit.Raw)

	// stix -> feed, set; openioc/v1 -> feed, ioc; openioc/v2 -> ioc; cybox dropped
	require.Len(t, f.repo.blocks, 3)
	assert.ElementsMatch(t, []int64{f.feed.ID, f.set.ID}, f.repo.blockColls[1])
	assert.ElementsMatch(t, []int64{f.feed.ID, f.ioc.ID}, f.repo.blockColls[2])
	assert.ElementsMatch(t, []int64{f.ioc.ID}, f.repo.blockColls[3])
	assert.Equal(t, int64(2), f.feed.Volume)
	assert.Equal(t, int64(2), f.ioc.Volume)
	assert.Equal(t, int64(1), f.set.Volume)
	assert.Zero(t, f.closed.Volume)
	for _, b := range f.repo.blocks {
		assert.Equal(t, audit.ID, b.InboxMessageID)
	}

	assert.Equal(t, []hooks.EventKind{
		hooks.InboxMessageCreated,
		hooks.ContentBlockCreated, hooks.ContentBlockCreated, hooks.ContentBlockCreated,
	}, kinds)
}

func TestInbox_AcceptedContentAllowlist(t *testing.T) {
	f := newFixture(t)
	rc := f.request(f.inbox, taxii.Version11)
	rc.Service.AcceptedContent = []taxii.ContentBinding{testutil.Binding("stix")}

	_, err := f.engine.Inbox(context.Background(), rc, taxii.InboxRequest{
		Blocks: []taxii.ContentBlock{testutil.Block("openioc", 1), testutil.Block("stix", 2)},
	})
	require.NoError(t, err)
	require.Len(t, f.repo.blocks, 1)
	assert.Equal(t, "stix", f.repo.blocks[0].BindingID)
}

func TestInbox_ExplicitDestinations(t *testing.T) {
	f := newFixture(t)
	rc := f.request(f.inbox, taxii.Version11)
	rc.Service.DestinationCollectionRequired = true

	_, err := f.engine.Inbox(context.Background(), rc, taxii.InboxRequest{
		DestinationNames: []string{"ioc", "ioc", " ioc "},
		Blocks:           []taxii.ContentBlock{testutil.Block("openioc", 1), testutil.Block("stix", 2)},
	})
	require.NoError(t, err)
	require.Len(t, f.repo.blocks, 1)
	assert.Equal(t, []int64{f.ioc.ID}, f.repo.blockColls[1])
	assert.Equal(t, []string{"ioc"}, f.repo.inbox[0].DestinationNames)
}

func TestInbox_UnavailableDestinationIsNotFound(t *testing.T) {
	f := newFixture(t)
	rc := f.request(f.inbox, taxii.Version11)
	rc.Service.DestinationCollectionRequired = true

	_, err := f.engine.Inbox(context.Background(), rc, taxii.InboxRequest{DestinationNames: []string{"closed"}})
	assert.True(t, IsNotFound(err))
}

func TestInbox_Authorization(t *testing.T) {
	f := newFixture(t)
	rc := f.request(f.inbox, taxii.Version11)
	rc.Service.DestinationCollectionRequired = true
	req := taxii.InboxRequest{
		DestinationNames: []string{"feed"},
		Blocks:           []taxii.ContentBlock{testutil.Block("stix", 1)},
	}

	rc.Account = &taxii.Account{Username: "reader", Permissions: map[string]taxii.Permission{"feed": taxii.PermissionRead}}
	_, err := f.engine.Inbox(context.Background(), rc, req)
	se, ok := AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, taxii.StatusUnauthorized, se.Type)
	assert.Equal(t, "feed", se.Details.Get(taxii.DetailItem))
	assert.Empty(t, f.repo.blocks)
	assert.Empty(t, f.repo.inbox)

	rc.Account = &taxii.Account{Username: "writer", Permissions: map[string]taxii.Permission{"feed": taxii.PermissionModify}}
	_, err = f.engine.Inbox(context.Background(), rc, req)
	require.NoError(t, err)

	rc.Account = nil
	_, err = f.engine.Inbox(context.Background(), rc, req)
	require.NoError(t, err)
	assert.Len(t, f.repo.blocks, 2)
}

func TestInbox_DefaultDestinationsAreAuthorized(t *testing.T) {
	f := newFixture(t)
	rc := f.request(f.inbox, taxii.Version11)
	rc.Account = &taxii.Account{Username: "writer", Permissions: map[string]taxii.Permission{"feed": taxii.PermissionModify}}

	_, err := f.engine.Inbox(context.Background(), rc, taxii.InboxRequest{Blocks: []taxii.ContentBlock{testutil.Block("stix", 1)}})
	assert.True(t, IsUnauthorized(err))

	rc.Account = &taxii.Account{Username: "admin", IsAdmin: true}
	_, err = f.engine.Inbox(context.Background(), rc, taxii.InboxRequest{Blocks: []taxii.ContentBlock{testutil.Block("stix", 1)}})
	require.NoError(t, err)
	assert.Len(t, f.repo.blocks, 1)
}

func TestInbox_Version10UsesConfiguredDestinations(t *testing.T) {
	f := newFixture(t)
	rc := f.request(f.inbox, taxii.Version10)
	rc.Service.DestinationCollectionNames = []string{"ioc"}

	_, err := f.engine.Inbox(context.Background(), rc, taxii.InboxRequest{
		DestinationNames: []string{"feed"},
		Blocks:           []taxii.ContentBlock{testutil.Block("openioc", 1)},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{f.ioc.ID}, f.repo.blockColls[1])
	assert.Empty(t, f.repo.blocksIn(f.feed.ID))

	rc.Service.DestinationCollectionNames = []string{"closed"}
	_, err = f.engine.Inbox(context.Background(), rc, taxii.InboxRequest{})
	assert.True(t, IsNotFound(err))
}

func TestInbox_SkipRawAuditStillNotifies(t *testing.T) {
	registry := hooks.NewRegistry(nil)
	var got *taxii.InboxMessage
	registry.Subscribe(func(ctx context.Context, ev hooks.Event) error {
		got = ev.InboxMessage
		return nil
	}, hooks.InboxMessageCreated)
	f := newFixture(t, WithNotifier(registry))
	rc := f.request(f.inbox, taxii.Version11)
	rc.Service.SaveRawInboxMessages = false

	_, err := f.engine.Inbox(context.Background(), rc, taxii.InboxRequest{
		MessageID: "in-1",
		Blocks:    []taxii.ContentBlock{testutil.Block("stix", 1)},
	})
	require.NoError(t, err)
	assert.Empty(t, f.repo.inbox)
	require.NotNil(t, got)
	assert.Equal(t, "in-1", got.MessageID)
	require.Len(t, f.repo.blocks, 1)
	assert.Zero(t, f.repo.blocks[0].InboxMessageID)
}

func TestInbox_DefaultsTimestampLabelToNow(t *testing.T) {
	f := newFixture(t)
	f.clock.Set(testutil.At(30))

	_, err := f.engine.Inbox(context.Background(), f.request(f.inbox, taxii.Version11), taxii.InboxRequest{
		Blocks: []taxii.ContentBlock{{BindingID: "stix", Content: []byte("x")}},
	})
	require.NoError(t, err)
	require.Len(t, f.repo.blocks, 1)
	assert.Equal(t, testutil.At(30), f.repo.blocks[0].TimestampLabel)
	assert.Equal(t, testutil.At(30), f.repo.blocks[0].CreatedAt)
}

func TestInbox_OutOfRangeTimestampLabelIsDropped(t *testing.T) {
	f := newFixture(t)
	late := testutil.Block("stix", 1)
	late.TimestampLabel = time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC)

	status, err := f.engine.Inbox(context.Background(), f.request(f.inbox, taxii.Version11), taxii.InboxRequest{
		Blocks: []taxii.ContentBlock{late, testutil.Block("stix", 2)},
	})
	require.NoError(t, err)
	assert.Equal(t, taxii.StatusSuccess, status.Type)
	require.Len(t, f.repo.blocks, 1)
	assert.Equal(t, testutil.At(2), f.repo.blocks[0].TimestampLabel)
}

func TestInbox_OutOfRangeWindowIsBadMessage(t *testing.T) {
	f := newFixture(t)
	late := time.Date(10000, time.January, 1, 0, 0, 0, 0, time.UTC)

	_, err := f.engine.Inbox(context.Background(), f.request(f.inbox, taxii.Version11), taxii.InboxRequest{
		Window: taxii.TimeWindow{End: &late},
		Blocks: []taxii.ContentBlock{testutil.Block("stix", 1)},
	})
	require.Error(t, err)
	assert.True(t, IsBadMessage(err))
	assert.Empty(t, f.repo.inbox)
	assert.Empty(t, f.repo.blocks)
}

func TestInbox_StoreFailuresAreSwallowed(t *testing.T) {
	f := newFixture(t)
	f.repo.failBlocks = true

	status, err := f.engine.Inbox(context.Background(), f.request(f.inbox, taxii.Version11), taxii.InboxRequest{
		Blocks: []taxii.ContentBlock{testutil.Block("stix", 1)},
	})
	require.NoError(t, err)
	assert.Equal(t, taxii.StatusSuccess, status.Type)
	assert.Len(t, f.repo.inbox, 1)
}
