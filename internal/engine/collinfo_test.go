package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/taxii/internal/taxii"
)

func collectionNames(infos []taxii.CollectionInformation) []string {
	var out []string
	for _, c := range infos {
		out = append(out, c.Name)
	}
	return out
}

func TestCollectionInformation_ListsAvailableCollections(t *testing.T) {
	f := newFixture(t)

	resp, err := f.engine.CollectionInformation(context.Background(), f.request(f.mgmt, taxii.Version11),
		taxii.CollectionInformationRequest{MessageID: "req-1"})
	require.NoError(t, err)
	assert.Equal(t, "req-1", resp.InResponseTo)
	assert.Equal(t, []string{"feed", "ioc", "set"}, collectionNames(resp.Collections))

	feed := resp.Collections[0]
	assert.Equal(t, taxii.KindDataFeed, feed.Kind)
	require.Len(t, feed.PollInstances, 1)
	assert.Equal(t, "poll", feed.PollInstances[0].ServiceID)
	require.Len(t, feed.InboxInstances, 1)
	require.Len(t, feed.SubscriptionInstances, 1)
	assert.Equal(t, "mgmt", feed.SubscriptionInstances[0].ServiceID)
}

func TestCollectionInformation_FiltersByReadPermission(t *testing.T) {
	f := newFixture(t)
	rc := f.request(f.mgmt, taxii.Version11)
	rc.Account = &taxii.Account{Username: "u", Permissions: map[string]taxii.Permission{
		"ioc": taxii.PermissionRead,
		"set": taxii.PermissionModify,
	}}

	resp, err := f.engine.CollectionInformation(context.Background(), rc, taxii.CollectionInformationRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"ioc", "set"}, collectionNames(resp.Collections))
}

func TestCollectionInformation_Version10UsesFeedManagement(t *testing.T) {
	f := newFixture(t)

	resp, err := f.engine.CollectionInformation(context.Background(), f.request(f.mgmt, taxii.Version10), taxii.CollectionInformationRequest{})
	require.NoError(t, err)
	assert.Empty(t, resp.Collections[0].SubscriptionInstances)
}
