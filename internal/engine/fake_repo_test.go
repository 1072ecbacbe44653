package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/taxii/internal/taxii"
	"github.com/roach88/taxii/internal/testutil"
)

// fakeRepo is an in-memory taxii.Repository.
type fakeRepo struct {
	mu sync.Mutex

	services    map[string]*taxii.ServiceConfig
	collections map[int64]*taxii.Collection
	attached    map[int64][]string // collection id -> service ids
	nextID      int64

	blocks      []taxii.ContentBlock
	blockColls  map[int64][]int64
	resultSets  map[string]taxii.ResultSet
	subs        map[string]taxii.Subscription
	subOrder    []string
	inbox       []taxii.InboxMessage
	updates     int
	notReady    bool // first-page fetches without result id are deferred
	failBlocks  bool
	fetchCalls  int
	countCalls  int
	lastQueries []taxii.BlockQuery
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		services:    make(map[string]*taxii.ServiceConfig),
		collections: make(map[int64]*taxii.Collection),
		attached:    make(map[int64][]string),
		blockColls:  make(map[int64][]int64),
		resultSets:  make(map[string]taxii.ResultSet),
		subs:        make(map[string]taxii.Subscription),
	}
}

func (r *fakeRepo) addService(cfg taxii.ServiceConfig) *taxii.ServiceConfig {
	r.services[cfg.ID] = &cfg
	return &cfg
}

func (r *fakeRepo) addCollection(c taxii.Collection, serviceIDs ...string) *taxii.Collection {
	r.nextID++
	c.ID = r.nextID
	r.collections[c.ID] = &c
	r.attached[c.ID] = serviceIDs
	return &c
}

func (r *fakeRepo) seed(t *testing.T, c *taxii.Collection, blocks ...taxii.ContentBlock) {
	t.Helper()
	for _, b := range blocks {
		_, err := r.CreateContentBlock(context.Background(), b, []int64{c.ID})
		require.NoError(t, err)
	}
}

func (r *fakeRepo) GetService(ctx context.Context, id string) (*taxii.ServiceConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.services[id]
	if !ok {
		return nil, fmt.Errorf("service %s: %w", id, taxii.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (r *fakeRepo) GetCollection(ctx context.Context, serviceID, name string) (*taxii.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.collections {
		if c.Name == name && r.isAttached(id, serviceID) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("collection %s: %w", name, taxii.ErrNotFound)
}

func (r *fakeRepo) ListCollections(ctx context.Context, serviceID string) ([]taxii.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []taxii.Collection
	for id, c := range r.collections {
		if r.isAttached(id, serviceID) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *fakeRepo) ServiceInstances(ctx context.Context, collectionID int64, t taxii.ServiceType) ([]taxii.ServiceInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []taxii.ServiceInstance
	for _, sid := range r.attached[collectionID] {
		if s := r.services[sid]; s != nil && s.Type == t {
			out = append(out, s.Instance())
		}
	}
	return out, nil
}

func (r *fakeRepo) isAttached(collectionID int64, serviceID string) bool {
	for _, sid := range r.attached[collectionID] {
		if sid == serviceID {
			return true
		}
	}
	return false
}

func (r *fakeRepo) matching(q taxii.BlockQuery) []taxii.ContentBlock {
	var out []taxii.ContentBlock
	for _, b := range r.blocks {
		if !containsID(r.blockColls[b.ID], q.CollectionID) {
			continue
		}
		if q.Window.Begin != nil && !b.TimestampLabel.After(*q.Window.Begin) {
			continue
		}
		if q.Window.End != nil && b.TimestampLabel.After(*q.Window.End) {
			continue
		}
		if len(q.Bindings) > 0 && !bindingFilter(q.Bindings, b) {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TimestampLabel.Before(out[j].TimestampLabel) })
	return out
}

func bindingFilter(bindings []taxii.ContentBinding, b taxii.ContentBlock) bool {
	for _, cb := range bindings {
		if cb.ID == b.BindingID && (cb.Unrestricted() || cb.HasSubtype(b.BindingSubtype)) {
			return true
		}
	}
	return false
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (r *fakeRepo) FetchContentBlocks(ctx context.Context, q taxii.BlockQuery) (taxii.Fetch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchCalls++
	r.lastQueries = append(r.lastQueries, q)
	if r.notReady && q.ResultID == "" {
		return taxii.NotReady(), nil
	}
	all := r.matching(q)
	if q.Offset >= len(all) {
		return taxii.Ready(nil), nil
	}
	all = all[q.Offset:]
	if q.Limit > 0 && len(all) > q.Limit {
		all = all[:q.Limit]
	}
	return taxii.Ready(all), nil
}

func (r *fakeRepo) CountContentBlocks(ctx context.Context, q taxii.BlockQuery) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.countCalls++
	return int64(len(r.matching(q))), nil
}

func (r *fakeRepo) CreateResultSet(ctx context.Context, rs taxii.ResultSet) (*taxii.ResultSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resultSets[rs.ID] = rs
	return &rs, nil
}

func (r *fakeRepo) GetResultSet(ctx context.Context, id string) (*taxii.ResultSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rs, ok := r.resultSets[id]
	if !ok {
		return nil, fmt.Errorf("result set %s: %w", id, taxii.ErrNotFound)
	}
	return &rs, nil
}

func (r *fakeRepo) GetSubscription(ctx context.Context, id string) (*taxii.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return nil, fmt.Errorf("subscription %s: %w", id, taxii.ErrNotFound)
	}
	return &s, nil
}

func (r *fakeRepo) ListSubscriptions(ctx context.Context, serviceID string) ([]taxii.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []taxii.Subscription
	for _, id := range r.subOrder {
		if s := r.subs[id]; s.ServiceID == serviceID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeRepo) CreateSubscription(ctx context.Context, sub taxii.Subscription) (*taxii.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[sub.ID] = sub
	r.subOrder = append(r.subOrder, sub.ID)
	return &sub, nil
}

func (r *fakeRepo) UpdateSubscription(ctx context.Context, sub taxii.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[sub.ID]; !ok {
		return fmt.Errorf("subscription %s: %w", sub.ID, taxii.ErrNotFound)
	}
	r.subs[sub.ID] = sub
	r.updates++
	return nil
}

func (r *fakeRepo) CreateInboxMessage(ctx context.Context, msg taxii.InboxMessage) (*taxii.InboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = int64(len(r.inbox) + 1)
	r.inbox = append(r.inbox, msg)
	return &msg, nil
}

func (r *fakeRepo) CreateContentBlock(ctx context.Context, b taxii.ContentBlock, collectionIDs []int64) (*taxii.ContentBlock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failBlocks {
		return nil, fmt.Errorf("disk full")
	}
	b.ID = int64(len(r.blocks) + 1)
	r.blocks = append(r.blocks, b)
	r.blockColls[b.ID] = append([]int64(nil), collectionIDs...)
	for _, id := range collectionIDs {
		r.collections[id].Volume++
	}
	return &b, nil
}

// blocksIn returns the ids of blocks attached to the collection.
func (r *fakeRepo) blocksIn(collectionID int64) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for _, b := range r.blocks {
		if containsID(r.blockColls[b.ID], collectionID) {
			ids = append(ids, b.ID)
		}
	}
	return ids
}

// fixture is a provisioned fake repository with one service of each kind.
type fixture struct {
	repo   *fakeRepo
	engine *Engine
	clock  *testutil.FixedClock
	poll   *taxii.ServiceConfig
	inbox  *taxii.ServiceConfig
	mgmt   *taxii.ServiceConfig
	feed   *taxii.Collection // stix (any subtype), openioc [v1]
	set    *taxii.Collection // data set, stix
	ioc    *taxii.Collection // openioc only
	closed *taxii.Collection // unavailable
}

func newFixture(t *testing.T, opts ...EngineOption) *fixture {
	t.Helper()
	repo := newFakeRepo()
	clock := testutil.NewFixedClock()

	f := &fixture{repo: repo, clock: clock}
	poll := taxii.DefaultServiceConfig("poll", taxii.ServicePoll)
	poll.Address = "https://example.test/poll"
	f.poll = repo.addService(poll)
	f.inbox = repo.addService(taxii.DefaultServiceConfig("inbox", taxii.ServiceInbox))
	mgmt := taxii.DefaultServiceConfig("mgmt", taxii.ServiceCollectionManagement)
	mgmt.SubscriptionMessage = "welcome"
	f.mgmt = repo.addService(mgmt)

	all := []string{"poll", "inbox", "mgmt"}
	f.feed = repo.addCollection(testutil.Feed("feed", testutil.Binding("stix"), testutil.Binding("openioc", "v1")), all...)
	set := testutil.Feed("set", testutil.Binding("stix"))
	set.Kind = taxii.KindDataSet
	f.set = repo.addCollection(set, all...)
	f.ioc = repo.addCollection(testutil.Feed("ioc", testutil.Binding("openioc")), all...)
	closed := testutil.Feed("closed", testutil.Binding("stix"))
	closed.Available = false
	f.closed = repo.addCollection(closed, all...)

	base := []EngineOption{
		WithIDGenerator(NewSequenceGenerator("id")),
		WithMessageIDGenerator(NewSequenceGenerator("msg")),
		WithClock(clock.Now),
	}
	f.engine = New(repo, append(base, opts...)...)
	return f
}

func (f *fixture) request(svc *taxii.ServiceConfig, v taxii.Version) Request {
	return Request{Version: v, Service: *svc}
}
