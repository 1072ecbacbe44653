package taxii

import (
	"context"
	"errors"
)

// ErrNotFound is returned (possibly wrapped) by repositories for absent rows.
var ErrNotFound = errors.New("not found")

// ErrTimestampRange is returned (wrapped) by repositories asked to store a
// time outside MinTimestamp..MaxTimestamp.
var ErrTimestampRange = errors.New("timestamp out of range")

// FetchState distinguishes delivered content from a deferred query.
type FetchState int

const (
	FetchReady FetchState = iota
	FetchNotReady
)

// Fetch is the outcome of a content query: either a page of blocks or the
// signal that the repository wants the caller to come back later.
type Fetch struct {
	State  FetchState
	Blocks []ContentBlock
}

// Ready wraps a page of blocks.
func Ready(blocks []ContentBlock) Fetch {
	return Fetch{State: FetchReady, Blocks: blocks}
}

// NotReady signals a deferred query.
func NotReady() Fetch {
	return Fetch{State: FetchNotReady}
}

// BlockQuery filters the content of one collection. A query with ResultID set
// belongs to an already materialized result set.
type BlockQuery struct {
	CollectionID int64
	Window       TimeWindow
	Bindings     []ContentBinding
	Offset       int
	Limit        int // 0 means no limit
	ResultID     string
}

// Repository is the persistence contract the engines consume.
//
// Lookups of absent rows return an error wrapping ErrNotFound.
type Repository interface {
	GetService(ctx context.Context, id string) (*ServiceConfig, error)
	GetCollection(ctx context.Context, serviceID, name string) (*Collection, error)
	ListCollections(ctx context.Context, serviceID string) ([]Collection, error)
	ServiceInstances(ctx context.Context, collectionID int64, t ServiceType) ([]ServiceInstance, error)

	FetchContentBlocks(ctx context.Context, q BlockQuery) (Fetch, error)
	CountContentBlocks(ctx context.Context, q BlockQuery) (int64, error)

	CreateResultSet(ctx context.Context, rs ResultSet) (*ResultSet, error)
	GetResultSet(ctx context.Context, id string) (*ResultSet, error)

	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	ListSubscriptions(ctx context.Context, serviceID string) ([]Subscription, error)
	CreateSubscription(ctx context.Context, sub Subscription) (*Subscription, error)
	UpdateSubscription(ctx context.Context, sub Subscription) error

	CreateInboxMessage(ctx context.Context, msg InboxMessage) (*InboxMessage, error)
	CreateContentBlock(ctx context.Context, block ContentBlock, collectionIDs []int64) (*ContentBlock, error)
}
