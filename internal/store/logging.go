package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/taxii/internal/taxii"
)

type repoLogging struct {
	repo taxii.Repository
	log  *slog.Logger
}

// NewLogging wraps repo so that every call is logged: debug on success or a
// missing row, error otherwise.
func NewLogging(repo taxii.Repository, log *slog.Logger) taxii.Repository {
	return repoLogging{
		repo: repo,
		log:  log,
	}
}

func (rl repoLogging) GetService(ctx context.Context, id string) (cfg *taxii.ServiceConfig, err error) {
	cfg, err = rl.repo.GetService(ctx, id)
	rl.log.Log(ctx, rl.logLevel(err), "repo.GetService", "id", id, "err", err)
	return
}

func (rl repoLogging) GetCollection(ctx context.Context, serviceID, name string) (c *taxii.Collection, err error) {
	c, err = rl.repo.GetCollection(ctx, serviceID, name)
	rl.log.Log(ctx, rl.logLevel(err), "repo.GetCollection", "service", serviceID, "name", name, "err", err)
	return
}

func (rl repoLogging) ListCollections(ctx context.Context, serviceID string) (cs []taxii.Collection, err error) {
	cs, err = rl.repo.ListCollections(ctx, serviceID)
	rl.log.Log(ctx, rl.logLevel(err), "repo.ListCollections", "service", serviceID, "count", len(cs), "err", err)
	return
}

func (rl repoLogging) ServiceInstances(ctx context.Context, collectionID int64, t taxii.ServiceType) (out []taxii.ServiceInstance, err error) {
	out, err = rl.repo.ServiceInstances(ctx, collectionID, t)
	rl.log.Log(ctx, rl.logLevel(err), "repo.ServiceInstances", "collection", collectionID, "type", t, "count", len(out), "err", err)
	return
}

func (rl repoLogging) FetchContentBlocks(ctx context.Context, q taxii.BlockQuery) (f taxii.Fetch, err error) {
	f, err = rl.repo.FetchContentBlocks(ctx, q)
	rl.log.Log(ctx, rl.logLevel(err), "repo.FetchContentBlocks",
		"collection", q.CollectionID, "offset", q.Offset, "limit", q.Limit, "result_id", q.ResultID,
		"ready", f.State == taxii.FetchReady, "count", len(f.Blocks), "err", err)
	return
}

func (rl repoLogging) CountContentBlocks(ctx context.Context, q taxii.BlockQuery) (n int64, err error) {
	n, err = rl.repo.CountContentBlocks(ctx, q)
	rl.log.Log(ctx, rl.logLevel(err), "repo.CountContentBlocks", "collection", q.CollectionID, "count", n, "err", err)
	return
}

func (rl repoLogging) CreateResultSet(ctx context.Context, rs taxii.ResultSet) (out *taxii.ResultSet, err error) {
	out, err = rl.repo.CreateResultSet(ctx, rs)
	rl.log.Log(ctx, rl.logLevel(err), "repo.CreateResultSet", "id", rs.ID, "collection", rs.CollectionID, "err", err)
	return
}

func (rl repoLogging) GetResultSet(ctx context.Context, id string) (rs *taxii.ResultSet, err error) {
	rs, err = rl.repo.GetResultSet(ctx, id)
	rl.log.Log(ctx, rl.logLevel(err), "repo.GetResultSet", "id", id, "err", err)
	return
}

func (rl repoLogging) GetSubscription(ctx context.Context, id string) (sub *taxii.Subscription, err error) {
	sub, err = rl.repo.GetSubscription(ctx, id)
	rl.log.Log(ctx, rl.logLevel(err), "repo.GetSubscription", "id", id, "err", err)
	return
}

func (rl repoLogging) ListSubscriptions(ctx context.Context, serviceID string) (subs []taxii.Subscription, err error) {
	subs, err = rl.repo.ListSubscriptions(ctx, serviceID)
	rl.log.Log(ctx, rl.logLevel(err), "repo.ListSubscriptions", "service", serviceID, "count", len(subs), "err", err)
	return
}

func (rl repoLogging) CreateSubscription(ctx context.Context, sub taxii.Subscription) (out *taxii.Subscription, err error) {
	out, err = rl.repo.CreateSubscription(ctx, sub)
	rl.log.Log(ctx, rl.logLevel(err), "repo.CreateSubscription", "id", sub.ID, "collection", sub.CollectionID, "err", err)
	return
}

func (rl repoLogging) UpdateSubscription(ctx context.Context, sub taxii.Subscription) (err error) {
	err = rl.repo.UpdateSubscription(ctx, sub)
	rl.log.Log(ctx, rl.logLevel(err), "repo.UpdateSubscription", "id", sub.ID, "status", sub.Status, "err", err)
	return
}

func (rl repoLogging) CreateInboxMessage(ctx context.Context, msg taxii.InboxMessage) (out *taxii.InboxMessage, err error) {
	out, err = rl.repo.CreateInboxMessage(ctx, msg)
	rl.log.Log(ctx, rl.logLevel(err), "repo.CreateInboxMessage", "message_id", msg.MessageID, "blocks", msg.ContentBlockCount, "err", err)
	return
}

func (rl repoLogging) CreateContentBlock(ctx context.Context, block taxii.ContentBlock, collectionIDs []int64) (out *taxii.ContentBlock, err error) {
	out, err = rl.repo.CreateContentBlock(ctx, block, collectionIDs)
	rl.log.Log(ctx, rl.logLevel(err), "repo.CreateContentBlock", "binding", block.BindingID, "collections", collectionIDs, "err", err)
	return
}

func (rl repoLogging) logLevel(err error) (lvl slog.Level) {
	switch {
	case err == nil, errors.Is(err, taxii.ErrNotFound):
		lvl = slog.LevelDebug
	default:
		lvl = slog.LevelError
	}
	return
}
