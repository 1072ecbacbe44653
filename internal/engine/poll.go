package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/taxii/internal/taxii"
)

// PollResult is the outcome of a poll that did not fail: either a page of
// content or a pending handshake telling the caller to come back with the
// result id. Exactly one field is set.
type PollResult struct {
	Response *taxii.PollResponse
	Pending  *taxii.StatusMessage
}

// pollPlan holds the delivery parameters a poll resolved to.
type pollPlan struct {
	bindings     []taxii.ContentBinding
	responseType taxii.ResponseType
	allowAsync   bool
}

// delivery is one page request against a fixed filter.
type delivery struct {
	collection     *taxii.Collection
	subscriptionID string
	bindings       []taxii.ContentBinding
	window         taxii.TimeWindow
	resultID       string
	part           int
	allowAsync     bool
	exactCount     bool
	inResponseTo   string
}

// Poll handles a poll request.
//
// Validation order: subscription policy (1.1 only), collection, dialect
// pollability, delivery parameters, time window. No result set is written
// before all of these pass.
func (e *Engine) Poll(ctx context.Context, rc Request, req taxii.PollRequest) (*PollResult, error) {
	if rc.Version == taxii.Version11 && rc.Service.SubscriptionRequired && req.SubscriptionID == "" {
		return nil, NewDenied("service %s requires a subscription id", rc.Service.ID)
	}

	c, err := e.collection(ctx, rc, req.CollectionName)
	if err != nil {
		return nil, err
	}
	if !rc.Version.CanPoll(c.Kind) {
		return nil, NewNotFound(c.Name, "collection %s is not a data feed", c.Name)
	}

	plan, err := e.planPoll(ctx, rc, c, req)
	if err != nil {
		return nil, err
	}

	if !req.Window.InRange() {
		return nil, NewBadMessage("time window bounds must lie between years 0 and 9999")
	}
	if req.Window.Inverted() {
		return nil, NewFailure("exclusive begin is after inclusive end")
	}
	window := cloneWindow(req.Window)
	if rc.Version == taxii.Version10 && window.End == nil {
		end := e.now().UTC()
		window.End = &end
	}

	d := delivery{
		collection:     c,
		subscriptionID: req.SubscriptionID,
		bindings:       plan.bindings,
		window:         window,
		part:           1,
		allowAsync:     plan.allowAsync,
		exactCount:     rc.Service.CountBlocksInPollResponses,
		inResponseTo:   req.MessageID,
	}

	if plan.responseType == taxii.ResponseCountOnly {
		return e.countOnly(ctx, rc, d)
	}
	return e.deliver(ctx, rc, d)
}

// planPoll resolves bindings and response type. A subscription locks the
// delivery shape; inline parameters are then ignored.
func (e *Engine) planPoll(ctx context.Context, rc Request, c *taxii.Collection, req taxii.PollRequest) (pollPlan, error) {
	if req.SubscriptionID != "" {
		if req.Params != nil {
			e.log.Warn("poll carries both subscription id and poll parameters, using subscription",
				"subscription_id", req.SubscriptionID, "collection", c.Name)
		}
		sub, err := e.repo.GetSubscription(ctx, req.SubscriptionID)
		if errors.Is(err, taxii.ErrNotFound) {
			return pollPlan{}, NewNotFound(req.SubscriptionID, "subscription %s not found", req.SubscriptionID)
		}
		if err != nil {
			return pollPlan{}, fmt.Errorf("get subscription %s: %w", req.SubscriptionID, err)
		}
		if sub.CollectionID != c.ID {
			return pollPlan{}, NewNotFound(req.SubscriptionID,
				"subscription %s does not belong to collection %s", req.SubscriptionID, c.Name)
		}
		rt := sub.Params.ResponseType
		if rt == "" {
			rt = taxii.ResponseFull
		}
		return pollPlan{bindings: sub.Params.Bindings, responseType: rt}, nil
	}

	var params taxii.PollParameters
	if req.Params != nil {
		params = *req.Params
	}
	if rc.Version == taxii.Version10 {
		params = taxii.PollParameters{Bindings: withoutSubtypes(params.Bindings)}
	}

	matched, err := MatchBindings(params.Bindings, c)
	if err != nil {
		return pollPlan{}, err
	}
	rt := params.ResponseType
	if rt == "" {
		rt = taxii.ResponseFull
	}
	return pollPlan{bindings: matched, responseType: rt, allowAsync: params.AllowAsync}, nil
}

// countOnly answers with the number of matching blocks and no content.
func (e *Engine) countOnly(ctx context.Context, rc Request, d delivery) (*PollResult, error) {
	count, err := e.recordCount(ctx, rc, d)
	if err != nil {
		return nil, err
	}
	return &PollResult{Response: e.pollResponse(d, count, nil)}, nil
}

// deliver fetches one page. A not-ready repository either fails the poll or
// turns it into a pending handshake, depending on d.allowAsync.
func (e *Engine) deliver(ctx context.Context, rc Request, d delivery) (*PollResult, error) {
	size := rc.Service.PageSize()
	q := taxii.BlockQuery{
		CollectionID: d.collection.ID,
		Window:       d.window,
		Bindings:     d.bindings,
		Offset:       (d.part - 1) * size,
		Limit:        size,
		ResultID:     d.resultID,
	}
	paged := rc.Version.SupportsFulfillment()
	if !paged {
		q.Offset, q.Limit = 0, 0
	}

	fetch, err := e.repo.FetchContentBlocks(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("fetch content blocks: %w", err)
	}

	if fetch.State == taxii.FetchNotReady {
		if !d.allowAsync {
			return nil, NewFailure("content for collection %s is not ready and asynchronous delivery was not allowed", d.collection.Name)
		}
		resultID, err := e.ensureResultSet(ctx, d)
		if err != nil {
			return nil, err
		}
		e.log.Debug("poll pending", "collection", d.collection.Name, "result_id", resultID)
		return &PollResult{Pending: &taxii.StatusMessage{
			MessageID:    e.NewMessageID(),
			InResponseTo: d.inResponseTo,
			Type:         taxii.StatusPending,
			Message:      "content is being prepared, retry with poll fulfillment",
			Details: taxii.Details{}.
				SetInt(taxii.DetailEstimatedWait, rc.Service.WaitTime).
				Set(taxii.DetailResultID, resultID).
				SetBool(taxii.DetailWillPush, rc.Service.CanPush),
		}}, nil
	}

	var (
		count *taxii.RecordCount
		more  bool
	)
	if paged {
		if d.exactCount {
			total, err := e.repo.CountContentBlocks(ctx, q)
			if err != nil {
				return nil, fmt.Errorf("count content blocks: %w", err)
			}
			count = capCount(total, rc.Service.CountCap())
			more = total > int64(d.part)*int64(size)
		} else {
			more = len(fetch.Blocks) == size
		}
	}

	if more && d.resultID == "" {
		id, err := e.ensureResultSet(ctx, d)
		if err != nil {
			return nil, err
		}
		d.resultID = id
	}

	resp := e.pollResponse(d, count, fetch.Blocks)
	resp.More = more
	return &PollResult{Response: resp}, nil
}

func (e *Engine) recordCount(ctx context.Context, rc Request, d delivery) (*taxii.RecordCount, error) {
	total, err := e.repo.CountContentBlocks(ctx, taxii.BlockQuery{
		CollectionID: d.collection.ID,
		Window:       d.window,
		Bindings:     d.bindings,
		ResultID:     d.resultID,
	})
	if err != nil {
		return nil, fmt.Errorf("count content blocks: %w", err)
	}
	return capCount(total, rc.Service.CountCap()), nil
}

// ensureResultSet returns the delivery's result id, freezing a new result
// set when there is none yet.
func (e *Engine) ensureResultSet(ctx context.Context, d delivery) (string, error) {
	if d.resultID != "" {
		return d.resultID, nil
	}
	rs, err := e.resultSets.Freeze(ctx, d.collection.ID, d.bindings, d.window)
	if err != nil {
		return "", err
	}
	return rs.ID, nil
}

func (e *Engine) pollResponse(d delivery, count *taxii.RecordCount, blocks []taxii.ContentBlock) *taxii.PollResponse {
	return &taxii.PollResponse{
		MessageID:      e.NewMessageID(),
		InResponseTo:   d.inResponseTo,
		CollectionName: d.collection.Name,
		SubscriptionID: d.subscriptionID,
		Window:         d.window,
		ResultID:       d.resultID,
		ResultPart:     d.part,
		RecordCount:    count,
		Blocks:         blocks,
	}
}

func capCount(total, limit int64) *taxii.RecordCount {
	if total > limit {
		return &taxii.RecordCount{Count: limit, Partial: true}
	}
	return &taxii.RecordCount{Count: total}
}

func withoutSubtypes(in []taxii.ContentBinding) []taxii.ContentBinding {
	if in == nil {
		return nil
	}
	out := make([]taxii.ContentBinding, len(in))
	for i, b := range in {
		out[i] = taxii.ContentBinding{ID: b.ID}
	}
	return out
}
