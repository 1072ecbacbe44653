package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/taxii/internal/hooks"
	"github.com/roach88/taxii/internal/taxii"
)

// ManageSubscription handles a subscription management request.
//
// The action is checked against the dialect's whitelist before anything
// else. Every returned instance is enriched with the poll services currently
// attached to the collection.
func (e *Engine) ManageSubscription(ctx context.Context, rc Request, req taxii.SubscriptionRequest) (*taxii.SubscriptionResponse, error) {
	if !rc.Version.AllowsAction(req.Action) {
		err := NewBadMessage("action %q is not supported in TAXII %s", req.Action, rc.Version)
		err.Details = taxii.Details{}.Set(taxii.DetailItem, string(req.Action))
		return nil, err
	}

	c, err := e.collection(ctx, rc, req.CollectionName)
	if err != nil {
		return nil, err
	}

	var instances []taxii.SubscriptionInstance
	switch req.Action {
	case taxii.ActionSubscribe:
		inst, err := e.subscribe(ctx, rc, c, req)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	case taxii.ActionUnsubscribe:
		inst, err := e.unsubscribe(ctx, c, req)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	case taxii.ActionPause, taxii.ActionResume:
		inst, err := e.transition(ctx, c, req)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	case taxii.ActionStatus:
		instances, err = e.status(ctx, rc, c, req)
		if err != nil {
			return nil, err
		}
	}

	polls, err := e.repo.ServiceInstances(ctx, c.ID, taxii.ServicePoll)
	if err != nil {
		return nil, fmt.Errorf("poll instances for %s: %w", c.Name, err)
	}
	for i := range instances {
		instances[i].PollInstances = polls
	}
	if instances == nil {
		instances = []taxii.SubscriptionInstance{}
	}

	return &taxii.SubscriptionResponse{
		MessageID:      e.NewMessageID(),
		InResponseTo:   req.MessageID,
		CollectionName: c.Name,
		Message:        rc.Service.SubscriptionMessage,
		Instances:      instances,
	}, nil
}

func (e *Engine) subscribe(ctx context.Context, rc Request, c *taxii.Collection, req taxii.SubscriptionRequest) (taxii.SubscriptionInstance, error) {
	var params taxii.SubscriptionParams
	if req.Params != nil {
		params = *req.Params
	}
	if rc.Version == taxii.Version10 {
		params = taxii.SubscriptionParams{Bindings: withoutSubtypes(params.Bindings)}
	}

	matched, err := MatchBindings(params.Bindings, c)
	if err != nil {
		return taxii.SubscriptionInstance{}, err
	}
	rt := params.ResponseType
	if rt == "" {
		rt = taxii.ResponseFull
	}

	created, err := e.repo.CreateSubscription(ctx, taxii.Subscription{
		ID:           e.ids.Generate(),
		CollectionID: c.ID,
		ServiceID:    rc.Service.ID,
		Status:       taxii.SubscriptionActive,
		Params:       taxii.SubscriptionParams{ResponseType: rt, Bindings: matched},
		CreatedAt:    e.now().UTC(),
	})
	if err != nil {
		return taxii.SubscriptionInstance{}, fmt.Errorf("create subscription: %w", err)
	}
	e.log.Debug("subscription created", "subscription_id", created.ID, "collection", c.Name)

	e.notifier.Notify(ctx, hooks.Event{
		Kind:         hooks.SubscriptionCreated,
		ServiceID:    rc.Service.ID,
		Subscription: created,
	})

	inst := instanceOf(created)
	inst.PushParameters = req.PushParameters
	return inst, nil
}

// unsubscribe is idempotent: an unknown id yields a synthesized
// unsubscribed instance.
func (e *Engine) unsubscribe(ctx context.Context, c *taxii.Collection, req taxii.SubscriptionRequest) (taxii.SubscriptionInstance, error) {
	if req.SubscriptionID == "" {
		return taxii.SubscriptionInstance{}, NewBadMessage("subscription id is required for %s", req.Action)
	}

	sub, err := e.repo.GetSubscription(ctx, req.SubscriptionID)
	if errors.Is(err, taxii.ErrNotFound) {
		return taxii.SubscriptionInstance{
			SubscriptionID: req.SubscriptionID,
			Status:         taxii.SubscriptionUnsubscribed,
		}, nil
	}
	if err != nil {
		return taxii.SubscriptionInstance{}, fmt.Errorf("get subscription %s: %w", req.SubscriptionID, err)
	}
	if sub.CollectionID != c.ID {
		return taxii.SubscriptionInstance{}, subscriptionNotFound(req.SubscriptionID, c)
	}

	if sub.Status != taxii.SubscriptionUnsubscribed {
		if err := e.setStatus(ctx, sub, taxii.SubscriptionUnsubscribed); err != nil {
			return taxii.SubscriptionInstance{}, err
		}
	}
	return instanceOf(sub), nil
}

// transition applies Pause or Resume. Redundant transitions and transitions
// out of the terminal state write nothing.
func (e *Engine) transition(ctx context.Context, c *taxii.Collection, req taxii.SubscriptionRequest) (taxii.SubscriptionInstance, error) {
	if req.SubscriptionID == "" {
		return taxii.SubscriptionInstance{}, NewBadMessage("subscription id is required for %s", req.Action)
	}
	sub, err := e.ownedSubscription(ctx, c, req.SubscriptionID)
	if err != nil {
		return taxii.SubscriptionInstance{}, err
	}

	var next taxii.SubscriptionStatus
	switch {
	case sub.Status == taxii.SubscriptionUnsubscribed:
	case req.Action == taxii.ActionPause && sub.Status != taxii.SubscriptionPaused:
		next = taxii.SubscriptionPaused
	case req.Action == taxii.ActionResume && sub.Status == taxii.SubscriptionPaused:
		next = taxii.SubscriptionActive
	}
	if next != "" {
		if err := e.setStatus(ctx, sub, next); err != nil {
			return taxii.SubscriptionInstance{}, err
		}
	}
	return instanceOf(sub), nil
}

func (e *Engine) status(ctx context.Context, rc Request, c *taxii.Collection, req taxii.SubscriptionRequest) ([]taxii.SubscriptionInstance, error) {
	if req.SubscriptionID != "" {
		sub, err := e.ownedSubscription(ctx, c, req.SubscriptionID)
		if err != nil {
			return nil, err
		}
		return []taxii.SubscriptionInstance{instanceOf(sub)}, nil
	}

	subs, err := e.repo.ListSubscriptions(ctx, rc.Service.ID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	var out []taxii.SubscriptionInstance
	for i := range subs {
		if subs[i].CollectionID == c.ID {
			out = append(out, instanceOf(&subs[i]))
		}
	}
	return out, nil
}

// ownedSubscription returns the subscription if it exists and belongs to c.
func (e *Engine) ownedSubscription(ctx context.Context, c *taxii.Collection, id string) (*taxii.Subscription, error) {
	sub, err := e.repo.GetSubscription(ctx, id)
	if errors.Is(err, taxii.ErrNotFound) {
		return nil, subscriptionNotFound(id, c)
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", id, err)
	}
	if sub.CollectionID != c.ID {
		return nil, subscriptionNotFound(id, c)
	}
	return sub, nil
}

func (e *Engine) setStatus(ctx context.Context, sub *taxii.Subscription, status taxii.SubscriptionStatus) error {
	prev := sub.Status
	sub.Status = status
	if err := e.repo.UpdateSubscription(ctx, *sub); err != nil {
		return fmt.Errorf("update subscription %s: %w", sub.ID, err)
	}
	e.log.Debug("subscription transition", "subscription_id", sub.ID, "from", prev, "to", status)
	return nil
}

func subscriptionNotFound(id string, c *taxii.Collection) *StatusError {
	return NewNotFound(id, "subscription %s not found in collection %s", id, c.Name)
}

func instanceOf(sub *taxii.Subscription) taxii.SubscriptionInstance {
	params := sub.Params
	return taxii.SubscriptionInstance{
		SubscriptionID: sub.ID,
		Status:         sub.Status,
		Params:         &params,
	}
}
