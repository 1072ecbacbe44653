// Package dispatch routes decoded TAXII requests to the engine and turns
// every outcome, including failures, into a reply.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/taxii/internal/engine"
	"github.com/roach88/taxii/internal/metrics"
	"github.com/roach88/taxii/internal/taxii"
)

// ServiceLookup resolves provisioned services.
type ServiceLookup interface {
	GetService(ctx context.Context, id string) (*taxii.ServiceConfig, error)
}

// Request is one inbound message addressed to a service.
type Request struct {
	ServiceID string
	Version   string // "1.0", "1.1" or a message/services binding URN
	Account   *taxii.Account
	Envelope  taxii.Envelope
	Raw       []byte // original encoding, kept for inbox audit records
}

// Dispatcher is transport agnostic: an HTTP or CLI front end decodes the
// envelope and hands it here.
type Dispatcher struct {
	engine   *engine.Engine
	services ServiceLookup
	metrics  *metrics.Recorder
	log      *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics sets the recorder counting dispatched requests.
func WithMetrics(m *metrics.Recorder) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = log }
}

// New creates a dispatcher.
func New(eng *engine.Engine, services ServiceLookup, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		engine:   eng,
		services: services,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle processes one request. The returned reply is never nil when the
// error is nil; the error is reserved for a cancelled context.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (*taxii.Reply, error) {
	reply, err := d.route(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		reply = d.statusReply(req, err)
	}

	status := string(taxii.StatusSuccess)
	if reply.Status != nil {
		status = string(reply.Status.Type)
	}
	d.metrics.Request(string(req.Envelope.Kind), status)
	return reply, nil
}

func (d *Dispatcher) route(ctx context.Context, req Request) (*taxii.Reply, error) {
	svc, err := d.services.GetService(ctx, req.ServiceID)
	if errors.Is(err, taxii.ErrNotFound) {
		return nil, engine.NewNotFound(req.ServiceID, "service %s not found", req.ServiceID)
	}
	if err != nil {
		return nil, fmt.Errorf("get service %s: %w", req.ServiceID, err)
	}
	if !svc.Available {
		return nil, engine.NewNotFound(req.ServiceID, "service %s is not available", req.ServiceID)
	}

	version, err := taxii.ParseVersion(req.Version)
	if err != nil {
		return nil, engine.NewBadMessage("unsupported version %q", req.Version)
	}

	if svc.AuthenticationRequired && req.Account == nil {
		return nil, engine.NewUnauthorized("service %s requires authentication", svc.ID)
	}

	env := req.Envelope
	if !svc.Handles(env.Kind, version) {
		return nil, engine.NewBadMessage("service %s (%s) does not handle %s", svc.ID, svc.Type, env.Kind)
	}

	rc := engine.Request{Version: version, Service: *svc, Account: req.Account}
	log := d.log.With("service", svc.ID, "kind", env.Kind, "version", version.String())

	switch env.Kind {
	case taxii.MessagePollRequest:
		if env.Poll == nil {
			return nil, missingBody(env.Kind)
		}
		res, err := d.engine.Poll(ctx, rc, *env.Poll)
		if err != nil {
			return nil, err
		}
		return pollReply(res), nil

	case taxii.MessagePollFulfillmentRequest:
		if env.PollFulfillment == nil {
			return nil, missingBody(env.Kind)
		}
		res, err := d.engine.PollFulfillment(ctx, rc, *env.PollFulfillment)
		if err != nil {
			return nil, err
		}
		return pollReply(res), nil

	case taxii.MessageInbox:
		if env.Inbox == nil {
			return nil, missingBody(env.Kind)
		}
		in := *env.Inbox
		in.Raw = req.Raw
		status, err := d.engine.Inbox(ctx, rc, in)
		if err != nil {
			return nil, err
		}
		log.Debug("inbox accepted", "message_id", in.MessageID, "blocks", len(in.Blocks))
		return &taxii.Reply{Kind: taxii.MessageStatus, Status: status}, nil

	case taxii.MessageSubscriptionRequest:
		if env.Subscription == nil {
			return nil, missingBody(env.Kind)
		}
		resp, err := d.engine.ManageSubscription(ctx, rc, *env.Subscription)
		if err != nil {
			return nil, err
		}
		return &taxii.Reply{Kind: taxii.MessageSubscriptionResponse, Subscription: resp}, nil

	case taxii.MessageCollectionInformationRequest:
		if env.CollectionInformation == nil {
			return nil, missingBody(env.Kind)
		}
		resp, err := d.engine.CollectionInformation(ctx, rc, *env.CollectionInformation)
		if err != nil {
			return nil, err
		}
		return &taxii.Reply{Kind: taxii.MessageCollectionInformationResponse, CollectionInformation: resp}, nil
	}
	// Handles rejects unknown kinds.
	return nil, engine.NewBadMessage("unknown message kind %q", env.Kind)
}

// statusReply converts err into a status message answering the request.
// Errors that carry no status are logged and reported as FAILURE.
func (d *Dispatcher) statusReply(req Request, err error) *taxii.Reply {
	se, ok := engine.AsStatusError(err)
	if !ok {
		d.log.Error("request failed", "service", req.ServiceID, "kind", req.Envelope.Kind, "error", err)
		se = engine.NewFailure("internal error")
	}
	return &taxii.Reply{
		Kind:   taxii.MessageStatus,
		Status: se.StatusMessage(d.engine.NewMessageID(), req.Envelope.MessageID()),
	}
}

func pollReply(res *engine.PollResult) *taxii.Reply {
	if res.Pending != nil {
		return &taxii.Reply{Kind: taxii.MessageStatus, Status: res.Pending}
	}
	return &taxii.Reply{Kind: taxii.MessagePollResponse, Poll: res.Response}
}

func missingBody(kind taxii.MessageKind) *engine.StatusError {
	return engine.NewBadMessage("%s envelope carries no request body", kind)
}
