package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/taxii/internal/hooks"
	"github.com/roach88/taxii/internal/taxii"
)

// Reasons a content block is dropped during fan-out.
const (
	DropNotAccepted   = "not_accepted"
	DropNoDestination = "no_destination"
	DropStoreError    = "store_error"
	DropBadTimestamp  = "bad_timestamp"
)

// Inbox ingests the content blocks of an inbox message.
//
// All destination and authorization checks complete before anything is
// written, so a rejected message leaves no trace. After that, ingestion is
// best-effort per block: drops are logged and counted, and the caller always
// receives SUCCESS.
func (e *Engine) Inbox(ctx context.Context, rc Request, req taxii.InboxRequest) (*taxii.StatusMessage, error) {
	if !req.Window.InRange() {
		return nil, NewBadMessage("time window bounds must lie between years 0 and 9999")
	}
	dests, err := e.destinations(ctx, rc, req)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(dests))
	for _, c := range dests {
		names = append(names, c.Name)
	}

	now := e.now().UTC()
	msg := taxii.InboxMessage{
		MessageID:         req.MessageID,
		ServiceID:         rc.Service.ID,
		Raw:               req.Raw,
		Message:           req.Message,
		ContentBlockCount: len(req.Blocks),
		DestinationNames:  names,
		ResultID:          req.ResultID,
		SubscriptionID:    req.SubscriptionID,
		RecordCount:       req.RecordCount,
		PartialCount:      req.PartialCount,
		ExclusiveBegin:    req.Window.Begin,
		InclusiveEnd:      req.Window.End,
		CreatedAt:         now,
	}
	if rc.Service.SaveRawInboxMessages {
		stored, err := e.repo.CreateInboxMessage(ctx, msg)
		if err != nil {
			return nil, fmt.Errorf("create inbox message: %w", err)
		}
		msg = *stored
	}
	e.notifier.Notify(ctx, hooks.Event{
		Kind:         hooks.InboxMessageCreated,
		ServiceID:    rc.Service.ID,
		InboxMessage: &msg,
	})

	log := e.log.With("service", rc.Service.ID, "message_id", req.MessageID)
	for i, block := range req.Blocks {
		e.ingest(ctx, rc, log.With("block", i), dests, msg.ID, block)
	}

	return &taxii.StatusMessage{
		MessageID:    e.NewMessageID(),
		InResponseTo: req.MessageID,
		Type:         taxii.StatusSuccess,
	}, nil
}

// destinations resolves and authorizes the collections a message goes to.
func (e *Engine) destinations(ctx context.Context, rc Request, req taxii.InboxRequest) ([]taxii.Collection, error) {
	var (
		names    []string
		explicit bool
	)
	if rc.Version == taxii.Version10 {
		names, explicit = rc.Service.DestinationCollectionNames, true
	} else {
		supplied := uniqueNames(req.DestinationNames)
		required := rc.Service.DestinationCollectionRequired
		if required != (len(supplied) > 0) {
			acceptable, err := e.availableNames(ctx, rc)
			if err != nil {
				return nil, err
			}
			if required {
				return nil, NewDestinationError("destination collection names are required", acceptable)
			}
			return nil, NewDestinationError("destination collection names are not allowed", acceptable)
		}
		if len(supplied) > 0 {
			names, explicit = supplied, true
		}
	}

	var dests []taxii.Collection
	if explicit {
		for _, name := range names {
			c, err := e.collection(ctx, rc, name)
			if err != nil {
				return nil, err
			}
			dests = append(dests, *c)
		}
	} else {
		all, err := e.repo.ListCollections(ctx, rc.Service.ID)
		if err != nil {
			return nil, fmt.Errorf("list collections: %w", err)
		}
		for _, c := range all {
			if c.Available {
				dests = append(dests, c)
			}
		}
	}

	if rc.Account != nil {
		for _, c := range dests {
			if !rc.Account.CanModify(c.Name) {
				err := NewUnauthorized("account %s may not modify collection %s", rc.Account.Username, c.Name)
				err.Details = taxii.Details{}.Set(taxii.DetailItem, c.Name)
				return nil, err
			}
		}
	}
	return dests, nil
}

// ingest stores one block attached to the destinations that support it.
func (e *Engine) ingest(ctx context.Context, rc Request, log *slog.Logger, dests []taxii.Collection, inboxID int64, b taxii.ContentBlock) {
	log = log.With("binding", b.BindingID, "subtype", b.BindingSubtype)

	if !rc.Service.Accepts(b.BindingID, b.BindingSubtype) {
		log.Warn("content block dropped, binding not accepted by inbox")
		e.metrics.BlockDropped(DropNotAccepted)
		return
	}

	var ids []int64
	for i := range dests {
		if dests[i].Supports(b.BindingID, b.BindingSubtype) {
			ids = append(ids, dests[i].ID)
		}
	}
	if len(dests) > 0 && len(ids) == 0 {
		log.Warn("content block dropped, no destination collection supports binding")
		e.metrics.BlockDropped(DropNoDestination)
		return
	}

	now := e.now().UTC()
	if b.TimestampLabel.IsZero() {
		b.TimestampLabel = now
	}
	if !taxii.InTimestampRange(b.TimestampLabel) {
		log.Warn("content block dropped, timestamp label out of range", "timestamp_label", b.TimestampLabel)
		e.metrics.BlockDropped(DropBadTimestamp)
		return
	}
	b.InboxMessageID = inboxID
	b.CreatedAt = now

	stored, err := e.repo.CreateContentBlock(ctx, b, ids)
	if err != nil {
		log.Error("content block not stored", "error", err)
		e.metrics.BlockDropped(DropStoreError)
		return
	}
	e.metrics.BlockStored()
	log.Debug("content block stored", "block_id", stored.ID, "collections", ids)

	e.notifier.Notify(ctx, hooks.Event{
		Kind:          hooks.ContentBlockCreated,
		ServiceID:     rc.Service.ID,
		ContentBlock:  stored,
		CollectionIDs: ids,
	})
}

// availableNames lists the service's available collection names, the
// acceptable destinations reported on a destination policy violation.
func (e *Engine) availableNames(ctx context.Context, rc Request) ([]string, error) {
	all, err := e.repo.ListCollections(ctx, rc.Service.ID)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	names := make([]string, 0, len(all))
	for _, c := range all {
		if c.Available {
			names = append(names, c.Name)
		}
	}
	return names, nil
}

func uniqueNames(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, n := range in {
		n = taxii.NormalizeName(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
