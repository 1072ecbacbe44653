package engine

import (
	"context"

	"github.com/roach88/taxii/internal/taxii"
)

// PollFulfillment delivers one page of a previously frozen result set. The
// filter comes from the result set only; the request contributes nothing
// but the page number.
func (e *Engine) PollFulfillment(ctx context.Context, rc Request, req taxii.PollFulfillmentRequest) (*PollResult, error) {
	if !rc.Version.SupportsFulfillment() {
		return nil, NewFailure("poll fulfillment is not supported in TAXII %s", rc.Version)
	}
	if req.ResultPart < 1 {
		return nil, NewBadMessage("result part number must be at least 1, got %d", req.ResultPart)
	}

	rs, err := e.resultSets.Resolve(ctx, req.ResultID)
	if err != nil {
		return nil, err
	}
	c, err := e.collection(ctx, rc, req.CollectionName)
	if err != nil {
		return nil, err
	}
	if rs.CollectionID != c.ID {
		return nil, NewNotFound(req.ResultID, "result set %s does not belong to collection %s", req.ResultID, c.Name)
	}

	return e.deliver(ctx, rc, delivery{
		collection:   c,
		bindings:     rs.Bindings,
		window:       rs.Window,
		resultID:     rs.ID,
		part:         req.ResultPart,
		allowAsync:   true,
		exactCount:   true,
		inResponseTo: req.MessageID,
	})
}
