package taxii

import "time"

// CollectionKind distinguishes append-only feeds from static sets.
type CollectionKind string

const (
	KindDataFeed CollectionKind = "DATA_FEED"
	KindDataSet  CollectionKind = "DATA_SET"
)

// Valid reports whether k is a known collection kind.
func (k CollectionKind) Valid() bool {
	return k == KindDataFeed || k == KindDataSet
}

// ServiceType identifies what a service endpoint does.
type ServiceType string

const (
	ServiceDiscovery            ServiceType = "DISCOVERY"
	ServiceInbox                ServiceType = "INBOX"
	ServicePoll                 ServiceType = "POLL"
	ServiceCollectionManagement ServiceType = "COLLECTION_MANAGEMENT"
	ServiceFeedManagement       ServiceType = "FEED_MANAGEMENT"
)

// Valid reports whether t is a known service type.
func (t ServiceType) Valid() bool {
	switch t {
	case ServiceDiscovery, ServiceInbox, ServicePoll, ServiceCollectionManagement, ServiceFeedManagement:
		return true
	}
	return false
}

// ResponseType selects full content or counts only.
type ResponseType string

const (
	ResponseFull      ResponseType = "FULL"
	ResponseCountOnly ResponseType = "COUNT_ONLY"
)

// SubscriptionStatus is the lifecycle state of a subscription.
// Unsubscribed is terminal.
type SubscriptionStatus string

const (
	SubscriptionActive       SubscriptionStatus = "ACTIVE"
	SubscriptionPaused       SubscriptionStatus = "PAUSED"
	SubscriptionUnsubscribed SubscriptionStatus = "UNSUBSCRIBED"
)

// Action is a subscription management action.
type Action string

const (
	ActionSubscribe   Action = "SUBSCRIBE"
	ActionUnsubscribe Action = "UNSUBSCRIBE"
	ActionPause       Action = "PAUSE"
	ActionResume      Action = "RESUME"
	ActionStatus      Action = "STATUS"
)

// ContentBinding is a payload format id plus the subtypes it is restricted to.
// An empty subtype list means subtype-unrestricted.
type ContentBinding struct {
	ID       string   `json:"binding_id" yaml:"binding_id"`
	Subtypes []string `json:"subtypes,omitempty" yaml:"subtypes,omitempty"`
}

// Unrestricted reports whether the binding accepts every subtype.
func (b ContentBinding) Unrestricted() bool { return len(b.Subtypes) == 0 }

// HasSubtype reports whether s is listed among the binding's subtypes.
func (b ContentBinding) HasSubtype(s string) bool {
	for _, st := range b.Subtypes {
		if st == s {
			return true
		}
	}
	return false
}

// BindingIDs returns only the ids of the given bindings, in order.
func BindingIDs(bindings []ContentBinding) []string {
	ids := make([]string, 0, len(bindings))
	for _, b := range bindings {
		ids = append(ids, b.ID)
	}
	return ids
}

// Collection is a named grouping of content blocks served by one or more
// services.
type Collection struct {
	ID               int64            `json:"id"`
	Name             string           `json:"name"`
	Description      string           `json:"description,omitempty"`
	Kind             CollectionKind   `json:"kind"`
	Available        bool             `json:"available"`
	AcceptAllContent bool             `json:"accept_all_content"`
	SupportedContent []ContentBinding `json:"supported_content,omitempty"`
	Volume           int64            `json:"volume"`
}

// Supports reports whether a block tagged with binding id and subtype may be
// stored in the collection. A collection that neither accepts everything nor
// lists any binding accepts nothing.
func (c *Collection) Supports(bindingID, subtype string) bool {
	if c.AcceptAllContent {
		return true
	}
	for _, supported := range c.SupportedContent {
		if supported.ID != bindingID {
			continue
		}
		if subtype == "" || supported.Unrestricted() || supported.HasSubtype(subtype) {
			return true
		}
	}
	return false
}

// TimeWindow bounds content by timestamp label: Begin is exclusive, End is
// inclusive. Either bound may be nil.
type TimeWindow struct {
	Begin *time.Time `json:"exclusive_begin,omitempty"`
	End   *time.Time `json:"inclusive_end,omitempty"`
}

// Inverted reports whether both bounds are set and Begin is after End.
func (w TimeWindow) Inverted() bool {
	return w.Begin != nil && w.End != nil && w.Begin.After(*w.End)
}

// InRange reports whether every set bound lies within the timestamp range.
func (w TimeWindow) InRange() bool {
	return (w.Begin == nil || InTimestampRange(*w.Begin)) &&
		(w.End == nil || InTimestampRange(*w.End))
}

// Timestamps are representable from the first instant of year 0 to the last
// instant of year 9999.
var (
	MinTimestamp = time.Date(0, time.January, 1, 0, 0, 0, 0, time.UTC)
	MaxTimestamp = time.Date(9999, time.December, 31, 23, 59, 59, 999999999, time.UTC)
)

// InTimestampRange reports whether t lies within MinTimestamp..MaxTimestamp.
func InTimestampRange(t time.Time) bool {
	return !t.Before(MinTimestamp) && !t.After(MaxTimestamp)
}

// ContentBlock is an opaque payload tagged with a single binding.
type ContentBlock struct {
	ID             int64     `json:"id,omitempty"`
	BindingID      string    `json:"binding_id"`
	BindingSubtype string    `json:"binding_subtype,omitempty"`
	Content        []byte    `json:"content"`
	TimestampLabel time.Time `json:"timestamp_label"`
	Message        string    `json:"message,omitempty"`
	InboxMessageID int64     `json:"inbox_message_id,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

// InboxMessage is the audit record of one ingest call.
type InboxMessage struct {
	ID                int64      `json:"id,omitempty"`
	MessageID         string     `json:"message_id"`
	ServiceID         string     `json:"service_id"`
	Raw               []byte     `json:"raw,omitempty"`
	Message           string     `json:"message,omitempty"`
	ContentBlockCount int        `json:"content_block_count"`
	DestinationNames  []string   `json:"destination_collections"`
	ResultID          string     `json:"result_id,omitempty"`
	SubscriptionID    string     `json:"subscription_id,omitempty"`
	RecordCount       *int64     `json:"record_count,omitempty"`
	PartialCount      bool       `json:"partial_count,omitempty"`
	ExclusiveBegin    *time.Time `json:"exclusive_begin,omitempty"`
	InclusiveEnd      *time.Time `json:"inclusive_end,omitempty"`
	CreatedAt         time.Time  `json:"created_at,omitempty"`
}

// ResultSet freezes the filter of a paginated or deferred poll.
type ResultSet struct {
	ID           string           `json:"id"`
	CollectionID int64            `json:"collection_id"`
	Bindings     []ContentBinding `json:"bindings,omitempty"`
	Window       TimeWindow       `json:"window"`
	CreatedAt    time.Time        `json:"created_at,omitempty"`
}

// SubscriptionParams are the delivery parameters frozen at subscribe time.
type SubscriptionParams struct {
	ResponseType ResponseType     `json:"response_type"`
	Bindings     []ContentBinding `json:"content_bindings,omitempty"`
}

// Subscription is a standing query against one collection.
type Subscription struct {
	ID           string             `json:"subscription_id"`
	CollectionID int64              `json:"collection_id"`
	ServiceID    string             `json:"service_id"`
	Status       SubscriptionStatus `json:"status"`
	Params       SubscriptionParams `json:"params"`
	CreatedAt    time.Time          `json:"created_at,omitempty"`
}

// ServiceInstance describes an endpoint at which a service can be reached.
type ServiceInstance struct {
	ServiceID       string   `json:"service_id,omitempty"`
	ProtocolBinding string   `json:"protocol_binding"`
	Address         string   `json:"address"`
	MessageBindings []string `json:"message_bindings,omitempty"`
}
