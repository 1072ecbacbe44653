package taxii

// MessageKind discriminates the envelope of requests and replies.
type MessageKind string

const (
	MessagePollRequest                  MessageKind = "poll_request"
	MessagePollFulfillmentRequest       MessageKind = "poll_fulfillment_request"
	MessageInbox                        MessageKind = "inbox_message"
	MessageSubscriptionRequest          MessageKind = "subscription_management_request"
	MessageCollectionInformationRequest MessageKind = "collection_information_request"

	MessagePollResponse                  MessageKind = "poll_response"
	MessageStatus                        MessageKind = "status_message"
	MessageSubscriptionResponse          MessageKind = "subscription_management_response"
	MessageCollectionInformationResponse MessageKind = "collection_information_response"
)

// PollParameters are the delivery parameters a consumer supplies inline.
type PollParameters struct {
	ResponseType ResponseType     `json:"response_type,omitempty"`
	Bindings     []ContentBinding `json:"content_bindings,omitempty"`
	AllowAsync   bool             `json:"allow_asynch,omitempty"`
}

// PollRequest asks for content from one collection.
type PollRequest struct {
	MessageID      string          `json:"message_id"`
	CollectionName string          `json:"collection_name"`
	SubscriptionID string          `json:"subscription_id,omitempty"`
	Window         TimeWindow      `json:"window"`
	Params         *PollParameters `json:"poll_parameters,omitempty"`
}

// PollFulfillmentRequest asks for one page of a frozen result set.
type PollFulfillmentRequest struct {
	MessageID      string `json:"message_id"`
	CollectionName string `json:"collection_name"`
	ResultID       string `json:"result_id"`
	ResultPart     int    `json:"result_part_number"`
}

// InboxRequest pushes content blocks into collections.
type InboxRequest struct {
	MessageID        string         `json:"message_id"`
	Message          string         `json:"message,omitempty"`
	DestinationNames []string       `json:"destination_collection_names,omitempty"`
	ResultID         string         `json:"result_id,omitempty"`
	SubscriptionID   string         `json:"subscription_id,omitempty"`
	RecordCount      *int64         `json:"record_count,omitempty"`
	PartialCount     bool           `json:"partial_count,omitempty"`
	Window           TimeWindow     `json:"window"`
	Blocks           []ContentBlock `json:"content_blocks,omitempty"`
	Raw              []byte         `json:"-"`
}

// PushParameters describe where a server should deliver pushed content. They
// are opaque to the engines and echoed back.
type PushParameters struct {
	ProtocolBinding string `json:"protocol_binding"`
	Address         string `json:"address"`
	MessageBinding  string `json:"message_binding"`
}

// SubscriptionRequest manages one subscription lifecycle action.
type SubscriptionRequest struct {
	MessageID      string              `json:"message_id"`
	Action         Action              `json:"action"`
	CollectionName string              `json:"collection_name"`
	SubscriptionID string              `json:"subscription_id,omitempty"`
	Params         *SubscriptionParams `json:"subscription_parameters,omitempty"`
	PushParameters *PushParameters     `json:"push_parameters,omitempty"`
}

// CollectionInformationRequest lists the collections of a service.
type CollectionInformationRequest struct {
	MessageID string `json:"message_id"`
}

// Envelope carries exactly one request, selected by Kind.
type Envelope struct {
	Kind                  MessageKind                   `json:"kind"`
	Poll                  *PollRequest                  `json:"poll,omitempty"`
	PollFulfillment       *PollFulfillmentRequest       `json:"poll_fulfillment,omitempty"`
	Inbox                 *InboxRequest                 `json:"inbox,omitempty"`
	Subscription          *SubscriptionRequest          `json:"subscription,omitempty"`
	CollectionInformation *CollectionInformationRequest `json:"collection_information,omitempty"`
}

// MessageID returns the id of whichever request the envelope carries.
func (e *Envelope) MessageID() string {
	switch {
	case e.Poll != nil:
		return e.Poll.MessageID
	case e.PollFulfillment != nil:
		return e.PollFulfillment.MessageID
	case e.Inbox != nil:
		return e.Inbox.MessageID
	case e.Subscription != nil:
		return e.Subscription.MessageID
	case e.CollectionInformation != nil:
		return e.CollectionInformation.MessageID
	}
	return ""
}

// RecordCount is the number of matching blocks, with Partial set when the
// reported count was capped.
type RecordCount struct {
	Count   int64 `json:"count"`
	Partial bool  `json:"partial,omitempty"`
}

// PollResponse is one page of content.
type PollResponse struct {
	MessageID      string         `json:"message_id"`
	InResponseTo   string         `json:"in_response_to"`
	CollectionName string         `json:"collection_name"`
	SubscriptionID string         `json:"subscription_id,omitempty"`
	Window         TimeWindow     `json:"window"`
	More           bool           `json:"more"`
	ResultID       string         `json:"result_id,omitempty"`
	ResultPart     int            `json:"result_part_number"`
	RecordCount    *RecordCount   `json:"record_count,omitempty"`
	Blocks         []ContentBlock `json:"content_blocks,omitempty"`
}

// StatusMessage reports a terminal or pending outcome.
type StatusMessage struct {
	MessageID    string     `json:"message_id"`
	InResponseTo string     `json:"in_response_to"`
	Type         StatusType `json:"status_type"`
	Message      string     `json:"message,omitempty"`
	Details      Details    `json:"details,omitempty"`
}

// SubscriptionInstance is one subscription as reported to a consumer.
type SubscriptionInstance struct {
	SubscriptionID string              `json:"subscription_id"`
	Status         SubscriptionStatus  `json:"status"`
	Params         *SubscriptionParams `json:"subscription_parameters,omitempty"`
	PushParameters *PushParameters     `json:"push_parameters,omitempty"`
	PollInstances  []ServiceInstance   `json:"poll_instances,omitempty"`
}

// SubscriptionResponse answers a subscription management request.
type SubscriptionResponse struct {
	MessageID      string                 `json:"message_id"`
	InResponseTo   string                 `json:"in_response_to"`
	CollectionName string                 `json:"collection_name"`
	Message        string                 `json:"message,omitempty"`
	Instances      []SubscriptionInstance `json:"subscription_instances"`
}

// CollectionInformation describes one collection and how to reach it.
type CollectionInformation struct {
	Name                  string            `json:"collection_name"`
	Kind                  CollectionKind    `json:"collection_type"`
	Description           string            `json:"description,omitempty"`
	Available             bool              `json:"available"`
	Volume                int64             `json:"collection_volume"`
	AcceptAllContent      bool              `json:"accept_all_content"`
	SupportedContent      []ContentBinding  `json:"supported_contents,omitempty"`
	PollInstances         []ServiceInstance `json:"polling_service_instances,omitempty"`
	InboxInstances        []ServiceInstance `json:"receiving_inbox_services,omitempty"`
	SubscriptionInstances []ServiceInstance `json:"subscription_methods,omitempty"`
}

// CollectionInformationResponse lists a service's collections.
type CollectionInformationResponse struct {
	MessageID    string                  `json:"message_id"`
	InResponseTo string                  `json:"in_response_to"`
	Collections  []CollectionInformation `json:"collections"`
}

// Reply carries exactly one response, selected by Kind.
type Reply struct {
	Kind                  MessageKind                    `json:"kind"`
	Poll                  *PollResponse                  `json:"poll,omitempty"`
	Status                *StatusMessage                 `json:"status,omitempty"`
	Subscription          *SubscriptionResponse          `json:"subscription,omitempty"`
	CollectionInformation *CollectionInformationResponse `json:"collection_information,omitempty"`
}
