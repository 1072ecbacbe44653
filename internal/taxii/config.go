package taxii

// Service property defaults.
const (
	DefaultMaxResultSize  = 1_000_000
	DefaultMaxResultCount = 10_000_000
	DefaultWaitTime       = 300
)

// ServiceConfig is a provisioned service together with every property the
// engines read while handling a request against it.
type ServiceConfig struct {
	ID              string      `json:"id"`
	Type            ServiceType `json:"type"`
	Description     string      `json:"description,omitempty"`
	Available       bool        `json:"available"`
	Address         string      `json:"address,omitempty"`
	ProtocolBinding string      `json:"protocol_binding,omitempty"`
	MessageBindings []string    `json:"message_bindings,omitempty"`

	AuthenticationRequired bool `json:"authentication_required"`

	// Poll
	MaxResultSize              int   `json:"max_result_size"`
	MaxResultCount             int64 `json:"max_result_count"`
	CountBlocksInPollResponses bool  `json:"count_blocks_in_poll_responses"`
	WaitTime                   int   `json:"wait_time"`
	CanPush                    bool  `json:"can_push"`
	SubscriptionRequired       bool  `json:"subscription_required"`

	// Inbox
	DestinationCollectionRequired bool             `json:"destination_collection_required"`
	DestinationCollectionNames    []string         `json:"destination_collection_names,omitempty"`
	AcceptedContent               []ContentBinding `json:"accepted_content,omitempty"`
	SaveRawInboxMessages          bool             `json:"save_raw_inbox_messages"`

	// Collection management
	SubscriptionMessage string `json:"subscription_message,omitempty"`
}

// DefaultServiceConfig returns an available service with default properties.
func DefaultServiceConfig(id string, t ServiceType) ServiceConfig {
	return ServiceConfig{
		ID:                   id,
		Type:                 t,
		Available:            true,
		ProtocolBinding:      ProtocolBindingHTTP,
		MessageBindings:      []string{MessageBindingXML11},
		MaxResultSize:        DefaultMaxResultSize,
		MaxResultCount:       DefaultMaxResultCount,
		WaitTime:             DefaultWaitTime,
		SaveRawInboxMessages: true,
	}
}

// Instance returns the endpoint description of the service.
func (c *ServiceConfig) Instance() ServiceInstance {
	return ServiceInstance{
		ServiceID:       c.ID,
		ProtocolBinding: c.ProtocolBinding,
		Address:         c.Address,
		MessageBindings: c.MessageBindings,
	}
}

// PageSize returns MaxResultSize, falling back to the default when unset.
func (c *ServiceConfig) PageSize() int {
	if c.MaxResultSize <= 0 {
		return DefaultMaxResultSize
	}
	return c.MaxResultSize
}

// CountCap returns MaxResultCount, falling back to the default when unset.
func (c *ServiceConfig) CountCap() int64 {
	if c.MaxResultCount <= 0 {
		return DefaultMaxResultCount
	}
	return c.MaxResultCount
}

// Accepts reports whether the inbox allowlist admits a block binding.
// An empty allowlist admits everything.
func (c *ServiceConfig) Accepts(bindingID, subtype string) bool {
	if len(c.AcceptedContent) == 0 {
		return true
	}
	for _, b := range c.AcceptedContent {
		if b.ID != bindingID {
			continue
		}
		if subtype == "" || b.Unrestricted() || b.HasSubtype(subtype) {
			return true
		}
	}
	return false
}

// Handles reports whether a message of the given kind may be sent to this
// service under version v.
func (c *ServiceConfig) Handles(kind MessageKind, v Version) bool {
	switch kind {
	case MessagePollRequest, MessagePollFulfillmentRequest:
		return c.Type == ServicePoll
	case MessageInbox:
		return c.Type == ServiceInbox
	case MessageSubscriptionRequest, MessageCollectionInformationRequest:
		return c.Type == v.ManagementServiceType()
	}
	return false
}
