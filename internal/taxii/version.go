package taxii

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is the protocol dialect a request was received under.
type Version int

const (
	VersionUnknown Version = iota
	Version10
	Version11
)

// Binding URNs for both dialects.
const (
	MessageBindingXML10 = "urn:taxii.mitre.org:message:xml:1.0"
	MessageBindingXML11 = "urn:taxii.mitre.org:message:xml:1.1"
	ServicesBinding10   = "urn:taxii.mitre.org:services:1.0"
	ServicesBinding11   = "urn:taxii.mitre.org:services:1.1"
	ProtocolBindingHTTP = "urn:taxii.mitre.org:protocol:http:1.0"
)

// ParseVersion accepts a bare version ("1.1") or any TAXII binding URN whose
// last segment is the version ("urn:taxii.mitre.org:message:xml:1.1").
func ParseVersion(s string) (Version, error) {
	raw := strings.TrimSpace(s)
	if i := strings.LastIndex(raw, ":"); i >= 0 {
		raw = raw[i+1:]
	}
	if raw == "" {
		return VersionUnknown, fmt.Errorf("parse version %q: empty", s)
	}

	v, err := semver.NewVersion(raw)
	if err != nil {
		return VersionUnknown, fmt.Errorf("parse version %q: %w", s, err)
	}
	if v.Major() != 1 || v.Patch() != 0 {
		return VersionUnknown, fmt.Errorf("unsupported version %q", s)
	}
	switch v.Minor() {
	case 0:
		return Version10, nil
	case 1:
		return Version11, nil
	}
	return VersionUnknown, fmt.Errorf("unsupported version %q", s)
}

func (v Version) String() string {
	switch v {
	case Version10:
		return "1.0"
	case Version11:
		return "1.1"
	}
	return "unknown"
}

// MessageBinding returns the XML message binding URN of the dialect.
func (v Version) MessageBinding() string {
	if v == Version10 {
		return MessageBindingXML10
	}
	return MessageBindingXML11
}

// ServicesBinding returns the services binding URN of the dialect.
func (v Version) ServicesBinding() string {
	if v == Version10 {
		return ServicesBinding10
	}
	return ServicesBinding11
}

// AllowsAction reports whether a subscription action is part of the dialect.
// Pause and Resume only exist in 1.1.
func (v Version) AllowsAction(a Action) bool {
	switch a {
	case ActionSubscribe, ActionUnsubscribe, ActionStatus:
		return v == Version10 || v == Version11
	case ActionPause, ActionResume:
		return v == Version11
	}
	return false
}

// CanPoll reports whether collections of the given kind are pollable.
// 1.0 only knows data feeds.
func (v Version) CanPoll(kind CollectionKind) bool {
	if v == Version10 {
		return kind == KindDataFeed
	}
	return true
}

// SupportsFulfillment reports whether result sets can be resumed.
func (v Version) SupportsFulfillment() bool { return v == Version11 }

// ManagementServiceType is the service type that carries subscription and
// collection information requests.
func (v Version) ManagementServiceType() ServiceType {
	if v == Version10 {
		return ServiceFeedManagement
	}
	return ServiceCollectionManagement
}
