package testutil

import (
	"fmt"
	"time"

	"github.com/roach88/taxii/internal/taxii"
)

// At returns Epoch plus the given number of minutes.
func At(minutes int) time.Time {
	return Epoch.Add(time.Duration(minutes) * time.Minute)
}

// AtPtr is At returning a pointer, for time window bounds.
func AtPtr(minutes int) *time.Time {
	t := At(minutes)
	return &t
}

// Block builds a content block with a timestamp label minutes after Epoch.
func Block(bindingID string, minutes int) taxii.ContentBlock {
	return taxii.ContentBlock{
		BindingID:      bindingID,
		Content:        []byte(fmt.Sprintf("%s@%d", bindingID, minutes)),
		TimestampLabel: At(minutes),
	}
}

// Binding builds a content binding.
func Binding(id string, subtypes ...string) taxii.ContentBinding {
	return taxii.ContentBinding{ID: id, Subtypes: subtypes}
}

// Feed builds an available data feed collection supporting the bindings.
func Feed(name string, bindings ...taxii.ContentBinding) taxii.Collection {
	return taxii.Collection{
		Name:             name,
		Kind:             taxii.KindDataFeed,
		Available:        true,
		SupportedContent: bindings,
	}
}
