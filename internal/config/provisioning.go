package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/taxii/internal/taxii"
)

//go:embed schema.cue
var schemaCUE string

// Provisioning is a document describing services, collections and accounts.
// Optional scalars are pointers so that unset values keep the service
// defaults.
type Provisioning struct {
	Services    []ServiceDoc    `json:"services,omitempty" yaml:"services,omitempty"`
	Collections []CollectionDoc `json:"collections,omitempty" yaml:"collections,omitempty"`
	Accounts    []taxii.Account `json:"accounts,omitempty" yaml:"accounts,omitempty"`
}

// ServiceDoc is one provisioned service.
type ServiceDoc struct {
	ID              string   `json:"id" yaml:"id"`
	Type            string   `json:"type" yaml:"type"`
	Description     string   `json:"description,omitempty" yaml:"description,omitempty"`
	Available       *bool    `json:"available,omitempty" yaml:"available,omitempty"`
	Address         string   `json:"address,omitempty" yaml:"address,omitempty"`
	ProtocolBinding string   `json:"protocol_binding,omitempty" yaml:"protocol_binding,omitempty"`
	MessageBindings []string `json:"message_bindings,omitempty" yaml:"message_bindings,omitempty"`

	AuthenticationRequired bool `json:"authentication_required,omitempty" yaml:"authentication_required,omitempty"`

	MaxResultSize              *int   `json:"max_result_size,omitempty" yaml:"max_result_size,omitempty"`
	MaxResultCount             *int64 `json:"max_result_count,omitempty" yaml:"max_result_count,omitempty"`
	CountBlocksInPollResponses bool   `json:"count_blocks_in_poll_responses,omitempty" yaml:"count_blocks_in_poll_responses,omitempty"`
	WaitTime                   *int   `json:"wait_time,omitempty" yaml:"wait_time,omitempty"`
	CanPush                    bool   `json:"can_push,omitempty" yaml:"can_push,omitempty"`
	SubscriptionRequired       bool   `json:"subscription_required,omitempty" yaml:"subscription_required,omitempty"`

	DestinationCollectionRequired bool                   `json:"destination_collection_required,omitempty" yaml:"destination_collection_required,omitempty"`
	DestinationCollectionNames    []string               `json:"destination_collection_names,omitempty" yaml:"destination_collection_names,omitempty"`
	AcceptedContent               []taxii.ContentBinding `json:"accepted_content,omitempty" yaml:"accepted_content,omitempty"`
	SaveRawInboxMessages          *bool                  `json:"save_raw_inbox_messages,omitempty" yaml:"save_raw_inbox_messages,omitempty"`

	SubscriptionMessage string `json:"subscription_message,omitempty" yaml:"subscription_message,omitempty"`
}

// CollectionDoc is one provisioned collection and the services serving it.
type CollectionDoc struct {
	Name             string                 `json:"name" yaml:"name"`
	Description      string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Kind             string                 `json:"kind,omitempty" yaml:"kind,omitempty"`
	Available        *bool                  `json:"available,omitempty" yaml:"available,omitempty"`
	AcceptAllContent bool                   `json:"accept_all_content,omitempty" yaml:"accept_all_content,omitempty"`
	SupportedContent []taxii.ContentBinding `json:"supported_content,omitempty" yaml:"supported_content,omitempty"`
	Services         []string               `json:"services,omitempty" yaml:"services,omitempty"`
}

// LoadProvisioning reads a provisioning document. Files ending in .cue are
// checked against the embedded CUE schema; .yaml and .yml files are decoded
// with yaml.v3. Either way the result is validated before it is returned.
func LoadProvisioning(path string) (*Provisioning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provisioning: %w", err)
	}

	var doc *Provisioning
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		doc, err = ParseCUE(path, data)
	case ".yaml", ".yml":
		doc, err = ParseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported provisioning file %s: want .cue, .yaml or .yml", path)
	}
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// ParseCUE unifies a CUE document with the provisioning schema and decodes
// the concrete result.
func ParseCUE(filename string, data []byte) (*Provisioning, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile provisioning schema: %w", err)
	}

	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compile %s: %w", filename, err)
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate %s: %w", filename, err)
	}

	var doc Provisioning
	if err := unified.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	return &doc, nil
}

// ParseYAML decodes a YAML document. Unknown fields are rejected.
func ParseYAML(data []byte) (*Provisioning, error) {
	var doc Provisioning
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &doc, nil
}

// Validate checks references and enumerations that a schema cannot express
// on its own: duplicate ids, unknown services and permission targets.
func (p *Provisioning) Validate() error {
	services := make(map[string]bool, len(p.Services))
	for i, s := range p.Services {
		if s.ID == "" {
			return fmt.Errorf("services[%d]: id is required", i)
		}
		if services[s.ID] {
			return fmt.Errorf("services[%d]: duplicate id %q", i, s.ID)
		}
		services[s.ID] = true
		if !taxii.ServiceType(s.Type).Valid() {
			return fmt.Errorf("service %s: unknown type %q", s.ID, s.Type)
		}
		if err := validateBindings(s.AcceptedContent); err != nil {
			return fmt.Errorf("service %s: accepted_content: %w", s.ID, err)
		}
	}

	collections := make(map[string]bool, len(p.Collections))
	for i, c := range p.Collections {
		name := taxii.NormalizeName(c.Name)
		if name == "" {
			return fmt.Errorf("collections[%d]: name is required", i)
		}
		if collections[name] {
			return fmt.Errorf("collections[%d]: duplicate name %q", i, name)
		}
		collections[name] = true
		if c.Kind != "" && !taxii.CollectionKind(c.Kind).Valid() {
			return fmt.Errorf("collection %s: unknown kind %q", name, c.Kind)
		}
		if err := validateBindings(c.SupportedContent); err != nil {
			return fmt.Errorf("collection %s: supported_content: %w", name, err)
		}
		for _, sid := range c.Services {
			if !services[sid] {
				return fmt.Errorf("collection %s: unknown service %q", name, sid)
			}
		}
	}

	for i, a := range p.Accounts {
		if a.Username == "" {
			return fmt.Errorf("accounts[%d]: username is required", i)
		}
		for name, perm := range a.Permissions {
			if !perm.Valid() {
				return fmt.Errorf("account %s: unknown permission %q", a.Username, perm)
			}
			if !collections[taxii.NormalizeName(name)] {
				return fmt.Errorf("account %s: unknown collection %q", a.Username, name)
			}
		}
	}
	return nil
}

func validateBindings(bindings []taxii.ContentBinding) error {
	for i, b := range bindings {
		if b.ID == "" {
			return fmt.Errorf("[%d]: binding_id is required", i)
		}
	}
	return nil
}

// ServiceConfig applies the document on top of the service defaults.
func (d ServiceDoc) ServiceConfig() taxii.ServiceConfig {
	cfg := taxii.DefaultServiceConfig(d.ID, taxii.ServiceType(d.Type))
	cfg.Description = d.Description
	cfg.Address = d.Address
	if d.Available != nil {
		cfg.Available = *d.Available
	}
	if d.ProtocolBinding != "" {
		cfg.ProtocolBinding = d.ProtocolBinding
	}
	if len(d.MessageBindings) > 0 {
		cfg.MessageBindings = d.MessageBindings
	}
	cfg.AuthenticationRequired = d.AuthenticationRequired

	if d.MaxResultSize != nil {
		cfg.MaxResultSize = *d.MaxResultSize
	}
	if d.MaxResultCount != nil {
		cfg.MaxResultCount = *d.MaxResultCount
	}
	cfg.CountBlocksInPollResponses = d.CountBlocksInPollResponses
	if d.WaitTime != nil {
		cfg.WaitTime = *d.WaitTime
	}
	cfg.CanPush = d.CanPush
	cfg.SubscriptionRequired = d.SubscriptionRequired

	cfg.DestinationCollectionRequired = d.DestinationCollectionRequired
	for _, name := range d.DestinationCollectionNames {
		cfg.DestinationCollectionNames = append(cfg.DestinationCollectionNames, taxii.NormalizeName(name))
	}
	cfg.AcceptedContent = d.AcceptedContent
	if d.SaveRawInboxMessages != nil {
		cfg.SaveRawInboxMessages = *d.SaveRawInboxMessages
	}
	cfg.SubscriptionMessage = d.SubscriptionMessage
	return cfg
}

// Collection converts the document into a collection. Kind defaults to
// DATA_FEED and availability to true.
func (d CollectionDoc) Collection() taxii.Collection {
	c := taxii.Collection{
		Name:             taxii.NormalizeName(d.Name),
		Description:      d.Description,
		Kind:             taxii.KindDataFeed,
		Available:        true,
		AcceptAllContent: d.AcceptAllContent,
		SupportedContent: d.SupportedContent,
	}
	if d.Kind != "" {
		c.Kind = taxii.CollectionKind(d.Kind)
	}
	if d.Available != nil {
		c.Available = *d.Available
	}
	return c
}
