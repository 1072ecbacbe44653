package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/taxii/internal/taxii"
)

// Provisioner is the write side a provisioning document is applied to.
type Provisioner interface {
	UpsertService(ctx context.Context, cfg taxii.ServiceConfig) error
	UpsertCollection(ctx context.Context, c taxii.Collection) (*taxii.Collection, error)
	AttachService(ctx context.Context, serviceID string, collectionID int64) error
	UpsertAccount(ctx context.Context, a taxii.Account) error
}

// Summary counts what Apply wrote.
type Summary struct {
	Services    int `json:"services"`
	Collections int `json:"collections"`
	Attachments int `json:"attachments"`
	Accounts    int `json:"accounts"`
}

// Apply writes services first, then collections with their service links,
// then accounts. It stops at the first failure.
func Apply(ctx context.Context, p Provisioner, doc *Provisioning, log *slog.Logger) (Summary, error) {
	var sum Summary

	for _, sd := range doc.Services {
		if err := p.UpsertService(ctx, sd.ServiceConfig()); err != nil {
			return sum, fmt.Errorf("provision service %s: %w", sd.ID, err)
		}
		log.Debug("service provisioned", "id", sd.ID, "type", sd.Type)
		sum.Services++
	}

	for _, cd := range doc.Collections {
		c, err := p.UpsertCollection(ctx, cd.Collection())
		if err != nil {
			return sum, fmt.Errorf("provision collection %s: %w", cd.Name, err)
		}
		log.Debug("collection provisioned", "name", c.Name, "id", c.ID)
		sum.Collections++

		for _, sid := range cd.Services {
			if err := p.AttachService(ctx, sid, c.ID); err != nil {
				return sum, fmt.Errorf("attach %s to %s: %w", sid, c.Name, err)
			}
			sum.Attachments++
		}
	}

	for _, a := range doc.Accounts {
		if err := p.UpsertAccount(ctx, a); err != nil {
			return sum, fmt.Errorf("provision account %s: %w", a.Username, err)
		}
		sum.Accounts++
	}
	return sum, nil
}
