package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/taxii/internal/taxii"
)

// UpsertService creates or replaces a service and its properties.
func (s *Store) UpsertService(ctx context.Context, cfg taxii.ServiceConfig) error {
	if !cfg.Type.Valid() {
		return fmt.Errorf("service %s: unknown type %q", cfg.ID, cfg.Type)
	}
	props, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode service %s: %w", cfg.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO services (id, type, properties) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET type = excluded.type, properties = excluded.properties
	`, cfg.ID, string(cfg.Type), string(props))
	if err != nil {
		return fmt.Errorf("upsert service %s: %w", cfg.ID, err)
	}
	return nil
}

// UpsertCollection creates or updates a collection by name and returns it
// with its id. The stored volume is never overwritten.
func (s *Store) UpsertCollection(ctx context.Context, c taxii.Collection) (*taxii.Collection, error) {
	if !c.Kind.Valid() {
		return nil, fmt.Errorf("collection %s: unknown kind %q", c.Name, c.Kind)
	}
	c.Name = taxii.NormalizeName(c.Name)
	bindings, err := marshalJSON(c.SupportedContent)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO collections (name, description, kind, available, accept_all_content, bindings)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description = excluded.description,
			kind = excluded.kind,
			available = excluded.available,
			accept_all_content = excluded.accept_all_content,
			bindings = excluded.bindings
		RETURNING id, volume
	`, c.Name, c.Description, string(c.Kind), boolToInt(c.Available),
		boolToInt(c.AcceptAllContent), bindings).Scan(&c.ID, &c.Volume)
	if err != nil {
		return nil, fmt.Errorf("upsert collection %s: %w", c.Name, err)
	}
	return &c, nil
}

// AttachService links a collection to a service. Attaching twice is a no-op.
func (s *Store) AttachService(ctx context.Context, serviceID string, collectionID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_to_collection (service_id, collection_id) VALUES (?, ?)
		ON CONFLICT DO NOTHING
	`, serviceID, collectionID)
	if err != nil {
		return fmt.Errorf("attach %s to collection %d: %w", serviceID, collectionID, err)
	}
	return nil
}

// UpsertAccount creates or replaces an account.
func (s *Store) UpsertAccount(ctx context.Context, a taxii.Account) error {
	perms := make(map[string]taxii.Permission, len(a.Permissions))
	for name, p := range a.Permissions {
		if !p.Valid() {
			return fmt.Errorf("account %s: unknown permission %q on %s", a.Username, p, name)
		}
		perms[taxii.NormalizeName(name)] = p
	}
	data, err := json.Marshal(perms)
	if err != nil {
		return fmt.Errorf("encode account %s: %w", a.Username, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO accounts (username, is_admin, permissions) VALUES (?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET is_admin = excluded.is_admin, permissions = excluded.permissions
	`, a.Username, boolToInt(a.IsAdmin), string(data))
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", a.Username, err)
	}
	return nil
}
