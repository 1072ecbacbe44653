package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/taxii/internal/taxii"
)

// GetService loads a provisioned service and its properties.
func (s *Store) GetService(ctx context.Context, id string) (*taxii.ServiceConfig, error) {
	var (
		typ   string
		props string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT type, properties FROM services WHERE id = ?", id,
	).Scan(&typ, &props)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("service %s: %w", id, taxii.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get service %s: %w", id, err)
	}

	var cfg taxii.ServiceConfig
	if err := json.Unmarshal([]byte(props), &cfg); err != nil {
		return nil, fmt.Errorf("decode service %s: %w", id, err)
	}
	cfg.ID = id
	cfg.Type = taxii.ServiceType(typ)
	return &cfg, nil
}

const collectionColumns = `c.id, c.name, c.description, c.kind, c.available,
	c.accept_all_content, c.bindings, c.volume`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (*taxii.Collection, error) {
	var (
		c         taxii.Collection
		kind      string
		available int
		acceptAll int
		bindings  string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &kind, &available,
		&acceptAll, &bindings, &c.Volume); err != nil {
		return nil, err
	}
	c.Kind = taxii.CollectionKind(kind)
	c.Available = available != 0
	c.AcceptAllContent = acceptAll != 0

	supported, err := unmarshalBindings(bindings)
	if err != nil {
		return nil, err
	}
	c.SupportedContent = supported
	return &c, nil
}

// GetCollection loads a collection by name, provided it is attached to the
// service.
func (s *Store) GetCollection(ctx context.Context, serviceID, name string) (*taxii.Collection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+collectionColumns+`
		FROM collections c
		JOIN service_to_collection sc ON sc.collection_id = c.id
		WHERE sc.service_id = ? AND c.name = ?
	`, serviceID, name)

	c, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection %s on %s: %w", name, serviceID, taxii.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get collection %s: %w", name, err)
	}
	return c, nil
}

// GetCollectionByName loads a collection regardless of which services it is
// attached to.
func (s *Store) GetCollectionByName(ctx context.Context, name string) (*taxii.Collection, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+collectionColumns+" FROM collections c WHERE c.name = ?", name)

	c, err := scanCollection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection %s: %w", name, taxii.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get collection %s: %w", name, err)
	}
	return c, nil
}

// ListCollections returns every collection attached to the service, ordered
// by name.
func (s *Store) ListCollections(ctx context.Context, serviceID string) ([]taxii.Collection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+collectionColumns+`
		FROM collections c
		JOIN service_to_collection sc ON sc.collection_id = c.id
		WHERE sc.service_id = ?
		ORDER BY c.name
	`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var out []taxii.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return out, nil
}

// ServiceInstances returns the endpoints of available services of type t
// attached to the collection, ordered by service id.
func (s *Store) ServiceInstances(ctx context.Context, collectionID int64, t taxii.ServiceType) ([]taxii.ServiceInstance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.properties
		FROM services s
		JOIN service_to_collection sc ON sc.service_id = s.id
		WHERE sc.collection_id = ? AND s.type = ?
		ORDER BY s.id
	`, collectionID, string(t))
	if err != nil {
		return nil, fmt.Errorf("list service instances: %w", err)
	}
	defer rows.Close()

	out := []taxii.ServiceInstance{}
	for rows.Next() {
		var id, props string
		if err := rows.Scan(&id, &props); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		var cfg taxii.ServiceConfig
		if err := json.Unmarshal([]byte(props), &cfg); err != nil {
			return nil, fmt.Errorf("decode service %s: %w", id, err)
		}
		if !cfg.Available {
			continue
		}
		cfg.ID = id
		cfg.Type = t
		out = append(out, cfg.Instance())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate services: %w", err)
	}
	return out, nil
}

// GetResultSet loads a frozen result set.
func (s *Store) GetResultSet(ctx context.Context, id string) (*taxii.ResultSet, error) {
	var (
		rs       taxii.ResultSet
		bindings string
		begin    sql.NullString
		end      sql.NullString
		created  string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, collection_id, bindings, begin_time, end_time, created_at
		FROM result_sets WHERE id = ?
	`, id).Scan(&rs.ID, &rs.CollectionID, &bindings, &begin, &end, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("result set %s: %w", id, taxii.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get result set %s: %w", id, err)
	}

	if rs.Bindings, err = unmarshalBindings(bindings); err != nil {
		return nil, err
	}
	if rs.Window.Begin, err = timePtr(begin); err != nil {
		return nil, err
	}
	if rs.Window.End, err = timePtr(end); err != nil {
		return nil, err
	}
	if rs.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &rs, nil
}

const subscriptionColumns = "id, collection_id, service_id, status, params, created_at"

func scanSubscription(row rowScanner) (*taxii.Subscription, error) {
	var (
		sub     taxii.Subscription
		status  string
		params  string
		created string
	)
	if err := row.Scan(&sub.ID, &sub.CollectionID, &sub.ServiceID, &status, &params, &created); err != nil {
		return nil, err
	}
	sub.Status = taxii.SubscriptionStatus(status)
	t, err := parseTime(created)
	if err != nil {
		return nil, err
	}
	sub.CreatedAt = t
	if err := json.Unmarshal([]byte(params), &sub.Params); err != nil {
		return nil, fmt.Errorf("decode subscription params: %w", err)
	}
	return &sub, nil
}

// GetSubscription loads a subscription by id.
func (s *Store) GetSubscription(ctx context.Context, id string) (*taxii.Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE id = ?", id)

	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("subscription %s: %w", id, taxii.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", id, err)
	}
	return sub, nil
}

// ListSubscriptions returns the subscriptions owned by a service in creation
// order.
func (s *Store) ListSubscriptions(ctx context.Context, serviceID string) ([]taxii.Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE service_id = ?
		ORDER BY created_at, id
	`, serviceID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []taxii.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return out, nil
}

// GetAccount loads an account by username.
func (s *Store) GetAccount(ctx context.Context, username string) (*taxii.Account, error) {
	var (
		a     taxii.Account
		admin int
		perms string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT username, is_admin, permissions FROM accounts WHERE username = ?", username,
	).Scan(&a.Username, &admin, &perms)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", username, taxii.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", username, err)
	}
	a.IsAdmin = admin != 0
	if err := json.Unmarshal([]byte(perms), &a.Permissions); err != nil {
		return nil, fmt.Errorf("decode account %s: %w", username, err)
	}
	return &a, nil
}
