package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/taxii/internal/taxii"
)

// CreateResultSet stores a frozen poll filter. A zero CreatedAt is stamped
// with the current time.
func (s *Store) CreateResultSet(ctx context.Context, rs taxii.ResultSet) (*taxii.ResultSet, error) {
	if rs.CreatedAt.IsZero() {
		rs.CreatedAt = time.Now()
	}
	bindings, err := marshalJSON(rs.Bindings)
	if err != nil {
		return nil, err
	}
	begin, err := nullableTime(rs.Window.Begin)
	if err != nil {
		return nil, fmt.Errorf("result set %s begin: %w", rs.ID, err)
	}
	end, err := nullableTime(rs.Window.End)
	if err != nil {
		return nil, fmt.Errorf("result set %s end: %w", rs.ID, err)
	}
	created, err := formatTime(rs.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("result set %s created_at: %w", rs.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO result_sets (id, collection_id, bindings, begin_time, end_time, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rs.ID, rs.CollectionID, bindings, begin, end, created)
	if err != nil {
		return nil, fmt.Errorf("insert result set %s: %w", rs.ID, err)
	}

	rs.CreatedAt = rs.CreatedAt.UTC()
	return &rs, nil
}

// CreateSubscription stores a new subscription.
func (s *Store) CreateSubscription(ctx context.Context, sub taxii.Subscription) (*taxii.Subscription, error) {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	params, err := marshalJSON(sub.Params)
	if err != nil {
		return nil, err
	}
	created, err := formatTime(sub.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("subscription %s created_at: %w", sub.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (id, collection_id, service_id, status, params, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sub.ID, sub.CollectionID, sub.ServiceID, string(sub.Status), params, created)
	if err != nil {
		return nil, fmt.Errorf("insert subscription %s: %w", sub.ID, err)
	}

	sub.CreatedAt = sub.CreatedAt.UTC()
	return &sub, nil
}

// UpdateSubscription persists the status and params of an existing
// subscription.
func (s *Store) UpdateSubscription(ctx context.Context, sub taxii.Subscription) error {
	params, err := marshalJSON(sub.Params)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE subscriptions SET status = ?, params = ? WHERE id = ?",
		string(sub.Status), params, sub.ID)
	if err != nil {
		return fmt.Errorf("update subscription %s: %w", sub.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update subscription %s: %w", sub.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("subscription %s: %w", sub.ID, taxii.ErrNotFound)
	}
	return nil
}

// CreateInboxMessage stores the audit record of an inbox call.
func (s *Store) CreateInboxMessage(ctx context.Context, msg taxii.InboxMessage) (*taxii.InboxMessage, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	dests, err := marshalJSON(msg.DestinationNames)
	if err != nil {
		return nil, err
	}
	var count sql.NullInt64
	if msg.RecordCount != nil {
		count = sql.NullInt64{Int64: *msg.RecordCount, Valid: true}
	}
	begin, err := nullableTime(msg.ExclusiveBegin)
	if err != nil {
		return nil, fmt.Errorf("inbox message %s exclusive_begin: %w", msg.MessageID, err)
	}
	end, err := nullableTime(msg.InclusiveEnd)
	if err != nil {
		return nil, fmt.Errorf("inbox message %s inclusive_end: %w", msg.MessageID, err)
	}
	created, err := formatTime(msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inbox message %s created_at: %w", msg.MessageID, err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO inbox_messages
			(message_id, service_id, original_message, message, content_block_count,
			 destination_collections, result_id, subscription_id, record_count,
			 partial_count, exclusive_begin, inclusive_end, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.MessageID, msg.ServiceID, msg.Raw, msg.Message, msg.ContentBlockCount,
		dests, msg.ResultID, msg.SubscriptionID, count,
		boolToInt(msg.PartialCount), begin, end, created)
	if err != nil {
		return nil, fmt.Errorf("insert inbox message %s: %w", msg.MessageID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("inbox message id: %w", err)
	}

	msg.ID = id
	msg.CreatedAt = msg.CreatedAt.UTC()
	return &msg, nil
}

// GetInboxMessage loads an inbox audit record by row id.
func (s *Store) GetInboxMessage(ctx context.Context, id int64) (*taxii.InboxMessage, error) {
	var (
		msg     taxii.InboxMessage
		dests   string
		count   sql.NullInt64
		partial int
		begin   sql.NullString
		end     sql.NullString
		created string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, message_id, service_id, original_message, message, content_block_count,
		       destination_collections, result_id, subscription_id, record_count,
		       partial_count, exclusive_begin, inclusive_end, created_at
		FROM inbox_messages WHERE id = ?
	`, id).Scan(&msg.ID, &msg.MessageID, &msg.ServiceID, &msg.Raw, &msg.Message, &msg.ContentBlockCount,
		&dests, &msg.ResultID, &msg.SubscriptionID, &count, &partial, &begin, &end, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("inbox message %d: %w", id, taxii.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get inbox message %d: %w", id, err)
	}

	if msg.DestinationNames, err = unmarshalStrings(dests); err != nil {
		return nil, err
	}
	if count.Valid {
		n := count.Int64
		msg.RecordCount = &n
	}
	msg.PartialCount = partial != 0
	if msg.ExclusiveBegin, err = timePtr(begin); err != nil {
		return nil, err
	}
	if msg.InclusiveEnd, err = timePtr(end); err != nil {
		return nil, err
	}
	if msg.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &msg, nil
}
