package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/taxii/internal/taxii"
)

// blockFilter renders the FROM/WHERE part shared by content queries.
// Begin is exclusive, End inclusive; bindings are OR-ed, each restricted to
// its subtypes when it lists any.
func blockFilter(q taxii.BlockQuery) (string, []any) {
	var sb strings.Builder
	args := []any{q.CollectionID}

	sb.WriteString(`
		FROM content_blocks cb
		JOIN collection_to_content_block ctb ON ctb.content_block_id = cb.id
		WHERE ctb.collection_id = ?`)

	// Stored labels all lie within the timestamp range, so a bound beyond it
	// either excludes nothing or excludes everything.
	if b := q.Window.Begin; b != nil {
		switch {
		case b.Before(taxii.MinTimestamp):
		case b.After(taxii.MaxTimestamp):
			sb.WriteString(" AND 0")
		default:
			sb.WriteString(" AND cb.timestamp_label > ?")
			args = append(args, b.UTC().Format(timeLayout))
		}
	}
	if e := q.Window.End; e != nil {
		switch {
		case e.After(taxii.MaxTimestamp):
		case e.Before(taxii.MinTimestamp):
			sb.WriteString(" AND 0")
		default:
			sb.WriteString(" AND cb.timestamp_label <= ?")
			args = append(args, e.UTC().Format(timeLayout))
		}
	}

	if len(q.Bindings) > 0 {
		clauses := make([]string, 0, len(q.Bindings))
		for _, b := range q.Bindings {
			if b.Unrestricted() {
				clauses = append(clauses, "cb.binding_id = ?")
				args = append(args, b.ID)
				continue
			}
			marks := strings.TrimSuffix(strings.Repeat("?,", len(b.Subtypes)), ",")
			clauses = append(clauses, "(cb.binding_id = ? AND cb.binding_subtype IN ("+marks+"))")
			args = append(args, b.ID)
			for _, st := range b.Subtypes {
				args = append(args, st)
			}
		}
		sb.WriteString(" AND (" + strings.Join(clauses, " OR ") + ")")
	}
	return sb.String(), args
}

// FetchContentBlocks returns one page of matching blocks ordered by
// timestamp label. When a sync limit is configured, a first-page query
// (no result id) matching more blocks than the limit is deferred.
func (s *Store) FetchContentBlocks(ctx context.Context, q taxii.BlockQuery) (taxii.Fetch, error) {
	if s.syncLimit > 0 && q.ResultID == "" {
		total, err := s.CountContentBlocks(ctx, q)
		if err != nil {
			return taxii.Fetch{}, err
		}
		if total > s.syncLimit {
			return taxii.NotReady(), nil
		}
	}

	filter, args := blockFilter(q)
	limit := int64(-1)
	if q.Limit > 0 {
		limit = int64(q.Limit)
	}
	args = append(args, limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, `
		SELECT cb.id, cb.binding_id, cb.binding_subtype, cb.content,
		       cb.timestamp_label, cb.message, cb.inbox_message_id, cb.created_at`+
		filter+`
		ORDER BY cb.timestamp_label, cb.id
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return taxii.Fetch{}, fmt.Errorf("fetch content blocks: %w", err)
	}
	defer rows.Close()

	blocks := []taxii.ContentBlock{}
	for rows.Next() {
		var (
			b       taxii.ContentBlock
			label   string
			inbox   sql.NullInt64
			created string
		)
		if err := rows.Scan(&b.ID, &b.BindingID, &b.BindingSubtype, &b.Content,
			&label, &b.Message, &inbox, &created); err != nil {
			return taxii.Fetch{}, fmt.Errorf("scan content block: %w", err)
		}
		if b.TimestampLabel, err = parseTime(label); err != nil {
			return taxii.Fetch{}, err
		}
		if b.CreatedAt, err = parseTime(created); err != nil {
			return taxii.Fetch{}, err
		}
		b.InboxMessageID = inbox.Int64
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return taxii.Fetch{}, fmt.Errorf("iterate content blocks: %w", err)
	}
	return taxii.Ready(blocks), nil
}

// CountContentBlocks counts every block matching the query, ignoring paging.
func (s *Store) CountContentBlocks(ctx context.Context, q taxii.BlockQuery) (int64, error) {
	filter, args := blockFilter(q)
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*)"+filter, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count content blocks: %w", err)
	}
	return n, nil
}

// CreateContentBlock stores a block and links it to each collection,
// bumping their volumes, in one transaction.
func (s *Store) CreateContentBlock(ctx context.Context, block taxii.ContentBlock, collectionIDs []int64) (*taxii.ContentBlock, error) {
	label, err := formatTime(block.TimestampLabel)
	if err != nil {
		return nil, fmt.Errorf("content block timestamp label: %w", err)
	}
	created, err := formatTime(block.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("content block created_at: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	content := block.Content
	if content == nil {
		content = []byte{}
	}
	inbox := sql.NullInt64{Int64: block.InboxMessageID, Valid: block.InboxMessageID != 0}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO content_blocks
			(binding_id, binding_subtype, content, timestamp_label, message, inbox_message_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, block.BindingID, block.BindingSubtype, content, label,
		block.Message, inbox, created)
	if err != nil {
		return nil, fmt.Errorf("insert content block: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("content block id: %w", err)
	}

	for _, cid := range collectionIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO collection_to_content_block (collection_id, content_block_id)
			VALUES (?, ?) ON CONFLICT DO NOTHING
		`, cid, id); err != nil {
			return nil, fmt.Errorf("link content block to collection %d: %w", cid, err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE collections SET volume = volume + 1 WHERE id = ?", cid); err != nil {
			return nil, fmt.Errorf("update volume of collection %d: %w", cid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit content block: %w", err)
	}

	block.ID = id
	block.TimestampLabel = block.TimestampLabel.UTC()
	block.CreatedAt = block.CreatedAt.UTC()
	return &block, nil
}

// DeleteContentBlocks removes the collection's blocks whose timestamp label
// falls inside the window, optionally with the inbox messages that carried
// them. Blocks are removed from every collection they belong to and the
// volumes of all affected collections are recomputed. Returns the number of
// blocks deleted.
func (s *Store) DeleteContentBlocks(ctx context.Context, collectionID int64, w taxii.TimeWindow, withMessages bool) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	filter, args := blockFilter(taxii.BlockQuery{CollectionID: collectionID, Window: w})
	if _, err := tx.ExecContext(ctx, "CREATE TEMP TABLE IF NOT EXISTS purge_ids (id INTEGER PRIMARY KEY)"); err != nil {
		return 0, fmt.Errorf("create purge table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM purge_ids"); err != nil {
		return 0, fmt.Errorf("reset purge table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO purge_ids (id) SELECT cb.id"+filter, args...); err != nil {
		return 0, fmt.Errorf("select purged blocks: %w", err)
	}

	affected, err := collectIDs(ctx, tx, `
		SELECT DISTINCT collection_id FROM collection_to_content_block
		WHERE content_block_id IN (SELECT id FROM purge_ids)`)
	if err != nil {
		return 0, err
	}

	if withMessages {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM inbox_messages WHERE id IN (
				SELECT inbox_message_id FROM content_blocks
				WHERE id IN (SELECT id FROM purge_ids) AND inbox_message_id IS NOT NULL
			)`); err != nil {
			return 0, fmt.Errorf("delete inbox messages: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM content_blocks WHERE id IN (SELECT id FROM purge_ids)")
	if err != nil {
		return 0, fmt.Errorf("delete content blocks: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleted rows: %w", err)
	}

	for _, cid := range affected {
		if _, err := tx.ExecContext(ctx, `
			UPDATE collections SET volume = (
				SELECT COUNT(*) FROM collection_to_content_block WHERE collection_id = ?
			) WHERE id = ?`, cid, cid); err != nil {
			return 0, fmt.Errorf("recompute volume of collection %d: %w", cid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit purge: %w", err)
	}
	return deleted, nil
}

func collectIDs(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
