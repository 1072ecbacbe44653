package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/taxii/internal/taxii"
)

// timeLayout is the TEXT column representation of times: UTC with a
// four-digit year and nine fractional digits, so that string order is
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// formatTime converts a time to its column representation. Times outside
// taxii.MinTimestamp..taxii.MaxTimestamp have no fixed-width form.
func formatTime(t time.Time) (string, error) {
	t = t.UTC()
	if !taxii.InTimestampRange(t) {
		return "", fmt.Errorf("%w: %s", taxii.ErrTimestampRange, t.Format(time.RFC3339Nano))
	}
	return t.Format(timeLayout), nil
}

// parseTime converts the column representation back to UTC time.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}

// nullableTime maps an optional bound to a nullable column value.
func nullableTime(t *time.Time) (sql.NullString, error) {
	if t == nil {
		return sql.NullString{}, nil
	}
	s, err := formatTime(*t)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: s, Valid: true}, nil
}

// timePtr maps a nullable column value back to an optional bound.
func timePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// marshalJSON encodes v as JSON TEXT. Nil slices and maps are stored as
// their empty form so the NOT NULL DEFAULT columns never see "null".
func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal json: %w", err)
	}
	if string(data) == "null" {
		switch v.(type) {
		case []taxii.ContentBinding, []string:
			return "[]", nil
		default:
			return "{}", nil
		}
	}
	return string(data), nil
}

func unmarshalBindings(data string) ([]taxii.ContentBinding, error) {
	var out []taxii.ContentBinding
	if data == "" || data == "[]" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal bindings: %w", err)
	}
	return out, nil
}

func unmarshalStrings(data string) ([]string, error) {
	out := []string{}
	if data == "" || data == "[]" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal strings: %w", err)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
