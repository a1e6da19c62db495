// Package docstore is the persistence gateway: schemaless documents grouped
// in named collections, with conditional writes and live query subscriptions.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrInvalidArgument = errors.New("invalid document argument")
)

// TimeLayout is fixed width so that lexical order equals chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Document is the decoded body of a stored document.
type Document map[string]any

// Doc is a document together with its id.
type Doc struct {
	ID   string
	Data Document
}

// Sentinel values are resolved by the gateway at write time.
type Sentinel int

// ServerTimestamp is replaced with the gateway clock when written.
const ServerTimestamp Sentinel = 1

type Op string

const (
	OpEqual  Op = "=="
	OpAbsent Op = "absent"
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

func Absent(field string) Filter {
	return Filter{Field: field, Op: OpAbsent}
}

// Query selects documents of one collection. ID restricts it to a single
// document. OrderBy sorts on a top-level field; missing values sort last
// ascending and first descending.
type Query struct {
	Collection string
	ID         string
	Where      []Filter
	OrderBy    string
	Desc       bool
	Limit      int
}

// Store is implemented by Memory and Postgres.
type Store interface {
	Create(ctx context.Context, collection string, data Document) (string, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Set(ctx context.Context, collection, id string, data Document, merge bool) error
	// Update merges patch into an existing document.
	Update(ctx context.Context, collection, id string, patch Document) error
	// UpdateIf merges patch only when every condition holds and reports
	// whether it was applied.
	UpdateIf(ctx context.Context, collection, id string, conds []Filter, patch Document) (bool, error)
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, q Query) ([]Doc, error)
	Subscribe(ctx context.Context, q Query) (*Subscription, error)
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime reads a timestamp written by the gateway.
func ParseTime(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// Decode copies a document into out through its JSON form.
func Decode(data Document, out any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// normalize resolves sentinels and times and returns the canonical JSON form
// of data: numbers as float64, arrays as []any, objects as map[string]any.
func normalize(data Document, now time.Time) (Document, error) {
	b, err := json.Marshal(resolve(map[string]any(data), now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	out := Document{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return out, nil
}

func resolve(v any, now time.Time) any {
	switch x := v.(type) {
	case Sentinel:
		if x == ServerTimestamp {
			return FormatTime(now)
		}
		return nil
	case time.Time:
		return FormatTime(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return FormatTime(*x)
	case Document:
		return resolve(map[string]any(x), now)
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, vv := range x {
			m[k] = resolve(vv, now)
		}
		return m
	case []any:
		s := make([]any, len(x))
		for i, vv := range x {
			s[i] = resolve(vv, now)
		}
		return s
	}
	return v
}

func canonicalJSON(v any, now time.Time) ([]byte, error) {
	return json.Marshal(resolve(v, now))
}

func matches(data Document, conds []Filter, now time.Time) bool {
	for _, f := range conds {
		cur, ok := data[f.Field]
		switch f.Op {
		case OpAbsent:
			if ok {
				return false
			}
		case OpEqual:
			if !ok {
				return false
			}
			want, err := canonicalJSON(f.Value, now)
			if err != nil {
				return false
			}
			got, err := json.Marshal(cur)
			if err != nil || !bytes.Equal(got, want) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func validFilters(conds []Filter) error {
	for _, f := range conds {
		if f.Field == "" {
			return fmt.Errorf("%w: empty filter field", ErrInvalidArgument)
		}
		if f.Op != OpEqual && f.Op != OpAbsent {
			return fmt.Errorf("%w: unsupported operator %q", ErrInvalidArgument, f.Op)
		}
	}
	return nil
}

func merge(dst, patch Document) Document {
	out := make(Document, len(dst)+len(patch))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}

func clone(d Document) Document {
	if d == nil {
		return nil
	}
	return Document(cloneValue(map[string]any(d)).(map[string]any))
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, vv := range x {
			m[k] = cloneValue(vv)
		}
		return m
	case []any:
		s := make([]any, len(x))
		for i, vv := range x {
			s[i] = cloneValue(vv)
		}
		return s
	}
	return v
}
