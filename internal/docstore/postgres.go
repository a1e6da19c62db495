package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"restaurant-app/internal/xpkg/clock"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NotifyChannel carries "collection/id" of every document written to.
const NotifyChannel = "docstore_changes"

// Postgres stores documents as JSONB rows of the documents table.
// Subscriptions are refreshed from LISTEN/NOTIFY, so Listen must be running
// for them to see changes.
type Postgres struct {
	pool  *pgxpool.Pool
	clock clock.Clock
	hub   *hub
}

func NewPostgres(pool *pgxpool.Pool, clk clock.Clock) *Postgres {
	if clk == nil {
		clk = clock.NewSystem()
	}
	p := &Postgres{pool: pool, clock: clk}
	p.hub = newHub(p.Query)
	return p
}

func (p *Postgres) Create(ctx context.Context, collection string, data Document) (string, error) {
	if collection == "" {
		return "", fmt.Errorf("%w: empty collection", ErrInvalidArgument)
	}
	body, err := p.encode(data)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	err = p.write(ctx, collection, id, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO documents (collection, id, data)
			VALUES ($1, $2, $3::jsonb)`,
			collection, id, body,
		)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}
	return id, nil
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return decodeRaw(raw)
}

func (p *Postgres) Set(ctx context.Context, collection, id string, data Document, mergeFields bool) error {
	if collection == "" || id == "" {
		return fmt.Errorf("%w: empty collection or id", ErrInvalidArgument)
	}
	body, err := p.encode(data)
	if err != nil {
		return err
	}

	onConflict := `data = EXCLUDED.data`
	if mergeFields {
		onConflict = `data = documents.data || EXCLUDED.data`
	}

	err = p.write(ctx, collection, id, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO documents (collection, id, data)
			VALUES ($1, $2, $3::jsonb)
			ON CONFLICT (collection, id) DO UPDATE SET `+onConflict+`, updated_at = NOW()`,
			collection, id, body,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("set document: %w", err)
	}
	return nil
}

func (p *Postgres) Update(ctx context.Context, collection, id string, patch Document) error {
	_, err := p.update(ctx, collection, id, nil, patch)
	return err
}

func (p *Postgres) UpdateIf(ctx context.Context, collection, id string, conds []Filter, patch Document) (bool, error) {
	if err := validFilters(conds); err != nil {
		return false, err
	}
	return p.update(ctx, collection, id, conds, patch)
}

func (p *Postgres) update(ctx context.Context, collection, id string, conds []Filter, patch Document) (bool, error) {
	body, err := p.encode(patch)
	if err != nil {
		return false, err
	}

	args := []any{collection, id, body}
	where, args, err := p.whereClause(conds, args)
	if err != nil {
		return false, err
	}

	var applied, exists bool
	err = p.write(ctx, collection, id, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE documents SET data = data || $3::jsonb, updated_at = NOW()
			WHERE collection = $1 AND id = $2`+where,
			args...,
		)
		if err != nil {
			return err
		}
		applied = tag.RowsAffected() > 0
		if applied {
			exists = true
			return nil
		}
		return tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`,
			collection, id,
		).Scan(&exists)
	})
	if err != nil {
		return false, fmt.Errorf("update document: %w", err)
	}
	if !exists {
		return false, ErrNotFound
	}
	return applied, nil
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	err := p.write(ctx, collection, id, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (p *Postgres) Query(ctx context.Context, q Query) ([]Doc, error) {
	args := []any{q.Collection}
	sql := `SELECT id, data FROM documents WHERE collection = $1`
	if q.ID != "" {
		args = append(args, q.ID)
		sql += ` AND id = $` + strconv.Itoa(len(args))
	}

	where, args, err := p.whereClause(q.Where, args)
	if err != nil {
		return nil, err
	}
	sql += where

	if q.OrderBy != "" {
		args = append(args, q.OrderBy)
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		sql += fmt.Sprintf(` ORDER BY data -> $%d::text %s, id`, len(args), dir)
	} else {
		sql += ` ORDER BY id`
	}
	if q.Limit > 0 {
		sql += ` LIMIT ` + strconv.Itoa(q.Limit)
	}

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []Doc
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		data, err := decodeRaw(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Doc{ID: id, Data: data})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func (p *Postgres) Subscribe(ctx context.Context, q Query) (*Subscription, error) {
	return p.hub.subscribe(ctx, q)
}

// Listen holds one pooled connection on LISTEN and refreshes the
// subscriptions each notified write can affect. It returns nil once ctx ends.
func (p *Postgres) Listen(ctx context.Context) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `LISTEN `+NotifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("wait for notification: %w", err)
		}
		p.hub.notify(parseChange(n.Payload))
	}
}

// write runs fn and the change notification in one transaction, so the
// notification is only delivered once the write is committed.
func (p *Postgres) write(ctx context.Context, collection, id string, fn func(tx pgx.Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, changePayload(collection, id)); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return tx.Commit(ctx)
}

func (p *Postgres) whereClause(conds []Filter, args []any) (string, []any, error) {
	var sb strings.Builder
	now := p.clock.Now()
	for _, f := range conds {
		args = append(args, f.Field)
		field := len(args)
		switch f.Op {
		case OpAbsent:
			fmt.Fprintf(&sb, ` AND NOT jsonb_exists(data, $%d::text)`, field)
		case OpEqual:
			val, err := canonicalJSON(f.Value, now)
			if err != nil {
				return "", nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
			}
			args = append(args, string(val))
			fmt.Fprintf(&sb, ` AND data -> $%d::text = $%d::jsonb`, field, len(args))
		default:
			return "", nil, fmt.Errorf("%w: unsupported operator %q", ErrInvalidArgument, f.Op)
		}
	}
	return sb.String(), args, nil
}

func (p *Postgres) encode(data Document) (string, error) {
	doc, err := normalize(data, p.clock.Now())
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return string(b), nil
}

func decodeRaw(raw []byte) (Document, error) {
	doc := Document{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
