package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"NewsPipeline/internal/ports"
)

const (
	itemsTable = "tracker_items"
	// uniqueViolation is the Postgres SQLSTATE for a duplicate key.
	uniqueViolation = "23505"
)

// Schema creates the board table used by PostgresTracker.
const Schema = `CREATE TABLE IF NOT EXISTS tracker_items (
    id          BIGSERIAL PRIMARY KEY,
    source_url  TEXT NOT NULL UNIQUE,
    title       TEXT NOT NULL,
    body        TEXT NOT NULL,
    destination TEXT NOT NULL,
    status      TEXT,
    item_date   DATE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresTracker keeps the board in a Postgres table.
type PostgresTracker struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	itemURL string
}

var _ ports.Tracker = (*PostgresTracker)(nil)

// NewPostgresTracker wires a sql.DB opened with the "postgres" driver.
// itemURLBase, when set, is prefixed to item ids to form ItemRef.URL.
func NewPostgresTracker(db *sql.DB, itemURLBase string) *PostgresTracker {
	return &PostgresTracker{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		itemURL: strings.TrimRight(itemURLBase, "/"),
	}
}

// Open connects to dsn and checks the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the board table if needed.
func (t *PostgresTracker) EnsureSchema(ctx context.Context) error {
	if _, err := t.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// CreateItem inserts a row. A duplicate source URL yields ports.ErrAlreadyExists
// together with the existing row id.
func (t *PostgresTracker) CreateItem(ctx context.Context, draft ports.ItemDraft) (ports.ItemRef, error) {
	query, args, err := t.builder.
		Insert(itemsTable).
		Columns("source_url", "title", "body", "destination").
		Values(draft.URL, draft.Title, draft.Body, draft.Destination).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return ports.ItemRef{}, fmt.Errorf("build insert: %w", err)
	}

	var id string
	err = t.db.QueryRowContext(ctx, query, args...).Scan(&id)
	if err == nil {
		return t.ref(id), nil
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return ports.ItemRef{}, fmt.Errorf("insert item: %w", err)
	}

	existing, lookupErr := t.idByURL(ctx, draft.URL)
	if lookupErr != nil {
		return ports.ItemRef{}, fmt.Errorf("%w (lookup failed: %v)", ports.ErrAlreadyExists, lookupErr)
	}
	return t.ref(existing), ports.ErrAlreadyExists
}

// UpdateFields sets status and date on the row with the given id.
func (t *PostgresTracker) UpdateFields(ctx context.Context, id string, fields ports.FieldUpdate) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("update fields: empty item id")
	}

	update := t.builder.
		Update(itemsTable).
		Set("status", fields.Status).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id})
	if !fields.Date.IsZero() {
		update = update.Set("item_date", fields.Date.UTC().Format("2006-01-02"))
	}

	query, args, err := update.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update item %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update item %s: not found", id)
	}
	return nil
}

// ListRecentURLs returns source URLs of rows created since the given time.
func (t *PostgresTracker) ListRecentURLs(ctx context.Context, since time.Time) ([]string, error) {
	query, args, err := t.builder.
		Select("source_url").
		From(itemsTable).
		Where(sq.GtOrEq{"created_at": since.UTC()}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan url: %w", err)
		}
		urls = append(urls, u)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return urls, nil
}

func (t *PostgresTracker) idByURL(ctx context.Context, sourceURL string) (string, error) {
	query, args, err := t.builder.
		Select("id").
		From(itemsTable).
		Where(sq.Eq{"source_url": sourceURL}).
		ToSql()
	if err != nil {
		return "", err
	}

	var id string
	if err := t.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return "", err
	}
	return id, nil
}

func (t *PostgresTracker) ref(id string) ports.ItemRef {
	ref := ports.ItemRef{ID: id}
	if t.itemURL != "" && id != "" {
		ref.URL = t.itemURL + "/" + id
	}
	return ref
}
