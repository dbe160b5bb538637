package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"

	"instacollector/pkg/classify"
	"instacollector/pkg/config"
	"instacollector/pkg/logger"
)

// Collection names owned by this subsystem.
const (
	CollectionUsers = "users"
	CollectionPosts = "posts"
)

// Store is the document store backing the collector: two collections
// keyed by entity id, with a uniqueness constraint making re-ingestion
// an overwrite rather than a duplicate row.
type Store struct {
	db     *sqlx.DB
	logger logger.Logger
}

// Open connects to the store, applies pragmas and ensures the schema
// including the unique id indexes.
func Open(cfg *config.StorageConfig, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	if dir := filepath.Dir(cfg.Path); dir != "." && cfg.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL allows the cursor-driven sweeps to read while buffers flush.
	dsn := fmt.Sprintf("%s?_journal=WAL&_synchronous=NORMAL&_busy_timeout=%d",
		cfg.Path, cfg.BusyTimeoutMS)

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLife)

	for _, pragma := range []string{
		"PRAGMA temp_store = MEMORY;",
		"PRAGMA foreign_keys = ON;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			log.WarnWithFields("Failed to set PRAGMA", map[string]interface{}{
				"pragma": pragma,
				"error":  err.Error(),
			})
		}
	}

	s := &Store{db: db, logger: log}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.InfoWithFields("Document store opened", map[string]interface{}{
		"path": cfg.Path,
	})

	return s, nil
}

// ensureSchema creates the collections and their unique id indexes.
func (s *Store) ensureSchema() error {
	for _, name := range []string{CollectionUsers, CollectionPosts} {
		schema := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id            TEXT PRIMARY KEY,
	info          TEXT NOT NULL,
	is_private    INTEGER NOT NULL DEFAULT 0,
	src           TEXT,
	dates_fetched TEXT,
	updated_at    TIMESTAMP NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_%[1]s_id ON %[1]s(id);
`, name)
		if _, err := s.db.Exec(schema); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Collection returns a handle scoped to one collection. Only the two
// known collection names are valid.
func (s *Store) Collection(name string) *Collection {
	if name != CollectionUsers && name != CollectionPosts {
		panic(fmt.Sprintf("unknown collection %q", name))
	}
	return &Collection{db: s.db, name: name, logger: s.logger}
}

// Users is shorthand for the users collection.
func (s *Store) Users() *Collection { return s.Collection(CollectionUsers) }

// Posts is shorthand for the posts collection.
func (s *Store) Posts() *Collection { return s.Collection(CollectionPosts) }

// Record is one stored entity row.
type Record struct {
	ID           string         `db:"id"`
	Info         []byte         `db:"info"`
	IsPrivate    bool           `db:"is_private"`
	Src          sql.NullString `db:"src"`
	DatesFetched sql.NullString `db:"dates_fetched"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// SrcNames decodes the stored filename list; nil when no media has been
// materialized for this record.
func (r *Record) SrcNames() []string {
	if !r.Src.Valid {
		return nil
	}
	var names []string
	if err := json.Unmarshal([]byte(r.Src.String), &names); err != nil {
		return nil
	}
	return names
}

// Dates decodes the stored datesFetched stamp list.
func (r *Record) Dates() []string {
	if !r.DatesFetched.Valid {
		return nil
	}
	var dates []string
	if err := json.Unmarshal([]byte(r.DatesFetched.String), &dates); err != nil {
		return nil
	}
	return dates
}

// Upsert is one staged write: replaces info and src, keyed by id.
type Upsert struct {
	ID        string
	Info      []byte
	IsPrivate bool
	Src       []string
}

// Filter selects records for a cursor. Zero value selects everything.
type Filter struct {
	// MissingSrc selects records with no materialized media
	MissingSrc bool
	// NotPrivate excludes records flagged private
	NotPrivate bool
	// MissingDates selects records never swept (no datesFetched field)
	MissingDates bool
	// WithoutDate excludes records whose datesFetched contains the stamp
	WithoutDate string
}

// Collection is a handle scoped to one collection table.
type Collection struct {
	db     *sqlx.DB
	name   string
	logger logger.Logger
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// BulkUpsert writes a batch of upserts in one transaction. The unique
// id index turns re-ingestion into an overwrite; last write wins within
// the batch.
func (c *Collection) BulkUpsert(ctx context.Context, batch []Upsert) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return wrapStoreErr(err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, fmt.Sprintf(`
INSERT INTO %s (id, info, is_private, src, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	info = excluded.info,
	is_private = excluded.is_private,
	src = excluded.src,
	updated_at = excluded.updated_at
`, c.name))
	if err != nil {
		return wrapStoreErr(err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, up := range batch {
		src, err := marshalNullable(up.Src)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, up.ID, up.Info, up.IsPrivate, src, now); err != nil {
			return wrapStoreErr(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return wrapStoreErr(err)
	}

	return nil
}

// Find opens a cursor over records matching the filter, in the
// storage's natural order.
func (c *Collection) Find(ctx context.Context, f Filter) (*Cursor, error) {
	query := fmt.Sprintf("SELECT id, info, is_private, src, dates_fetched, updated_at FROM %s", c.name)
	var clauses []string
	var args []interface{}

	if f.MissingSrc {
		clauses = append(clauses, "src IS NULL")
	}
	if f.NotPrivate {
		clauses = append(clauses, "is_private = 0")
	}
	if f.MissingDates {
		clauses = append(clauses, "dates_fetched IS NULL")
	}
	if f.WithoutDate != "" {
		clauses = append(clauses,
			fmt.Sprintf("(dates_fetched IS NULL OR NOT EXISTS (SELECT 1 FROM json_each(%s.dates_fetched) WHERE json_each.value = ?))", c.name))
		args = append(args, f.WithoutDate)
	}

	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}

	rows, err := c.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	return &Cursor{rows: rows}, nil
}

// Get fetches one record by id. Returns nil when absent.
func (c *Collection) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	err := c.db.GetContext(ctx, &rec,
		fmt.Sprintf("SELECT id, info, is_private, src, dates_fetched, updated_at FROM %s WHERE id = ?", c.name), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return &rec, nil
}

// Count returns the number of records matching everything.
func (c *Collection) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.GetContext(ctx, &n, fmt.Sprintf("SELECT COUNT(*) FROM %s", c.name)); err != nil {
		return 0, wrapStoreErr(err)
	}
	return n, nil
}

// MarkPrivate flips the privacy flag of one record, excluding it from
// checkpoint-eligible selection until an operator reverts it.
func (c *Collection) MarkPrivate(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET is_private = 1, updated_at = ? WHERE id = ?", c.name),
		time.Now().UTC(), id)
	return wrapStoreErr(err)
}

// SetSrc replaces the materialized filename list of one record.
func (c *Collection) SetSrc(ctx context.Context, id string, src []string) error {
	encoded, err := marshalNullable(src)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET src = ?, updated_at = ? WHERE id = ?", c.name),
		encoded, time.Now().UTC(), id)
	return wrapStoreErr(err)
}

// SetDatesFetched replaces the datesFetched stamp list of one record.
func (c *Collection) SetDatesFetched(ctx context.Context, id string, dates []string) error {
	encoded, err := json.Marshal(dates)
	if err != nil {
		return fmt.Errorf("failed to encode dates: %w", err)
	}
	_, err = c.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET dates_fetched = ?, updated_at = ? WHERE id = ?", c.name),
		string(encoded), time.Now().UTC(), id)
	return wrapStoreErr(err)
}

// Cursor streams records from a Find query.
type Cursor struct {
	rows   *sqlx.Rows
	next   *Record
	err    error
	primed bool
	done   bool
}

// HasNext reports whether another record or a pending error is
// available. After the row stream ends, including ending with a
// terminal error, it returns false.
func (cur *Cursor) HasNext() bool {
	cur.prime()
	return cur.next != nil || cur.err != nil
}

// Next returns the next record. A scan error covers a single row and
// iteration continues past it; a terminal stream error is delivered
// once and then the cursor reports exhaustion.
func (cur *Cursor) Next() (*Record, error) {
	cur.prime()
	rec, err := cur.next, cur.err
	cur.next, cur.err, cur.primed = nil, nil, false
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return rec, nil
}

func (cur *Cursor) prime() {
	if cur.primed || cur.done {
		return
	}
	cur.primed = true
	if cur.rows.Next() {
		var rec Record
		if err := cur.rows.StructScan(&rec); err != nil {
			cur.err = err
			return
		}
		cur.next = &rec
		return
	}
	// The stream is over for good, cleanly or not. Latch so the
	// terminal error surfaces exactly once instead of replaying on
	// every subsequent advance.
	cur.done = true
	cur.err = cur.rows.Err()
}

// Close releases the cursor.
func (cur *Cursor) Close() error {
	return cur.rows.Close()
}

// marshalNullable encodes a filename list, mapping nil onto SQL NULL.
func marshalNullable(names []string) (interface{}, error) {
	if names == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("failed to encode src names: %w", err)
	}
	return string(encoded), nil
}

// wrapStoreErr maps driver errors onto classified kinds so the drain
// loop can tell duplicates from outages.
func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}

	var serr sqlite3.Error
	if errors.As(err, &serr) {
		switch {
		case serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return classify.Newf(classify.KindDuplicateKey, "unique constraint failed: %v", err)
		case serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked:
			return classify.Newf(classify.KindStorageUnavailable, "database is locked: %v", err)
		}
	}
	if errors.Is(err, sql.ErrConnDone) {
		return classify.Newf(classify.KindStorageUnavailable, "connection closed: %v", err)
	}

	return err
}
