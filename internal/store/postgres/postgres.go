// Package postgres implements the record store on a single PostgreSQL table
// of JSONB documents.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/SajivJess/Wally/internal/store"
	"github.com/SajivJess/Wally/pkg/database"
	apperrors "github.com/SajivJess/Wally/pkg/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the schema migrations for the documents table, suitable
// for database.RunMigrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	db database.DBTX
}

// New creates a store over db, typically a *pgxpool.Pool.
func New(db database.DBTX) *Store {
	return &Store{db: db}
}

func (s *Store) Driver() string { return store.DriverPostgres }

func (s *Store) Collection(name string) store.Collection {
	return &Collection{db: s.db, name: name}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return classify(fmt.Errorf("postgres ping: %w", err))
	}
	return nil
}

// Close closes the underlying pool when it supports closing.
func (s *Store) Close(context.Context) error {
	if c, ok := s.db.(interface{ Close() }); ok {
		c.Close()
	}
	return nil
}

// Collection is the set of rows in documents sharing one collection name.
type Collection struct {
	db   database.DBTX
	name string
}

func (c *Collection) Name() string { return c.name }

// where renders filter as a WHERE clause. Equality conditions collapse into
// one containment test; each In condition checks that the listed values
// contain the document's field.
func (c *Collection) where(filter store.Filter) (string, []any, error) {
	clause := []string{"collection = $1"}
	args := []any{c.name}

	equal := make(map[string]any)
	var inFields []string
	for field, v := range filter {
		if _, ok := v.(store.In); ok {
			inFields = append(inFields, field)
			continue
		}
		equal[field] = v
	}

	if len(equal) > 0 {
		encoded, err := json.Marshal(equal)
		if err != nil {
			return "", nil, fmt.Errorf("encode filter: %w", err)
		}
		args = append(args, string(encoded))
		clause = append(clause, "doc @> $"+strconv.Itoa(len(args))+"::jsonb")
	}

	sort.Strings(inFields)
	for _, field := range inFields {
		encoded, err := json.Marshal(filter[field])
		if err != nil {
			return "", nil, fmt.Errorf("encode filter: %w", err)
		}
		args = append(args, string(encoded), field)
		n := len(args)
		clause = append(clause, fmt.Sprintf("$%d::jsonb @> jsonb_build_array(doc -> $%d)", n-1, n))
	}

	return strings.Join(clause, " AND "), args, nil
}

func (c *Collection) FindOne(ctx context.Context, filter store.Filter) (store.Document, error) {
	where, args, err := c.where(filter)
	if err != nil {
		return nil, err
	}
	query := "SELECT doc FROM documents WHERE " + where + " ORDER BY seq LIMIT 1"

	var raw []byte
	if err := c.db.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNoDocuments
		}
		return nil, classify(fmt.Errorf("find %s: %w", c.name, err))
	}
	return store.DecodeDocument(raw)
}

func (c *Collection) FindMany(ctx context.Context, filter store.Filter, limit int) ([]store.Document, error) {
	where, args, err := c.where(filter)
	if err != nil {
		return nil, err
	}
	query := "SELECT doc FROM documents WHERE " + where + " ORDER BY seq"
	if limit > 0 {
		args = append(args, limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := c.db.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(fmt.Errorf("list %s: %w", c.name, err))
	}
	defer rows.Close()

	docs := []store.Document{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.name, err)
		}
		doc, err := store.DecodeDocument(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate %s: %w", c.name, err))
	}
	return docs, nil
}

const insertQuery = `INSERT INTO documents (collection, doc_id, doc) VALUES ($1, $2, $3)`

func (c *Collection) InsertOne(ctx context.Context, doc store.Document) error {
	return c.insert(ctx, c.db, doc)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (c *Collection) insert(ctx context.Context, db execer, doc store.Document) error {
	id := doc.ID()
	if id == "" {
		return apperrors.InvalidInput(fmt.Sprintf("%s document has no id", c.name))
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.name, id, err)
	}
	if _, err := db.Exec(ctx, insertQuery, c.name, id, string(data)); err != nil {
		if isUniqueViolation(err) {
			return store.ErrDuplicateID
		}
		return classify(fmt.Errorf("insert %s: %w", c.name, err))
	}
	return nil
}

// InsertMany inserts all documents in one transaction.
func (c *Collection) InsertMany(ctx context.Context, docs []store.Document) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return classify(fmt.Errorf("begin insert %s: %w", c.name, err))
	}
	for _, doc := range docs {
		if err := c.insert(ctx, tx, doc); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(fmt.Errorf("commit insert %s: %w", c.name, err))
	}
	return nil
}

// lockFirst selects the first matching row for update inside tx.
func (c *Collection) lockFirst(ctx context.Context, tx pgx.Tx, filter store.Filter) (int64, store.Document, error) {
	where, args, err := c.where(filter)
	if err != nil {
		return 0, nil, err
	}
	query := "SELECT seq, doc FROM documents WHERE " + where + " ORDER BY seq LIMIT 1 FOR UPDATE"

	var (
		seq int64
		raw []byte
	)
	if err := tx.QueryRow(ctx, query, args...).Scan(&seq, &raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil, store.ErrNoDocuments
		}
		return 0, nil, classify(fmt.Errorf("lock %s: %w", c.name, err))
	}
	doc, err := store.DecodeDocument(raw)
	if err != nil {
		return 0, nil, err
	}
	return seq, doc, nil
}

const updateQuery = `UPDATE documents SET doc = $1, updated_at = NOW() WHERE seq = $2`

func (c *Collection) UpdateOne(ctx context.Context, filter store.Filter, update store.Update) (store.UpdateResult, error) {
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return store.UpdateResult{}, classify(fmt.Errorf("begin update %s: %w", c.name, err))
	}

	seq, doc, err := c.lockFirst(ctx, tx, filter)
	if errors.Is(err, store.ErrNoDocuments) {
		_ = tx.Rollback(ctx)
		return store.UpdateResult{}, nil
	}
	if err != nil {
		_ = tx.Rollback(ctx)
		return store.UpdateResult{}, err
	}

	changed, err := store.ApplyUpdate(doc, update)
	if err != nil {
		_ = tx.Rollback(ctx)
		return store.UpdateResult{}, apperrors.InvalidInput(err.Error())
	}
	if !changed {
		_ = tx.Rollback(ctx)
		return store.UpdateResult{Matched: 1}, nil
	}

	if err := c.write(ctx, tx, seq, doc); err != nil {
		_ = tx.Rollback(ctx)
		return store.UpdateResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return store.UpdateResult{}, classify(fmt.Errorf("commit update %s: %w", c.name, err))
	}
	return store.UpdateResult{Matched: 1, Modified: 1}, nil
}

func (c *Collection) write(ctx context.Context, tx pgx.Tx, seq int64, doc store.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.name, doc.ID(), err)
	}
	if _, err := tx.Exec(ctx, updateQuery, string(data), seq); err != nil {
		return classify(fmt.Errorf("update %s: %w", c.name, err))
	}
	return nil
}

func (c *Collection) DeleteOne(ctx context.Context, filter store.Filter) (int64, error) {
	where, args, err := c.where(filter)
	if err != nil {
		return 0, err
	}
	query := "DELETE FROM documents WHERE seq = (SELECT seq FROM documents WHERE " + where + " ORDER BY seq LIMIT 1)"

	tag, err := c.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, classify(fmt.Errorf("delete %s: %w", c.name, err))
	}
	return tag.RowsAffected(), nil
}

func (c *Collection) DeleteMany(ctx context.Context, filter store.Filter) (int64, error) {
	where, args, err := c.where(filter)
	if err != nil {
		return 0, err
	}

	tag, err := c.db.Exec(ctx, "DELETE FROM documents WHERE "+where, args...)
	if err != nil {
		return 0, classify(fmt.Errorf("delete %s: %w", c.name, err))
	}
	return tag.RowsAffected(), nil
}

func (c *Collection) Distinct(ctx context.Context, field string, filter store.Filter) ([]any, error) {
	where, args, err := c.where(filter)
	if err != nil {
		return nil, err
	}
	args = append(args, field)
	n := "$" + strconv.Itoa(len(args))
	query := "SELECT doc -> " + n + " FROM documents WHERE " + where +
		" AND doc -> " + n + " IS NOT NULL GROUP BY doc -> " + n + " ORDER BY MIN(seq)"

	rows, err := c.db.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(fmt.Errorf("distinct %s.%s: %w", c.name, field, err))
	}
	defer rows.Close()

	values := []any{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s.%s: %w", c.name, field, err)
		}
		v, err := decodeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s.%s: %w", c.name, field, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate %s.%s: %w", c.name, field, err))
	}
	return values, nil
}

func (c *Collection) Count(ctx context.Context, filter store.Filter) (int64, error) {
	where, args, err := c.where(filter)
	if err != nil {
		return 0, err
	}

	var n int64
	if err := c.db.QueryRow(ctx, "SELECT COUNT(*) FROM documents WHERE "+where, args...).Scan(&n); err != nil {
		return 0, classify(fmt.Errorf("count %s: %w", c.name, err))
	}
	return n, nil
}

// Upsert serializes concurrent upserts for the same filter with a
// transaction-scoped advisory lock, so two writers cannot both miss the
// match and insert twice.
func (c *Collection) Upsert(ctx context.Context, filter store.Filter, inc map[string]int64, doc store.Document) (store.Document, error) {
	lockKey, err := json.Marshal(map[string]any(filter))
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}

	tx, err := c.db.Begin(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("begin upsert %s: %w", c.name, err))
	}

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", c.name+":"+string(lockKey)); err != nil {
		_ = tx.Rollback(ctx)
		return nil, classify(fmt.Errorf("lock upsert %s: %w", c.name, err))
	}

	seq, stored, err := c.lockFirst(ctx, tx, filter)
	switch {
	case err == nil:
		if _, err := store.ApplyUpdate(stored, store.Update{Inc: inc}); err != nil {
			_ = tx.Rollback(ctx)
			return nil, apperrors.InvalidInput(err.Error())
		}
		if err := c.write(ctx, tx, seq, stored); err != nil {
			_ = tx.Rollback(ctx)
			return nil, err
		}
	case errors.Is(err, store.ErrNoDocuments):
		stored, err = store.SeedDocument(filter, inc, doc)
		if err != nil {
			_ = tx.Rollback(ctx)
			return nil, apperrors.InvalidInput(err.Error())
		}
		if err := c.insert(ctx, tx, stored); err != nil {
			_ = tx.Rollback(ctx)
			return nil, err
		}
	default:
		_ = tx.Rollback(ctx)
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classify(fmt.Errorf("commit upsert %s: %w", c.name, err))
	}
	return stored, nil
}

func decodeValue(raw []byte) (any, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "23505")
}

func classify(err error) error {
	if pgconn.Timeout(err) {
		return apperrors.StorageUnavailable(err)
	}
	return store.Classify(err)
}
