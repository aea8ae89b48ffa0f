// Package store defines the document record store used by every service.
//
// A store holds named collections of flat JSON documents keyed by their "id"
// field. Filters are equality maps; In expresses set membership. Every
// operation is atomic for a single document only. Backends live in the
// redis, postgres and mongo subpackages.
package store

import (
	"context"
	"errors"
)

// Supported drivers.
const (
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// IDField is the primary key of every document.
const IDField = "id"

var (
	// ErrNoDocuments is returned by FindOne when nothing matches the filter.
	ErrNoDocuments = errors.New("store: no documents")
	// ErrDuplicateID is returned by inserts when the id is already taken.
	ErrDuplicateID = errors.New("store: duplicate id")
)

// Document is a single record as stored.
type Document map[string]any

// ID returns the document's primary key, or "" when it has none.
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// Filter selects documents by field equality. An empty filter matches all.
type Filter map[string]any

// In matches a field whose value equals any of the listed values.
type In []any

// Update describes a single-document modification. Set replaces fields; Inc
// adds to integer fields, treating missing fields as zero.
type Update struct {
	Set Document
	Inc map[string]int64
}

// IsIdempotent reports whether applying the update twice has the same effect
// as applying it once.
func (u Update) IsIdempotent() bool {
	return len(u.Inc) == 0
}

// UpdateResult reports how many documents matched the filter and how many
// were actually changed.
type UpdateResult struct {
	Matched  int64
	Modified int64
}

// Collection is one named set of documents.
type Collection interface {
	Name() string

	// FindOne returns the first matching document in insertion order, or
	// ErrNoDocuments.
	FindOne(ctx context.Context, filter Filter) (Document, error)
	// FindMany returns matching documents in insertion order. A limit <= 0
	// returns all of them.
	FindMany(ctx context.Context, filter Filter, limit int) ([]Document, error)
	InsertOne(ctx context.Context, doc Document) error
	InsertMany(ctx context.Context, docs []Document) error
	// UpdateOne modifies the first matching document.
	UpdateOne(ctx context.Context, filter Filter, update Update) (UpdateResult, error)
	// DeleteOne removes the first matching document and reports the count.
	DeleteOne(ctx context.Context, filter Filter) (int64, error)
	DeleteMany(ctx context.Context, filter Filter) (int64, error)
	// Distinct returns the unique values of field across matching documents,
	// in order of first appearance.
	Distinct(ctx context.Context, field string, filter Filter) ([]any, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	// Upsert atomically increments inc on the first matching document, or
	// inserts doc with the filter fields and inc values applied when nothing
	// matches. It returns the document as stored after the operation.
	Upsert(ctx context.Context, filter Filter, inc map[string]int64, doc Document) (Document, error)
}

// Store is a handle to a record store. It is safe for concurrent use and must
// be closed on shutdown.
type Store interface {
	Driver() string
	Collection(name string) Collection
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
