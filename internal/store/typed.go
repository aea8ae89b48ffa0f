package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "github.com/SajivJess/Wally/pkg/errors"
)

// Typed is a collection of records of type T. Records are encoded to
// documents through their JSON tags and decoded back strictly: a stored
// document with fields T does not declare is rejected instead of silently
// truncated.
type Typed[T any] struct {
	coll     Collection
	resource string
}

// NewTyped binds collection name in s to T. resource names the record in
// error messages, e.g. "cart item".
func NewTyped[T any](s Store, collection, resource string) *Typed[T] {
	return &Typed[T]{coll: s.Collection(collection), resource: resource}
}

// Collection exposes the underlying untyped collection.
func (t *Typed[T]) Collection() Collection {
	return t.coll
}

func (t *Typed[T]) FindOne(ctx context.Context, filter Filter) (*T, error) {
	doc, err := t.coll.FindOne(ctx, filter)
	if err != nil {
		if errors.Is(err, ErrNoDocuments) {
			return nil, apperrors.NotFound(t.resource, describe(filter))
		}
		return nil, fmt.Errorf("find %s: %w", t.resource, err)
	}
	return t.decode(doc)
}

// FindMany never returns a nil slice.
func (t *Typed[T]) FindMany(ctx context.Context, filter Filter, limit int) ([]T, error) {
	docs, err := t.coll.FindMany(ctx, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", t.resource, err)
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		rec, err := t.decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (t *Typed[T]) InsertOne(ctx context.Context, rec *T) error {
	doc, err := t.encode(rec)
	if err != nil {
		return err
	}
	if err := t.coll.InsertOne(ctx, doc); err != nil {
		return t.insertError(err, doc.ID())
	}
	return nil
}

func (t *Typed[T]) InsertMany(ctx context.Context, recs []T) error {
	docs := make([]Document, 0, len(recs))
	for i := range recs {
		doc, err := t.encode(&recs[i])
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	if err := t.coll.InsertMany(ctx, docs); err != nil {
		return t.insertError(err, "")
	}
	return nil
}

func (t *Typed[T]) UpdateOne(ctx context.Context, filter Filter, update Update) (UpdateResult, error) {
	res, err := t.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update %s: %w", t.resource, err)
	}
	return res, nil
}

func (t *Typed[T]) DeleteOne(ctx context.Context, filter Filter) (int64, error) {
	n, err := t.coll.DeleteOne(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", t.resource, err)
	}
	return n, nil
}

func (t *Typed[T]) DeleteMany(ctx context.Context, filter Filter) (int64, error) {
	n, err := t.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", t.resource, err)
	}
	return n, nil
}

func (t *Typed[T]) Count(ctx context.Context, filter Filter) (int64, error) {
	n, err := t.coll.Count(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", t.resource, err)
	}
	return n, nil
}

// DistinctStrings returns the distinct values of a string field. Non-string
// values are skipped.
func (t *Typed[T]) DistinctStrings(ctx context.Context, field string, filter Filter) ([]string, error) {
	values, err := t.coll.Distinct(ctx, field, filter)
	if err != nil {
		return nil, fmt.Errorf("distinct %s.%s: %w", t.resource, field, err)
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// Upsert increments inc on the record matching filter, or inserts rec when
// there is none. It returns the record as stored.
func (t *Typed[T]) Upsert(ctx context.Context, filter Filter, inc map[string]int64, rec *T) (*T, error) {
	doc, err := t.encode(rec)
	if err != nil {
		return nil, err
	}
	stored, err := t.coll.Upsert(ctx, filter, inc, doc)
	if err != nil {
		return nil, t.insertError(err, doc.ID())
	}
	return t.decode(stored)
}

func (t *Typed[T]) insertError(err error, id string) error {
	if errors.Is(err, ErrDuplicateID) {
		return apperrors.AlreadyExists(t.resource, IDField, id)
	}
	return fmt.Errorf("insert %s: %w", t.resource, err)
}

func (t *Typed[T]) encode(rec *T) (Document, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("encode %s: %w", t.resource, err))
	}
	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("encode %s: %w", t.resource, err))
	}
	return doc, nil
}

func (t *Typed[T]) decode(doc Document) (*T, error) {
	clean := doc
	if _, ok := doc["_id"]; ok {
		clean = doc.Clone()
		delete(clean, "_id")
	}

	data, err := json.Marshal(clean)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("decode %s: %w", t.resource, err))
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var rec T
	if err := dec.Decode(&rec); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("decode %s %s: %w", t.resource, doc.ID(), err))
	}
	return &rec, nil
}

func describe(filter Filter) string {
	if id, ok := filter[IDField].(string); ok {
		return id
	}
	return ValueKey(map[string]any(filter))
}
