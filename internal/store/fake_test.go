package store

import (
	"context"
	"sync"
)

// memStore is a minimal in-memory Store used to exercise the decorators and
// typed access without a backend.
type memStore struct {
	mu    sync.Mutex
	colls map[string]*memCollection
	// failNext makes the next n operations on any collection return err.
	failNext int
	failErr  error
	calls    int
}

func newMemStore() *memStore {
	return &memStore{colls: map[string]*memCollection{}}
}

func (s *memStore) Driver() string { return "memory" }

func (s *memStore) Collection(name string) Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.colls[name]
	if !ok {
		c = &memCollection{name: name, store: s}
		s.colls[name] = c
	}
	return c
}

func (s *memStore) Ping(context.Context) error { return s.fail() }

func (s *memStore) Close(context.Context) error { return nil }

func (s *memStore) failWith(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
	s.failErr = err
}

func (s *memStore) fail() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failNext > 0 {
		s.failNext--
		return s.failErr
	}
	return nil
}

type memCollection struct {
	name  string
	store *memStore
	docs  []Document
}

func (c *memCollection) Name() string { return c.name }

func (c *memCollection) FindOne(_ context.Context, filter Filter) (Document, error) {
	if err := c.store.fail(); err != nil {
		return nil, err
	}
	for _, d := range c.docs {
		if Matches(d, filter) {
			return d.Clone(), nil
		}
	}
	return nil, ErrNoDocuments
}

func (c *memCollection) FindMany(_ context.Context, filter Filter, limit int) ([]Document, error) {
	if err := c.store.fail(); err != nil {
		return nil, err
	}
	var out []Document
	for _, d := range c.docs {
		if Matches(d, filter) {
			out = append(out, d.Clone())
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (c *memCollection) InsertOne(_ context.Context, doc Document) error {
	if err := c.store.fail(); err != nil {
		return err
	}
	for _, d := range c.docs {
		if d.ID() == doc.ID() {
			return ErrDuplicateID
		}
	}
	c.docs = append(c.docs, doc.Clone())
	return nil
}

func (c *memCollection) InsertMany(ctx context.Context, docs []Document) error {
	for _, d := range docs {
		if err := c.InsertOne(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (c *memCollection) UpdateOne(_ context.Context, filter Filter, update Update) (UpdateResult, error) {
	if err := c.store.fail(); err != nil {
		return UpdateResult{}, err
	}
	for _, d := range c.docs {
		if Matches(d, filter) {
			changed, err := ApplyUpdate(d, update)
			if err != nil {
				return UpdateResult{}, err
			}
			res := UpdateResult{Matched: 1}
			if changed {
				res.Modified = 1
			}
			return res, nil
		}
	}
	return UpdateResult{}, nil
}

func (c *memCollection) DeleteOne(_ context.Context, filter Filter) (int64, error) {
	if err := c.store.fail(); err != nil {
		return 0, err
	}
	for i, d := range c.docs {
		if Matches(d, filter) {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (c *memCollection) DeleteMany(_ context.Context, filter Filter) (int64, error) {
	if err := c.store.fail(); err != nil {
		return 0, err
	}
	kept := c.docs[:0]
	var n int64
	for _, d := range c.docs {
		if Matches(d, filter) {
			n++
			continue
		}
		kept = append(kept, d)
	}
	c.docs = kept
	return n, nil
}

func (c *memCollection) Distinct(_ context.Context, field string, filter Filter) ([]any, error) {
	if err := c.store.fail(); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []any
	for _, d := range c.docs {
		v, ok := d[field]
		if !ok || !Matches(d, filter) || seen[ValueKey(v)] {
			continue
		}
		seen[ValueKey(v)] = true
		out = append(out, v)
	}
	return out, nil
}

func (c *memCollection) Count(_ context.Context, filter Filter) (int64, error) {
	if err := c.store.fail(); err != nil {
		return 0, err
	}
	var n int64
	for _, d := range c.docs {
		if Matches(d, filter) {
			n++
		}
	}
	return n, nil
}

func (c *memCollection) Upsert(_ context.Context, filter Filter, inc map[string]int64, doc Document) (Document, error) {
	if err := c.store.fail(); err != nil {
		return nil, err
	}
	for _, d := range c.docs {
		if Matches(d, filter) {
			if _, err := ApplyUpdate(d, Update{Inc: inc}); err != nil {
				return nil, err
			}
			return d.Clone(), nil
		}
	}
	seeded, err := SeedDocument(filter, inc, doc)
	if err != nil {
		return nil, err
	}
	c.docs = append(c.docs, seeded)
	return seeded.Clone(), nil
}
