// Package redis implements the record store on Redis.
//
// Each collection is a hash of id to JSON document plus a sorted set that
// records insertion order. A partitioned collection keeps one such pair per
// value of its partition field, so writers in different partitions never
// watch the same keys. Multi-key changes run in WATCH/MULTI transactions and
// are retried with jittered backoff when a concurrent writer touches the same
// partition.
package redis

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"

	"github.com/SajivJess/Wally/internal/store"
	apperrors "github.com/SajivJess/Wally/pkg/errors"
)

// DefaultKeyPrefix namespaces every key written by the store.
const DefaultKeyPrefix = "wally:"

const maxTxAttempts = 16

// Option configures a Store.
type Option func(*Store)

// WithPartition splits collection by the string value of field. Every
// document in the collection must carry field and updates cannot change it.
func WithPartition(collection, field string) Option {
	return func(s *Store) {
		s.partitions[collection] = field
	}
}

// Store is a Redis-backed store.Store.
type Store struct {
	client     *redis.Client
	prefix     string
	partitions map[string]string
}

// New creates a store over client. All keys are prefixed with prefix.
func New(client *redis.Client, prefix string, opts ...Option) *Store {
	s := &Store{client: client, prefix: prefix, partitions: make(map[string]string)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Driver() string { return store.DriverRedis }

func (s *Store) Collection(name string) store.Collection {
	base := s.prefix + name
	return &Collection{
		client:        s.client,
		name:          name,
		base:          base,
		partition:     s.partitions[name],
		seqKey:        base + ":seq",
		idsKey:        base + ":ids",
		partitionsKey: base + ":partitions",
	}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return classify(fmt.Errorf("redis ping: %w", err))
	}
	return nil
}

func (s *Store) Close(context.Context) error {
	return s.client.Close()
}

// Collection is one hash-backed collection.
//
// In a partitioned collection idsKey maps every id to its partition value and
// partitionsKey holds every partition value ever written. Neither is watched.
type Collection struct {
	client        *redis.Client
	name          string
	base          string
	partition     string
	seqKey        string
	idsKey        string
	partitionsKey string
}

func (c *Collection) Name() string { return c.name }

// shard is one hash and order set pair. An unpartitioned collection has a
// single shard with an empty value.
type shard struct {
	value    string
	docsKey  string
	orderKey string
}

func (c *Collection) shard(value string) shard {
	if c.partition == "" {
		return shard{docsKey: c.base, orderKey: c.base + ":order"}
	}
	// The hash tag keeps a partition's keys in one cluster slot.
	docs := c.base + ":{" + value + "}"
	return shard{value: value, docsKey: docs, orderKey: docs + ":order"}
}

// shardOf returns the shard filter is confined to. ok is false when the
// collection is partitioned and filter does not pin the partition field.
func (c *Collection) shardOf(filter store.Filter) (shard, bool) {
	if c.partition == "" {
		return c.shard(""), true
	}
	v, ok := filter[c.partition].(string)
	if !ok {
		return shard{}, false
	}
	return c.shard(v), true
}

func (c *Collection) docShard(doc store.Document) (shard, error) {
	if c.partition == "" {
		return c.shard(""), nil
	}
	v, ok := doc[c.partition].(string)
	if !ok || v == "" {
		return shard{}, apperrors.InvalidInput(fmt.Sprintf("%s document has no %s", c.name, c.partition))
	}
	return c.shard(v), nil
}

// shards lists the shards filter may touch. An id filter without the
// partition field is resolved through the id index.
func (c *Collection) shards(ctx context.Context, filter store.Filter) ([]shard, error) {
	if sh, ok := c.shardOf(filter); ok {
		return []shard{sh}, nil
	}
	if id, ok := filter[store.IDField].(string); ok {
		value, err := c.client.HGet(ctx, c.idsKey, id).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, classify(fmt.Errorf("redis hget %s ids: %w", c.name, err))
		}
		return []shard{c.shard(value)}, nil
	}
	values, err := c.client.SMembers(ctx, c.partitionsKey).Result()
	if err != nil {
		return nil, classify(fmt.Errorf("redis smembers %s: %w", c.name, err))
	}
	out := make([]shard, 0, len(values))
	for _, v := range values {
		out = append(out, c.shard(v))
	}
	return out, nil
}

// onlyPartition reports whether filter selects whole shards.
func (c *Collection) onlyPartition(filter store.Filter) bool {
	if len(filter) == 0 {
		return true
	}
	_, pinned := c.shardOf(filter)
	return c.partition != "" && pinned && len(filter) == 1
}

// reader is satisfied by both *redis.Client and *redis.Tx, so lookups can run
// inside a watched transaction.
type reader interface {
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) *redis.ZSliceCmd
	HMGet(ctx context.Context, key string, fields ...string) *redis.SliceCmd
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

type entry struct {
	id    string
	score float64
	sh    shard
	doc   store.Document
}

// load reads every document of sh in insertion order. Ids present in the
// order set but missing from the hash are skipped.
func (c *Collection) load(ctx context.Context, r reader, sh shard) ([]entry, error) {
	zs, err := r.ZRangeWithScores(ctx, sh.orderKey, 0, -1).Result()
	if err != nil {
		return nil, classify(fmt.Errorf("redis zrange %s: %w", c.name, err))
	}
	if len(zs) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(zs))
	for _, z := range zs {
		id, _ := z.Member.(string)
		ids = append(ids, id)
	}
	vals, err := r.HMGet(ctx, sh.docsKey, ids...).Result()
	if err != nil {
		return nil, classify(fmt.Errorf("redis hmget %s: %w", c.name, err))
	}

	out := make([]entry, 0, len(ids))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		doc, err := store.DecodeDocument([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", c.name, ids[i], err)
		}
		out = append(out, entry{id: ids[i], score: zs[i].Score, sh: sh, doc: doc})
	}
	return out, nil
}

// matching returns the entries of sh satisfying filter, stopping at limit
// when limit > 0. A filter on a single id skips the scan.
func (c *Collection) matching(ctx context.Context, r reader, sh shard, filter store.Filter, limit int) ([]entry, error) {
	if id, ok := filter[store.IDField].(string); ok {
		raw, err := r.HGet(ctx, sh.docsKey, id).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, classify(fmt.Errorf("redis hget %s: %w", c.name, err))
		}
		doc, err := store.DecodeDocument([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", c.name, id, err)
		}
		if !store.Matches(doc, filter) {
			return nil, nil
		}
		return []entry{{id: id, sh: sh, doc: doc}}, nil
	}

	all, err := c.load(ctx, r, sh)
	if err != nil {
		return nil, err
	}
	var out []entry
	for _, e := range all {
		if store.Matches(e.doc, filter) {
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// find returns matching entries across every shard filter may touch, merged
// into insertion order.
func (c *Collection) find(ctx context.Context, filter store.Filter, limit int) ([]entry, error) {
	shards, err := c.shards(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(shards) == 1 {
		return c.matching(ctx, c.client, shards[0], filter, limit)
	}

	var out []entry
	for _, sh := range shards {
		found, err := c.matching(ctx, c.client, sh, filter, limit)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	slices.SortStableFunc(out, func(a, b entry) int { return cmp.Compare(a.score, b.score) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// targets returns the shards a write with filter has to visit, ordered by
// the first matching document in each.
func (c *Collection) targets(ctx context.Context, filter store.Filter, limit int) ([]shard, error) {
	if sh, ok := c.shardOf(filter); ok {
		return []shard{sh}, nil
	}
	found, err := c.find(ctx, filter, limit)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(found))
	var out []shard
	for _, e := range found {
		if !seen[e.sh.value] {
			seen[e.sh.value] = true
			out = append(out, e.sh)
		}
	}
	return out, nil
}

func (c *Collection) FindOne(ctx context.Context, filter store.Filter) (store.Document, error) {
	found, err := c.find(ctx, filter, 1)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, store.ErrNoDocuments
	}
	return found[0].doc, nil
}

func (c *Collection) FindMany(ctx context.Context, filter store.Filter, limit int) ([]store.Document, error) {
	found, err := c.find(ctx, filter, limit)
	if err != nil {
		return nil, err
	}
	docs := make([]store.Document, 0, len(found))
	for _, e := range found {
		docs = append(docs, e.doc)
	}
	return docs, nil
}

// claimID reserves id for sh in the id index of a partitioned collection. A
// claim already held for sh is reused; inserts racing within one shard are
// ordered by its watched keys.
func (c *Collection) claimID(ctx context.Context, sh shard, id string) error {
	if c.partition == "" {
		return nil
	}
	for range maxTxAttempts {
		ok, err := c.client.HSetNX(ctx, c.idsKey, id, sh.value).Result()
		if err != nil {
			return classify(fmt.Errorf("redis hsetnx %s ids: %w", c.name, err))
		}
		if ok {
			return nil
		}
		owner, err := c.client.HGet(ctx, c.idsKey, id).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return classify(fmt.Errorf("redis hget %s ids: %w", c.name, err))
		}
		if owner != sh.value {
			return store.ErrDuplicateID
		}
		return nil
	}
	return apperrors.Conflict(fmt.Sprintf("too many concurrent writes to %s", c.name))
}

// releaseID drops the claim on id unless the document made it into sh.
func (c *Collection) releaseID(ctx context.Context, sh shard, id string) {
	if c.partition == "" {
		return
	}
	if exists, err := c.client.HExists(ctx, sh.docsKey, id).Result(); err != nil || exists {
		return
	}
	c.client.HDel(ctx, c.idsKey, id)
}

// put writes a new document to sh inside tx and records it in the
// collection's indexes.
func (c *Collection) put(ctx context.Context, tx *redis.Tx, sh shard, id string, data []byte) error {
	seq, err := tx.Incr(ctx, c.seqKey).Result()
	if err != nil {
		return classify(fmt.Errorf("redis incr %s: %w", c.name, err))
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, sh.docsKey, id, data)
		pipe.ZAdd(ctx, sh.orderKey, redis.Z{Score: float64(seq), Member: id})
		if c.partition != "" {
			pipe.HSet(ctx, c.idsKey, id, sh.value)
			pipe.SAdd(ctx, c.partitionsKey, sh.value)
		}
		return nil
	})
	return err
}

func (c *Collection) InsertOne(ctx context.Context, doc store.Document) error {
	id := doc.ID()
	if id == "" {
		return apperrors.InvalidInput(fmt.Sprintf("%s document has no id", c.name))
	}
	sh, err := c.docShard(doc)
	if err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.name, id, err)
	}

	if err := c.claimID(ctx, sh, id); err != nil {
		return err
	}
	err = c.transact(ctx, sh, func(tx *redis.Tx) error {
		exists, err := tx.HExists(ctx, sh.docsKey, id).Result()
		if err != nil {
			return classify(fmt.Errorf("redis hexists %s: %w", c.name, err))
		}
		if exists {
			return store.ErrDuplicateID
		}
		return c.put(ctx, tx, sh, id, data)
	})
	if err != nil {
		c.releaseID(ctx, sh, id)
	}
	return err
}

// InsertMany inserts documents in order and stops at the first failure;
// documents inserted before it stay.
func (c *Collection) InsertMany(ctx context.Context, docs []store.Document) error {
	for _, doc := range docs {
		if err := c.InsertOne(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collection) UpdateOne(ctx context.Context, filter store.Filter, update store.Update) (store.UpdateResult, error) {
	targets, err := c.targets(ctx, filter, 1)
	if err != nil {
		return store.UpdateResult{}, err
	}
	for _, sh := range targets {
		res, err := c.updateIn(ctx, sh, filter, update)
		if err != nil || res.Matched > 0 {
			return res, err
		}
	}
	return store.UpdateResult{}, nil
}

func (c *Collection) updateIn(ctx context.Context, sh shard, filter store.Filter, update store.Update) (store.UpdateResult, error) {
	var res store.UpdateResult
	err := c.transact(ctx, sh, func(tx *redis.Tx) error {
		res = store.UpdateResult{}
		found, err := c.matching(ctx, tx, sh, filter, 1)
		if err != nil || len(found) == 0 {
			return err
		}
		res.Matched = 1

		doc := found[0].doc
		if c.partition != "" {
			if v, ok := update.Set[c.partition]; ok && !store.EqualValues(v, doc[c.partition]) {
				return apperrors.InvalidInput(fmt.Sprintf("%s cannot change %s", c.name, c.partition))
			}
		}
		changed, err := store.ApplyUpdate(doc, update)
		if err != nil {
			return apperrors.InvalidInput(err.Error())
		}
		if !changed {
			return nil
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", c.name, found[0].id, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, sh.docsKey, found[0].id, data)
			return nil
		})
		if err == nil {
			res.Modified = 1
		}
		return err
	})
	if err != nil {
		return store.UpdateResult{}, err
	}
	return res, nil
}

func (c *Collection) DeleteOne(ctx context.Context, filter store.Filter) (int64, error) {
	return c.delete(ctx, filter, 1)
}

func (c *Collection) DeleteMany(ctx context.Context, filter store.Filter) (int64, error) {
	return c.delete(ctx, filter, 0)
}

func (c *Collection) delete(ctx context.Context, filter store.Filter, limit int) (int64, error) {
	targets, err := c.targets(ctx, filter, limit)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, sh := range targets {
		remaining := 0
		if limit > 0 {
			remaining = limit - int(total)
			if remaining <= 0 {
				break
			}
		}
		n, err := c.deleteIn(ctx, sh, filter, remaining)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (c *Collection) deleteIn(ctx context.Context, sh shard, filter store.Filter, limit int) (int64, error) {
	var deleted int64
	err := c.transact(ctx, sh, func(tx *redis.Tx) error {
		deleted = 0
		found, err := c.matching(ctx, tx, sh, filter, limit)
		if err != nil || len(found) == 0 {
			return err
		}
		ids := make([]string, 0, len(found))
		members := make([]any, 0, len(found))
		for _, e := range found {
			ids = append(ids, e.id)
			members = append(members, e.id)
		}
		var hdel *redis.IntCmd
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			hdel = pipe.HDel(ctx, sh.docsKey, ids...)
			pipe.ZRem(ctx, sh.orderKey, members...)
			if c.partition != "" {
				pipe.HDel(ctx, c.idsKey, ids...)
			}
			return nil
		})
		if err != nil {
			return err
		}
		deleted = hdel.Val()
		return nil
	})
	return deleted, err
}

func (c *Collection) Distinct(ctx context.Context, field string, filter store.Filter) ([]any, error) {
	found, err := c.find(ctx, filter, 0)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	values := []any{}
	for _, e := range found {
		v, ok := e.doc[field]
		if !ok {
			continue
		}
		key := store.ValueKey(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		values = append(values, v)
	}
	return values, nil
}

func (c *Collection) Count(ctx context.Context, filter store.Filter) (int64, error) {
	if c.onlyPartition(filter) {
		shards, err := c.shards(ctx, filter)
		if err != nil {
			return 0, err
		}
		var total int64
		for _, sh := range shards {
			n, err := c.client.HLen(ctx, sh.docsKey).Result()
			if err != nil {
				return 0, classify(fmt.Errorf("redis hlen %s: %w", c.name, err))
			}
			total += n
		}
		return total, nil
	}
	found, err := c.find(ctx, filter, 0)
	if err != nil {
		return 0, err
	}
	return int64(len(found)), nil
}

func (c *Collection) Upsert(ctx context.Context, filter store.Filter, inc map[string]int64, doc store.Document) (store.Document, error) {
	sh, ok := c.shardOf(filter)
	if !ok {
		found, err := c.find(ctx, filter, 1)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			sh = found[0].sh
		} else {
			seeded, err := store.SeedDocument(filter, inc, doc)
			if err != nil {
				return nil, apperrors.InvalidInput(err.Error())
			}
			if sh, err = c.docShard(seeded); err != nil {
				return nil, err
			}
		}
	}

	var stored store.Document
	claimed := ""
	err := c.transact(ctx, sh, func(tx *redis.Tx) error {
		found, err := c.matching(ctx, tx, sh, filter, 1)
		if err != nil {
			return err
		}

		if len(found) > 0 {
			stored = found[0].doc
			if _, err := store.ApplyUpdate(stored, store.Update{Inc: inc}); err != nil {
				return apperrors.InvalidInput(err.Error())
			}
			data, err := json.Marshal(stored)
			if err != nil {
				return fmt.Errorf("encode %s/%s: %w", c.name, found[0].id, err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, sh.docsKey, found[0].id, data)
				return nil
			})
			return err
		}

		seeded, err := store.SeedDocument(filter, inc, doc)
		if err != nil {
			return apperrors.InvalidInput(err.Error())
		}
		id := seeded.ID()
		if claimed != id {
			if err := c.claimID(ctx, sh, id); err != nil {
				return err
			}
			claimed = id
		}
		exists, err := tx.HExists(ctx, sh.docsKey, id).Result()
		if err != nil {
			return classify(fmt.Errorf("redis hexists %s: %w", c.name, err))
		}
		if exists {
			return store.ErrDuplicateID
		}
		data, err := json.Marshal(seeded)
		if err != nil {
			return fmt.Errorf("encode %s/%s: %w", c.name, id, err)
		}
		if err := c.put(ctx, tx, sh, id, data); err != nil {
			return err
		}
		// Re-read through JSON so the caller sees stored types.
		stored, err = store.DecodeDocument(data)
		return err
	})
	if claimed != "" && (err != nil || stored.ID() != claimed) {
		c.releaseID(ctx, sh, claimed)
	}
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// txBackOff spaces out retries of a transaction that lost a WATCH race:
// about 1ms, doubling to at most 50ms, with ±50% jitter.
func txBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.RandomizationFactor = 0.5
	b.Multiplier = 2
	b.MaxInterval = 50 * time.Millisecond
	return b
}

// transact runs fn with the shard's keys watched, retrying when another
// client modified them before EXEC.
func (c *Collection) transact(ctx context.Context, sh shard, fn func(tx *redis.Tx) error) error {
	b := txBackOff()
	for attempt := 1; ; attempt++ {
		err := c.client.Watch(ctx, fn, sh.docsKey, sh.orderKey)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return classify(err)
		}
		if attempt == maxTxAttempts {
			break
		}
		txRetries.WithLabelValues(c.name).Inc()

		timer := time.NewTimer(b.NextBackOff())
		select {
		case <-ctx.Done():
			timer.Stop()
			return classify(ctx.Err())
		case <-timer.C:
		}
	}
	return apperrors.Conflict(fmt.Sprintf("too many concurrent writes to %s", c.name))
}

func classify(err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return apperrors.StorageUnavailable(err)
	}
	return store.Classify(err)
}
