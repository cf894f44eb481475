// Package storage provides JSON document storage on NATS JetStream KV buckets.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// BucketConfig describes a KV bucket.
type BucketConfig struct {
	// Name is the bucket name (e.g. "DISCOGRID_SESSIONS").
	Name string

	// Description is stored with the bucket.
	Description string

	// TTL expires keys after this long. Zero keeps keys forever.
	TTL time.Duration

	// History is the number of revisions kept per key.
	History uint8
}

// Bucket stores JSON documents keyed by string. Every write returns the new
// revision, which can be passed to Update for optimistic concurrency.
type Bucket struct {
	kv jetstream.KeyValue
}

// OpenBucket creates the bucket if needed and returns a handle to it.
func OpenBucket(ctx context.Context, js jetstream.JetStream, cfg BucketConfig) (*Bucket, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	history := cfg.History
	if history == 0 {
		history = 5
	}

	// CreateOrUpdateKeyValue is idempotent, so concurrent starts are fine.
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Name,
		Description: cfg.Description,
		TTL:         cfg.TTL,
		History:     history,
	})
	if err != nil {
		return nil, fmt.Errorf("create/update kv bucket %s: %w", cfg.Name, err)
	}
	return &Bucket{kv: kv}, nil
}

// Create stores v under key, failing with ErrExists if the key is present.
func (b *Bucket) Create(ctx context.Context, key string, v any) (uint64, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("marshal %s: %w", key, err)
	}
	rev, err := b.kv.Create(ctx, key, data)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return 0, ErrExists
		}
		return 0, fmt.Errorf("create %s: %w", key, err)
	}
	return rev, nil
}

// Update stores v under key only if the key is still at revision.
func (b *Bucket) Update(ctx context.Context, key string, v any, revision uint64) (uint64, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("marshal %s: %w", key, err)
	}
	rev, err := b.kv.Update(ctx, key, data, revision)
	if err != nil {
		if isWrongRevision(err) {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("update %s: %w", key, err)
	}
	return rev, nil
}

// Get decodes the document under key into v and returns its revision.
func (b *Bucket) Get(ctx context.Context, key string, v any) (uint64, error) {
	entry, err := b.kv.Get(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(entry.Value(), v); err != nil {
		return 0, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return entry.Revision(), nil
}

// isNotFound checks if an error indicates a key was not found or was deleted.
func isNotFound(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted)
}

// isWrongRevision reports whether an update failed its revision check.
func isWrongRevision(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}
