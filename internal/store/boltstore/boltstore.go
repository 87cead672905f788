// Package boltstore implements store.RepositoryStore and
// store.ConversationStore over go.etcd.io/bbolt, an embedded KV engine
// already present in the module graph as a transitive dependency of the
// bleve keyword index. Repositories and conversations are document-shaped
// records looked up by id, not vector-shaped, so a KV store fits them
// better than the qdrant collection used for chunks (spec §4.2).
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sourcelens/coderag/internal/models"

	"github.com/sourcelens/coderag/internal/store"

	bolt "go.etcd.io/bbolt"
)

var (
	_ store.RepositoryStore   = (*RepositoryStore)(nil)
	_ store.ConversationStore = (*ConversationStore)(nil)
)

var (
	repositoriesBucket  = []byte("repositories")
	conversationsBucket = []byte("conversations")
)

// DB opens a shared bbolt handle and hands out the RepositoryStore and
// ConversationStore views over it. Both collections live in one file since
// spec §4.2 calls for a single embedded store, not two.
type DB struct {
	db  *bolt.DB
	ttl time.Duration
}

// Option configures a DB.
type Option func(*DB)

// WithTTL enables the conversation-sweep goroutine with the given retention
// window. Spec §6.3 suggests ~7 days.
func WithTTL(ttl time.Duration) Option {
	return func(d *DB) { d.ttl = ttl }
}

// Open opens (creating if absent) a bbolt database at path.
func Open(path string, opts ...Option) (*DB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(repositoriesBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(conversationsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: init buckets: %w", err)
	}

	d := &DB{db: db}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Repositories returns the store.RepositoryStore view.
func (d *DB) Repositories() *RepositoryStore { return &RepositoryStore{db: d.db} }

// Conversations returns the store.ConversationStore view.
func (d *DB) Conversations() *ConversationStore { return &ConversationStore{db: d.db, ttl: d.ttl} }

func (d *DB) Close() error { return d.db.Close() }

// RepositoryStore implements store.RepositoryStore.
type RepositoryStore struct{ db *bolt.DB }

func (s *RepositoryStore) Upsert(ctx context.Context, repo models.Repository) error {
	data, err := json.Marshal(repo)
	if err != nil {
		return fmt.Errorf("boltstore: encode repository %s: %w", repo.ID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(repositoriesBucket).Put([]byte(repo.ID), data)
	})
}

func (s *RepositoryStore) Get(ctx context.Context, id string) (*models.Repository, error) {
	var repo *models.Repository
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(repositoriesBucket).Get([]byte(id))
		if data == nil {
			return nil
		}
		var r models.Repository
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		repo = &r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: get repository %s: %w", id, err)
	}
	return repo, nil
}

func (s *RepositoryStore) ListAll(ctx context.Context) ([]models.Repository, error) {
	var out []models.Repository
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(repositoriesBucket).ForEach(func(k, v []byte) error {
			var r models.Repository
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			out = append(out, r)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: list repositories: %w", err)
	}
	return out, nil
}

func (s *RepositoryStore) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(repositoriesBucket).Delete([]byte(id))
	})
}

func (s *RepositoryStore) Close() error { return nil }

// ConversationStore implements store.ConversationStore.
type ConversationStore struct {
	db  *bolt.DB
	ttl time.Duration
}

// Upsert bumps UpdatedAt and persists conv (spec §4.2).
func (s *ConversationStore) Upsert(ctx context.Context, conv models.ConversationContext) error {
	conv.UpdatedAt = time.Now()
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("boltstore: encode conversation %s: %w", conv.ID, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(conversationsBucket).Put([]byte(conv.ID), data)
	})
}

func (s *ConversationStore) Get(ctx context.Context, id string) (*models.ConversationContext, error) {
	var conv *models.ConversationContext
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(conversationsBucket).Get([]byte(id))
		if data == nil {
			return nil
		}
		var c models.ConversationContext
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		conv = &c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: get conversation %s: %w", id, err)
	}
	return conv, nil
}

func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(conversationsBucket).Delete([]byte(id))
	})
}

func (s *ConversationStore) Close() error { return nil }

// Sweep runs an in-process TTL sweep every interval until ctx is cancelled.
// It's a best-effort cleanup: conversations remain correctly readable and
// writable if the sweep never runs.
func (s *ConversationStore) Sweep(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.sweepOnce()
		}
	}
}

func (s *ConversationStore) sweepOnce() error {
	cutoff := time.Now().Add(-s.ttl)
	var expired [][]byte

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(conversationsBucket)
		return b.ForEach(func(k, v []byte) error {
			var conv models.ConversationContext
			if err := json.Unmarshal(v, &conv); err != nil {
				return nil
			}
			if conv.UpdatedAt.Before(cutoff) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
	})
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(conversationsBucket)
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
