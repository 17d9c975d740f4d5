package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// ErrMiss is returned by Get when no entry exists for the key.
var ErrMiss = errors.New("cache miss")

// Store keeps serialized render results in Redis keyed by content hash.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Store)

// WithTTL sets the expiration for cached results. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

func New(address, password string, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
	})
	return NewFromClient(rdb, opts...)
}

func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "genscene:render:",
		ttl:    10 * time.Minute,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Key hashes everything an evaluation depends on. Overrides are encoded
// as JSON, whose map keys are sorted, so equal maps give equal keys.
// generation changes whenever something outside the scene that affects
// the result, such as the set of loaded assets, changes.
func Key(sceneJSON []byte, t float64, override map[string]any, generation uint64) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	h.Write(sceneJSON)
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatFloat(t, 'g', -1, 64)))
	h.Write([]byte{0})
	if len(override) > 0 {
		ov, err := json.Marshal(override)
		if err != nil {
			return "", fmt.Errorf("encode override: %w", err)
		}
		h.Write(ov)
	}
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatUint(generation, 10)))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("get from redis: %w", err)
	}
	return val, nil
}

func (s *Store) Set(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, s.key(key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set in redis: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
