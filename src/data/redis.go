package data

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	noncePrefix = "nonce:"
	nonceTTL    = 5 * time.Minute
)

// ErrNonceMissing is returned when no live challenge exists for an address.
var ErrNonceMissing = errors.New("nonce missing or expired")

// NonceStore keeps short-lived auth challenges.
type NonceStore interface {
	SetNonce(ctx context.Context, addr, nonce string) error
	GetAndDelNonce(ctx context.Context, addr string) (string, error)
}

func ConnectRedis(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opt), nil
}

type redisNonces struct {
	rdb *redis.Client
}

func NewRedisNonces(rdb *redis.Client) NonceStore {
	return &redisNonces{rdb: rdb}
}

func (r *redisNonces) SetNonce(ctx context.Context, addr, nonce string) error {
	return r.rdb.Set(ctx, noncePrefix+addr, nonce, nonceTTL).Err()
}

func (r *redisNonces) GetAndDelNonce(ctx context.Context, addr string) (string, error) {
	v, err := r.rdb.GetDel(ctx, noncePrefix+addr).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNonceMissing
	}
	return v, err
}

type memoryNonce struct {
	value   string
	expires time.Time
}

type memoryNonces struct {
	mu     sync.Mutex
	nonces map[string]memoryNonce
	now    func() time.Time
}

// NewMemoryNonces is the single-node fallback used when no Redis URL is set.
func NewMemoryNonces() NonceStore {
	return &memoryNonces{nonces: make(map[string]memoryNonce), now: time.Now}
}

func (m *memoryNonces) SetNonce(_ context.Context, addr, nonce string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonces[addr] = memoryNonce{value: nonce, expires: m.now().Add(nonceTTL)}
	return nil
}

func (m *memoryNonces) GetAndDelNonce(_ context.Context, addr string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nonces[addr]
	delete(m.nonces, addr)
	if !ok || m.now().After(n.expires) {
		return "", ErrNonceMissing
	}
	return n.value, nil
}
