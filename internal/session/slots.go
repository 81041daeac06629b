package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Slots keeps, per visitor and cart instance, the session key a guest cart
// was created under so it can be found again after login rotates the session.
type Slots interface {
	Put(ctx context.Context, visitorID, instance, sessionKey string) error
	Get(ctx context.Context, visitorID, instance string) (string, bool, error)
	Delete(ctx context.Context, visitorID, instance string) error
}

func slotKey(visitorID, instance string) string {
	return fmt.Sprintf("cart:slot:%s:%s", visitorID, instance)
}

// RedisSlots stores slots as plain keys that expire after ttl.
type RedisSlots struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a client and checks the server is reachable.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func NewRedisSlots(client *redis.Client, ttl time.Duration) *RedisSlots {
	return &RedisSlots{client: client, ttl: ttl}
}

func (s *RedisSlots) Put(ctx context.Context, visitorID, instance, sessionKey string) error {
	if err := s.client.Set(ctx, slotKey(visitorID, instance), sessionKey, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis slots: put: %w", err)
	}
	return nil
}

func (s *RedisSlots) Get(ctx context.Context, visitorID, instance string) (string, bool, error) {
	v, err := s.client.Get(ctx, slotKey(visitorID, instance)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis slots: get: %w", err)
	}
	return v, true, nil
}

func (s *RedisSlots) Delete(ctx context.Context, visitorID, instance string) error {
	if err := s.client.Del(ctx, slotKey(visitorID, instance)).Err(); err != nil {
		return fmt.Errorf("redis slots: delete: %w", err)
	}
	return nil
}

// MemorySlots is a process-local Slots used when no Redis is configured.
type MemorySlots struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memorySlot
}

type memorySlot struct {
	sessionKey string
	expiresAt  time.Time
}

func NewMemorySlots(ttl time.Duration) *MemorySlots {
	return &MemorySlots{
		ttl:     ttl,
		now:     time.Now,
		entries: map[string]memorySlot{},
	}
}

func (s *MemorySlots) Put(_ context.Context, visitorID, instance, sessionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[slotKey(visitorID, instance)] = memorySlot{sessionKey: sessionKey, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemorySlots) Get(_ context.Context, visitorID, instance string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := slotKey(visitorID, instance)
	e, ok := s.entries[key]
	if !ok {
		return "", false, nil
	}
	if s.ttl > 0 && !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return "", false, nil
	}
	return e.sessionKey, true, nil
}

func (s *MemorySlots) Delete(_ context.Context, visitorID, instance string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, slotKey(visitorID, instance))
	return nil
}
