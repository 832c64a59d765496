package auth

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"api-harness/internal/observability"
)

// TokenStore maps usernames to issued tokens. Expired entries are removed
// when next read, never by a sweep.
type TokenStore interface {
	Get(ctx context.Context, username string) (string, bool, error)
	// Set overwrites any existing entry. A nil expireAt never expires.
	Set(ctx context.Context, username, token string, expireAt *time.Time) error
	Delete(ctx context.Context, username string) (bool, error)
	Reset(ctx context.Context) error
}

type MemoryTokenStore struct {
	mu      sync.Mutex
	entries map[string]TokenEntry
	clock   clockwork.Clock
	logger  *observability.Logger
}

func NewMemoryTokenStore(clock clockwork.Clock, logger *observability.Logger) *MemoryTokenStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &MemoryTokenStore{
		entries: make(map[string]TokenEntry),
		clock:   clock,
		logger:  logger,
	}
}

func (s *MemoryTokenStore) Get(_ context.Context, username string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[username]
	if !ok {
		s.logger.Info("mock_redis_token_miss", map[string]any{"username": username})
		return "", false, nil
	}

	now := s.clock.Now()
	if !entry.Valid(now) {
		delete(s.entries, username)
		s.logger.Warn("mock_redis_token_expired", map[string]any{
			"username":  username,
			"expire_at": entry.ExpireAt.UTC().Format(time.RFC3339Nano),
			"now":       now.UTC().Format(time.RFC3339Nano),
		})
		return "", false, nil
	}

	s.logger.Info("mock_redis_token_hit", map[string]any{"username": username})
	return entry.Token, true, nil
}

func (s *MemoryTokenStore) Set(_ context.Context, username, token string, expireAt *time.Time) error {
	entry := TokenEntry{Username: username, Token: token}
	fields := map[string]any{"username": username, "expire_at": "never"}
	if expireAt != nil {
		t := *expireAt
		entry.ExpireAt = &t
		fields["expire_at"] = t.UTC().Format(time.RFC3339Nano)
	}

	s.mu.Lock()
	s.entries[username] = entry
	s.mu.Unlock()

	s.logger.Info("mock_redis_token_set", fields)
	return nil
}

func (s *MemoryTokenStore) Delete(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[username]; !ok {
		s.logger.Warn("mock_redis_token_delete_miss", map[string]any{"username": username})
		return false, nil
	}
	delete(s.entries, username)

	s.logger.Info("mock_redis_token_deleted", map[string]any{"username": username})
	return true, nil
}

func (s *MemoryTokenStore) Reset(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]TokenEntry)
	s.mu.Unlock()

	s.logger.Info("mock_redis_reset", nil)
	return nil
}

// Len counts stored entries, expired ones included.
func (s *MemoryTokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
