package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"api-harness/internal/observability"
)

const DefaultLockThreshold = 5

// UserStore is the user table capability. Unknown usernames yield
// ErrUserNotFound rather than a zero record.
type UserStore interface {
	Query(ctx context.Context, username string) (UserRecord, error)
	// UpdateFailCount with increment=true counts a failure on an active
	// account (locking it at the threshold) and is a successful no-op on
	// locked or frozen accounts. increment=false zeroes the count and
	// unlocks a locked account.
	UpdateFailCount(ctx context.Context, username string, increment bool) error
	SetFailCount(ctx context.Context, username string, count int) error
	UpdateLastLogin(ctx context.Context, username string, at time.Time) error
	Add(ctx context.Context, username string, fields UserFields) error
	// Remove deletes temp users only; seeded users yield ErrProtectedUser.
	Remove(ctx context.Context, username string) error
	Reset(ctx context.Context) error
}

// SeedUsers returns a fresh copy of the template every store resets to.
func SeedUsers() []UserRecord {
	lockedLogin := time.Date(2026, time.February, 28, 10, 0, 0, 0, time.UTC)
	return []UserRecord{
		{
			Username:  "test_user",
			Password:  "test_pass_123",
			FailCount: 0,
			Status:    StatusActive,
			Role:      "user",
			Phone:     "13800138000",
			Email:     "test@example.com",
		},
		{
			Username:      "locked_user",
			Password:      "test_pass_456",
			FailCount:     5,
			Status:        StatusLocked,
			Role:          "user",
			Phone:         "13900139000",
			Email:         "locked@example.com",
			LastLoginTime: &lockedLogin,
		},
		{
			Username:  "admin_user",
			Password:  "admin_pass_789",
			FailCount: 0,
			Status:    StatusActive,
			Role:      "admin",
			Phone:     "13700137000",
			Email:     "admin@example.com",
		},
		{
			Username:  "frozen_user",
			Password:  "frozen_pass_000",
			FailCount: 0,
			Status:    StatusFrozen,
			Role:      "user",
			Phone:     "13600136000",
			Email:     "frozen@example.com",
		},
	}
}

type MemoryUserStore struct {
	mu            sync.Mutex
	template      map[string]UserRecord
	users         map[string]UserRecord
	lockThreshold int
	logger        *observability.Logger
}

// NewMemoryUserStore seeds from template (SeedUsers when nil). A
// non-positive threshold falls back to DefaultLockThreshold.
func NewMemoryUserStore(template []UserRecord, lockThreshold int, logger *observability.Logger) *MemoryUserStore {
	if template == nil {
		template = SeedUsers()
	}
	if lockThreshold <= 0 {
		lockThreshold = DefaultLockThreshold
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	s := &MemoryUserStore{
		template:      make(map[string]UserRecord, len(template)),
		lockThreshold: lockThreshold,
		logger:        logger,
	}
	for _, u := range template {
		s.template[u.Username] = u.clone()
	}
	s.users = s.copyTemplate()
	return s
}

func (s *MemoryUserStore) Query(_ context.Context, username string) (UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("mock_db_query_user", map[string]any{"username": username})
	user, ok := s.users[username]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return user.clone(), nil
}

func (s *MemoryUserStore) UpdateFailCount(_ context.Context, username string, increment bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		s.logger.Warn("mock_db_update_fail_count_unknown_user", map[string]any{"username": username})
		return ErrUserNotFound
	}

	if increment {
		if user.Status == StatusLocked || user.Status == StatusFrozen {
			s.logger.Warn("mock_db_fail_count_skipped", map[string]any{"username": username, "status": user.Status})
			return nil
		}
		user.FailCount++
		if user.FailCount >= s.lockThreshold {
			user.Status = StatusLocked
			s.logger.Warn("mock_db_account_locked", map[string]any{"username": username, "fail_count": user.FailCount})
		}
	} else {
		user.FailCount = 0
		if user.Status == StatusLocked {
			user.Status = StatusActive
			s.logger.Info("mock_db_account_unlocked", map[string]any{"username": username})
		}
	}
	s.users[username] = user

	s.logger.Info("mock_db_fail_count_updated", map[string]any{
		"username":   username,
		"fail_count": user.FailCount,
		"status":     user.Status,
	})
	return nil
}

func (s *MemoryUserStore) SetFailCount(_ context.Context, username string, count int) error {
	if count < 0 {
		return ErrInvalidUser
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return ErrUserNotFound
	}
	user.FailCount = count
	s.users[username] = user

	s.logger.Info("mock_db_fail_count_preset", map[string]any{"username": username, "fail_count": count})
	return nil
}

func (s *MemoryUserStore) UpdateLastLogin(_ context.Context, username string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		s.logger.Warn("mock_db_update_last_login_unknown_user", map[string]any{"username": username})
		return ErrUserNotFound
	}
	at = at.UTC()
	user.LastLoginTime = &at
	s.users[username] = user

	s.logger.Info("mock_db_last_login_updated", map[string]any{"username": username, "last_login_time": at.Format(time.RFC3339)})
	return nil
}

func (s *MemoryUserStore) Add(_ context.Context, username string, fields UserFields) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrInvalidUser
	}

	record, err := fields.mergeOver(DefaultUserRecord(username))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		s.logger.Warn("mock_db_add_user_exists", map[string]any{"username": username})
		return ErrUserExists
	}
	s.users[username] = record

	s.logger.Info("mock_db_temp_user_added", map[string]any{"username": username, "status": record.Status, "role": record.Role})
	return nil
}

func (s *MemoryUserStore) Remove(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, seeded := s.template[username]; seeded {
		s.logger.Warn("mock_db_remove_seed_user_rejected", map[string]any{"username": username})
		return ErrProtectedUser
	}
	if _, ok := s.users[username]; !ok {
		s.logger.Warn("mock_db_remove_unknown_user", map[string]any{"username": username})
		return ErrUserNotFound
	}
	delete(s.users, username)

	s.logger.Info("mock_db_temp_user_removed", map[string]any{"username": username})
	return nil
}

func (s *MemoryUserStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = s.copyTemplate()
	s.logger.Info("mock_db_reset", map[string]any{"users": len(s.users)})
	return nil
}

// Snapshot returns copies of every record, for assertions and debugging.
func (s *MemoryUserStore) Snapshot() map[string]UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]UserRecord, len(s.users))
	for k, v := range s.users {
		out[k] = v.clone()
	}
	return out
}

func (s *MemoryUserStore) copyTemplate() map[string]UserRecord {
	out := make(map[string]UserRecord, len(s.template))
	for k, v := range s.template {
		out[k] = v.clone()
	}
	return out
}
