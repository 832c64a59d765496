package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"api-harness/internal/observability"
)

// UserRepository is the real-backend UserStore over Postgres. Seeded rows
// are flagged so Remove can protect them and Reset can restore them.
type UserRepository struct {
	db            *sql.DB
	template      []UserRecord
	lockThreshold int
	logger        *observability.Logger
}

func NewUserRepository(db *sql.DB, template []UserRecord, lockThreshold int, logger *observability.Logger) *UserRepository {
	if template == nil {
		template = SeedUsers()
	}
	if lockThreshold <= 0 {
		lockThreshold = DefaultLockThreshold
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &UserRepository{db: db, template: template, lockThreshold: lockThreshold, logger: logger}
}

func (r *UserRepository) Query(ctx context.Context, username string) (UserRecord, error) {
	var user UserRecord
	var status string
	var lastLogin sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT username, password, fail_count, status, role, phone, email, last_login_time
		FROM harness_users
		WHERE username = $1
	`, username).Scan(&user.Username, &user.Password, &user.FailCount, &status, &user.Role, &user.Phone, &user.Email, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, fmt.Errorf("query user by username: %w", err)
	}
	user.Status = Status(status)
	if lastLogin.Valid {
		value := lastLogin.Time.UTC()
		user.LastLoginTime = &value
	}

	r.logger.Info("db_query_user", map[string]any{"username": username})
	return user, nil
}

func (r *UserRepository) UpdateFailCount(ctx context.Context, username string, increment bool) error {
	var res sql.Result
	var err error
	now := time.Now().UTC()

	// SET expressions read the pre-update row, so the CASE arms see the
	// old fail_count and status.
	if increment {
		res, err = r.db.ExecContext(ctx, `
			UPDATE harness_users
			SET
				fail_count = CASE WHEN status = 'active' THEN fail_count + 1 ELSE fail_count END,
				status = CASE WHEN status = 'active' AND fail_count + 1 >= $2 THEN 'locked' ELSE status END,
				updated_at = $3
			WHERE username = $1
		`, username, r.lockThreshold, now)
	} else {
		res, err = r.db.ExecContext(ctx, `
			UPDATE harness_users
			SET
				fail_count = 0,
				status = CASE WHEN status = 'locked' THEN 'active' ELSE status END,
				updated_at = $2
			WHERE username = $1
		`, username, now)
	}
	if err != nil {
		return fmt.Errorf("update fail count: %w", err)
	}

	if err := requireAffected(res); err != nil {
		r.logger.Warn("db_update_fail_count_unknown_user", map[string]any{"username": username})
		return err
	}

	r.logger.Info("db_fail_count_updated", map[string]any{"username": username, "increment": increment})
	return nil
}

func (r *UserRepository) SetFailCount(ctx context.Context, username string, count int) error {
	if count < 0 {
		return ErrInvalidUser
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE harness_users SET fail_count = $2, updated_at = $3 WHERE username = $1
	`, username, count, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("preset fail count: %w", err)
	}
	return requireAffected(res)
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE harness_users SET last_login_time = $2, updated_at = $3 WHERE username = $1
	`, username, at.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return requireAffected(res)
}

func (r *UserRepository) Add(ctx context.Context, username string, fields UserFields) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrInvalidUser
	}
	record, err := fields.mergeOver(DefaultUserRecord(username))
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO harness_users (username, password, fail_count, status, role, phone, email, last_login_time, seeded, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9, $9)
		ON CONFLICT (username) DO NOTHING
	`, record.Username, record.Password, record.FailCount, string(record.Status), record.Role, record.Phone, record.Email,
		nullableTime(record.LastLoginTime), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert temp user: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert temp user rows affected: %w", err)
	}
	if affected == 0 {
		return ErrUserExists
	}

	r.logger.Info("db_temp_user_added", map[string]any{"username": username})
	return nil
}

func (r *UserRepository) Remove(ctx context.Context, username string) error {
	var seeded bool
	err := r.db.QueryRowContext(ctx, `
		DELETE FROM harness_users WHERE username = $1 AND NOT seeded
		RETURNING seeded
	`, username).Scan(&seeded)
	if err == nil {
		r.logger.Info("db_temp_user_removed", map[string]any{"username": username})
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("delete temp user: %w", err)
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM harness_users WHERE username = $1)`, username).Scan(&exists); err != nil {
		return fmt.Errorf("check user exists: %w", err)
	}
	if exists {
		return ErrProtectedUser
	}
	return ErrUserNotFound
}

func (r *UserRepository) Reset(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM harness_users`); err != nil {
		return fmt.Errorf("clear users: %w", err)
	}

	now := time.Now().UTC()
	for _, u := range r.template {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO harness_users (username, password, fail_count, status, role, phone, email, last_login_time, seeded, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE, $9, $9)
		`, u.Username, u.Password, u.FailCount, string(u.Status), u.Role, u.Phone, u.Email, nullableTime(u.LastLoginTime), now); err != nil {
			return fmt.Errorf("insert seed user %s: %w", u.Username, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset tx: %w", err)
	}

	r.logger.Info("db_reset", map[string]any{"users": len(r.template)})
	return nil
}

// TokenRepository is the real-backend TokenStore over Postgres.
type TokenRepository struct {
	db     *sql.DB
	clock  clockwork.Clock
	logger *observability.Logger
}

func NewTokenRepository(db *sql.DB, clock clockwork.Clock, logger *observability.Logger) *TokenRepository {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &TokenRepository{db: db, clock: clock, logger: logger}
}

func (r *TokenRepository) Get(ctx context.Context, username string) (string, bool, error) {
	var token string
	var expireAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT token, expire_at FROM harness_tokens WHERE username = $1
	`, username).Scan(&token, &expireAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Info("db_token_miss", map[string]any{"username": username})
			return "", false, nil
		}
		return "", false, fmt.Errorf("query token: %w", err)
	}

	now := r.clock.Now().UTC()
	if expireAt.Valid && expireAt.Time.Before(now) {
		if _, err := r.db.ExecContext(ctx, `
			DELETE FROM harness_tokens WHERE username = $1 AND expire_at < $2
		`, username, now); err != nil {
			return "", false, fmt.Errorf("purge expired token: %w", err)
		}
		r.logger.Warn("db_token_expired", map[string]any{"username": username})
		return "", false, nil
	}

	return token, true, nil
}

func (r *TokenRepository) Set(ctx context.Context, username, token string, expireAt *time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO harness_tokens (username, token, expire_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username)
		DO UPDATE SET
			token = EXCLUDED.token,
			expire_at = EXCLUDED.expire_at,
			updated_at = EXCLUDED.updated_at
	`, username, token, nullableTime(expireAt), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	return nil
}

func (r *TokenRepository) Delete(ctx context.Context, username string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM harness_tokens WHERE username = $1`, username)
	if err != nil {
		return false, fmt.Errorf("delete token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete token rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *TokenRepository) Reset(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM harness_tokens`); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
