package auth

import (
	"errors"
	"time"
)

type Status string

const (
	StatusActive Status = "active"
	StatusLocked Status = "locked"
	// StatusFrozen is set out of band and never left through fail counting.
	StatusFrozen Status = "frozen"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusLocked, StatusFrozen:
		return true
	}
	return false
}

type UserRecord struct {
	Username      string     `json:"username" yaml:"username"`
	Password      string     `json:"password" yaml:"password"`
	FailCount     int        `json:"fail_count" yaml:"fail_count"`
	Status        Status     `json:"status" yaml:"status"`
	Role          string     `json:"role" yaml:"role"`
	Phone         string     `json:"phone" yaml:"phone"`
	Email         string     `json:"email" yaml:"email"`
	LastLoginTime *time.Time `json:"last_login_time" yaml:"last_login_time"`
}

func (u UserRecord) clone() UserRecord {
	if u.LastLoginTime != nil {
		t := *u.LastLoginTime
		u.LastLoginTime = &t
	}
	return u
}

// UserFields is merged over the default record when a temp user is added.
// Nil fields keep the default.
type UserFields struct {
	Password      *string    `json:"password,omitempty"`
	FailCount     *int       `json:"fail_count,omitempty"`
	Status        *Status    `json:"status,omitempty"`
	Role          *string    `json:"role,omitempty"`
	Phone         *string    `json:"phone,omitempty"`
	Email         *string    `json:"email,omitempty"`
	LastLoginTime *time.Time `json:"last_login_time,omitempty"`
}

func DefaultUserRecord(username string) UserRecord {
	return UserRecord{
		Username:  username,
		Password:  "",
		FailCount: 0,
		Status:    StatusActive,
		Role:      "user",
	}
}

func (f UserFields) mergeOver(base UserRecord) (UserRecord, error) {
	if f.Password != nil {
		base.Password = *f.Password
	}
	if f.FailCount != nil {
		if *f.FailCount < 0 {
			return UserRecord{}, ErrInvalidUser
		}
		base.FailCount = *f.FailCount
	}
	if f.Status != nil {
		if !f.Status.Valid() {
			return UserRecord{}, ErrInvalidUser
		}
		base.Status = *f.Status
	}
	if f.Role != nil {
		base.Role = *f.Role
	}
	if f.Phone != nil {
		base.Phone = *f.Phone
	}
	if f.Email != nil {
		base.Email = *f.Email
	}
	if f.LastLoginTime != nil {
		t := *f.LastLoginTime
		base.LastLoginTime = &t
	}
	return base, nil
}

type TokenEntry struct {
	Username string
	Token    string
	ExpireAt *time.Time
}

// Valid reports whether the entry is usable at now. A nil ExpireAt never expires.
func (e TokenEntry) Valid(now time.Time) bool {
	return e.ExpireAt == nil || !e.ExpireAt.Before(now)
}

type LoginData struct {
	Token string `json:"token"`
}

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUserExists    = errors.New("user already exists")
	ErrProtectedUser = errors.New("user belongs to the seed template")
	ErrInvalidUser   = errors.New("invalid user fields")
)
