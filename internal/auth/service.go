package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/getsentry/sentry-go"
	"github.com/jonboulle/clockwork"

	"api-harness/internal/envelope"
	"api-harness/internal/notify"
	"api-harness/internal/observability"
)

const (
	defaultMaxPasswordLen = 50
	defaultNotifyTimeout  = 10 * time.Second
	defaultNotifyPath     = "/post"
)

type Service struct {
	users  UserStore
	tokens TokenStore
	minter TokenMinter
	clock  clockwork.Clock
	logger *observability.Logger

	maxPasswordLen int
	tokenTTL       time.Duration

	sender        notify.Sender
	notifyPath    string
	notifyTimeout time.Duration
	inflight      sync.WaitGroup

	// mu keeps the fail-count read-modify-write and the token
	// read-or-create of one login atomic with respect to other logins.
	mu sync.Mutex
}

func NewService(users UserStore, tokens TokenStore, minter TokenMinter, logger *observability.Logger) *Service {
	if minter == nil {
		minter = FixedSuffixMinter{}
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Service{
		users:          users,
		tokens:         tokens,
		minter:         minter,
		clock:          clockwork.NewRealClock(),
		logger:         logger,
		maxPasswordLen: defaultMaxPasswordLen,
		notifyPath:     defaultNotifyPath,
		notifyTimeout:  defaultNotifyTimeout,
	}
}

func (s *Service) WithClock(clock clockwork.Clock) *Service {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// WithPolicy overrides the password bound and token lifetime. ttl == 0
// issues tokens that never expire.
func (s *Service) WithPolicy(maxPasswordLen int, tokenTTL time.Duration) *Service {
	if maxPasswordLen > 0 {
		s.maxPasswordLen = maxPasswordLen
	}
	if tokenTTL >= 0 {
		s.tokenTTL = tokenTTL
	}
	return s
}

// WithNotifier sends a best-effort POST to path after each successful login.
func (s *Service) WithNotifier(sender notify.Sender, path string, timeout time.Duration) *Service {
	s.sender = sender
	if strings.TrimSpace(path) != "" {
		s.notifyPath = path
	}
	if timeout > 0 {
		s.notifyTimeout = timeout
	}
	return s
}

func (s *Service) Login(ctx context.Context, username, password string) envelope.Response {
	s.logger.Info("login_request", map[string]any{"username": username, "password_length": utf8.RuneCountInString(password)})

	if n := utf8.RuneCountInString(password); n > s.maxPasswordLen {
		s.logger.Warn("login_password_too_long", map[string]any{"username": username, "length": n, "max": s.maxPasswordLen})
		return envelope.Fail(http.StatusBadRequest, "password length exceeds limit")
	}

	token, resp, ok := s.authenticate(ctx, username, password)
	if !ok {
		return resp
	}

	s.notifyLogin(username)

	s.logger.Info("login_success", map[string]any{"username": username})
	return envelope.OK(LoginData{Token: token})
}

func (s *Service) authenticate(ctx context.Context, username, password string) (string, envelope.Response, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.users.Query(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.logger.Info("login_user_not_found", map[string]any{"username": username})
			return "", envelope.Fail(http.StatusNotFound, "user not found"), false
		}
		return "", s.internal("login_query_user_failed", username, err), false
	}

	// Password is checked before lock status: a wrong password on a locked
	// account reports 401.
	if user.Password != password {
		if err := s.users.UpdateFailCount(ctx, username, true); err != nil {
			s.logger.Warn("login_fail_count_update_failed", map[string]any{"username": username, "error": err.Error()})
		}
		s.logger.Info("login_password_error", map[string]any{"username": username})
		return "", envelope.Fail(http.StatusUnauthorized, "password error"), false
	}

	if user.Status == StatusLocked {
		s.logger.Warn("login_account_locked", map[string]any{"username": username})
		return "", envelope.Fail(http.StatusForbidden, "account locked"), false
	}

	token, err := s.tokenFor(ctx, username)
	if err != nil {
		return "", s.internal("login_token_failed", username, err), false
	}

	if err := s.users.UpdateFailCount(ctx, username, false); err != nil {
		return "", s.internal("login_fail_count_reset_failed", username, err), false
	}
	if err := s.users.UpdateLastLogin(ctx, username, s.clock.Now()); err != nil {
		s.logger.Warn("login_last_login_update_failed", map[string]any{"username": username, "error": err.Error()})
	}

	return token, envelope.Response{}, true
}

func (s *Service) tokenFor(ctx context.Context, username string) (string, error) {
	cached, ok, err := s.tokens.Get(ctx, username)
	if err != nil {
		return "", err
	}
	if ok {
		s.logger.Info("login_token_reused", map[string]any{"username": username})
		return cached, nil
	}

	now := s.clock.Now()
	token, err := s.minter.Mint(username, now)
	if err != nil {
		return "", err
	}

	var expireAt *time.Time
	if s.tokenTTL > 0 {
		t := now.Add(s.tokenTTL)
		expireAt = &t
	}
	if err := s.tokens.Set(ctx, username, token, expireAt); err != nil {
		return "", err
	}

	s.logger.Info("login_token_issued", map[string]any{"username": username})
	return token, nil
}

// Logout drops the cached token for username.
func (s *Service) Logout(ctx context.Context, username string) envelope.Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted, err := s.tokens.Delete(ctx, username)
	if err != nil {
		return s.internal("logout_failed", username, err)
	}
	if !deleted {
		return envelope.Fail(http.StatusNotFound, "token not found")
	}

	s.logger.Info("logout_success", map[string]any{"username": username})
	return envelope.OK(nil)
}

func (s *Service) notifyLogin(username string) {
	if s.sender == nil {
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
		defer cancel()

		_, err := s.sender.Send(ctx, notify.Request{
			Method: http.MethodPost,
			Path:   s.notifyPath,
			Body:   map[string]string{"login": "success"},
		})
		if err != nil {
			msg := err.Error()
			if len(msg) > 100 {
				msg = msg[:100]
			}
			s.logger.Warn("login_notify_failed", map[string]any{"username": username, "error": msg})
			observability.CaptureSwallowed(err, "login_notify")
		}
	}()
}

// Close waits for in-flight login notifications.
func (s *Service) Close() {
	s.inflight.Wait()
}

func (s *Service) internal(event, username string, err error) envelope.Response {
	s.logger.Error(event, map[string]any{"username": username, "error": err.Error()})
	sentry.CaptureException(err)
	return envelope.Internal()
}
