package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"api-harness/internal/auth"
	"api-harness/internal/envelope"
	"api-harness/internal/observability"
	"api-harness/internal/product"
)

const (
	suiteAccountUser     = "admin_user"
	suiteAccountPassword = "admin_pass_789"
)

// Backend is the store access the runner needs for presets, resets and
// state assertions. Users and Tokens may be nil when the stores are not
// reachable from the harness; the matching checks are then skipped.
type Backend struct {
	Mock    bool
	Users   auth.UserStore
	Tokens  auth.TokenStore
	Catalog product.Catalog
}

type Runner struct {
	login    LoginTarget
	products ProductTarget
	backend  Backend
	logger   *observability.Logger
}

func NewRunner(login LoginTarget, products ProductTarget, backend Backend, logger *observability.Logger) *Runner {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Runner{login: login, products: products, backend: backend, logger: logger}
}

type checker struct {
	failures []string
}

func (c *checker) expect(ok bool, format string, args ...any) {
	if !ok {
		c.failures = append(c.failures, fmt.Sprintf(format, args...))
	}
}

func (c *checker) fail(format string, args ...any) {
	c.failures = append(c.failures, fmt.Sprintf(format, args...))
}

func (r *Runner) RunLogin(ctx context.Context, cases []LoginCase) []CaseResult {
	results := make([]CaseResult, 0, len(cases))
	for _, c := range cases {
		start := time.Now()
		chk := &checker{}
		r.runLoginCase(ctx, c, chk)
		results = append(results, r.finish("login", c.CaseName, start, chk))
	}
	return results
}

func (r *Runner) runLoginCase(ctx context.Context, c LoginCase, chk *checker) {
	r.logger.Info("scenario_case_start", map[string]any{"suite": "login", "case": c.CaseName})

	if r.backend.Mock {
		if err := r.resetLoginStores(ctx); err != nil {
			chk.fail("reset stores: %v", err)
			return
		}
	}

	users := r.backend.Users
	if (c.CheckDB || c.ExpectedStatus != "") && users != nil {
		if err := ValidateRequiredFields(c.Fields(), "username"); err != nil {
			chk.fail("%v", err)
			return
		}
	}

	preCount := -1
	if c.CheckDB && users != nil {
		if r.backend.Mock && c.FailCountBefore != nil {
			if _, err := users.Query(ctx, c.Username); err == nil {
				if err := users.SetFailCount(ctx, c.Username, *c.FailCountBefore); err != nil {
					chk.fail("preset fail_count: %v", err)
					return
				}
				r.logger.Info("scenario_fail_count_preset", map[string]any{"username": c.Username, "fail_count": *c.FailCountBefore})
			}
		}
		if u, err := users.Query(ctx, c.Username); err == nil {
			preCount = u.FailCount
		}
	}

	if c.SkipCache && r.backend.Tokens != nil {
		if _, err := r.backend.Tokens.Delete(ctx, c.Username); err != nil {
			chk.fail("clear cached token: %v", err)
			return
		}
	}

	resp, err := r.login.Login(ctx, c.Username, c.Password)
	if err != nil {
		chk.fail("login call: %v", err)
		return
	}

	chk.expect(resp.Code == c.ExpectedCode, "code: want %d, got %d", c.ExpectedCode, resp.Code)
	chk.expect(strings.Contains(resp.Msg, c.ExpectedMsg), "msg: want to contain %q, got %q", c.ExpectedMsg, resp.Msg)

	if c.SensitiveCheck && len(c.Password) > 5 {
		raw, err := json.Marshal(resp)
		if err != nil {
			chk.fail("serialize response: %v", err)
		} else {
			chk.expect(!strings.Contains(string(raw), c.Password), "response leaks the plaintext password (%s...)", c.Password[:5])
		}
	}

	if c.CheckDB && preCount >= 0 {
		want := 0
		if resp.Code != 200 {
			want = preCount + 1
		}
		if u, err := users.Query(ctx, c.Username); err != nil {
			chk.fail("query user after login: %v", err)
		} else {
			chk.expect(u.FailCount == want, "fail_count: want %d, got %d", want, u.FailCount)
		}
	}

	if c.ExpectedStatus != "" {
		if users == nil {
			r.logger.Warn("scenario_status_check_skipped", map[string]any{"case": c.CaseName})
			return
		}
		u, err := users.Query(ctx, c.Username)
		if err != nil {
			chk.fail("query user status: %v", err)
			return
		}
		chk.expect(string(u.Status) == c.ExpectedStatus, "status: want %s, got %s", c.ExpectedStatus, u.Status)
	}
}

func (r *Runner) resetLoginStores(ctx context.Context) error {
	if r.backend.Users != nil {
		if err := r.backend.Users.Reset(ctx); err != nil {
			return err
		}
	}
	if r.backend.Tokens != nil {
		if err := r.backend.Tokens.Reset(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunProducts logs in once for a bearer token shared by every case.
func (r *Runner) RunProducts(ctx context.Context, cases []ProductCase) []CaseResult {
	results := make([]CaseResult, 0, len(cases))

	token, err := r.suiteToken(ctx)
	if err != nil {
		r.logger.Error("scenario_suite_login_failed", map[string]any{"suite": "product", "error": err.Error()})
		for _, c := range cases {
			chk := &checker{}
			chk.fail("suite login: %v", err)
			results = append(results, r.finish("product", c.CaseName, time.Now(), chk))
		}
		return results
	}

	for _, c := range cases {
		start := time.Now()
		chk := &checker{}
		r.runProductCase(ctx, token, c, chk)
		results = append(results, r.finish("product", c.CaseName, start, chk))
	}
	return results
}

func (r *Runner) suiteToken(ctx context.Context) (string, error) {
	resp, err := r.login.Login(ctx, suiteAccountUser, suiteAccountPassword)
	if err != nil {
		return "", err
	}
	if resp.Code != 200 {
		return "", fmt.Errorf("code %d: %s", resp.Code, resp.Msg)
	}
	var data auth.LoginData
	if err := decodeData(resp.Data, &data); err != nil || data.Token == "" {
		return "", fmt.Errorf("login response carries no token")
	}
	return data.Token, nil
}

func (r *Runner) runProductCase(ctx context.Context, token string, c ProductCase, chk *checker) {
	r.logger.Info("scenario_case_start", map[string]any{"suite": "product", "case": c.CaseName, "action": c.Action})

	if r.backend.Mock && r.backend.Catalog != nil {
		if err := r.backend.Catalog.Reset(ctx); err != nil {
			chk.fail("reset catalog: %v", err)
			return
		}
	}

	var resp envelope.Response
	var err error
	switch c.Action {
	case ActionDetail:
		if c.CheckStock {
			if verr := ValidateRequiredFields(c.Fields(), "product_id"); verr != nil {
				chk.fail("%v", verr)
				return
			}
		}
		resp, err = r.products.Detail(ctx, token, c.ProductID)
	case ActionList:
		resp, err = r.products.List(ctx, token)
	case ActionCreate:
		resp, err = r.products.Create(ctx, token, product.ProductInput{Name: c.ProductName, Price: c.Price})
	default:
		chk.fail("unknown action %q", c.Action)
		return
	}
	if err != nil {
		chk.fail("%s call: %v", c.Action, err)
		return
	}

	chk.expect(resp.Code == c.ExpectedCode, "code: want %d, got %d", c.ExpectedCode, resp.Code)
	chk.expect(strings.Contains(resp.Msg, c.ExpectedMsg), "msg: want to contain %q, got %q", c.ExpectedMsg, resp.Msg)

	if c.Action != ActionDetail || resp.Code != 200 {
		return
	}

	var p product.Product
	if err := decodeData(resp.Data, &p); err != nil {
		chk.fail("decode product: %v", err)
		return
	}
	if c.ProductID != "" {
		chk.expect(p.ProductID == c.ProductID, "product_id: want %s, got %s", c.ProductID, p.ProductID)
	}
	if c.CheckStock {
		chk.expect(p.Stock == c.ExpectedStock, "stock: want %d, got %d", c.ExpectedStock, p.Stock)
	}
}

func (r *Runner) finish(suite, name string, start time.Time, chk *checker) CaseResult {
	result := CaseResult{Suite: suite, Name: name, Failures: chk.failures, Duration: time.Since(start)}
	if result.Passed() {
		r.logger.Info("scenario_case_passed", map[string]any{"suite": suite, "case": name})
	} else {
		r.logger.Warn("scenario_case_failed", map[string]any{"suite": suite, "case": name, "failures": strings.Join(chk.failures, "; ")})
	}
	return result
}

// decodeData normalizes in-process structs and decoded JSON maps.
func decodeData(data any, dst any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
