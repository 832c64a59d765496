package scenario

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"api-harness/internal/auth"
	"api-harness/internal/notify"
	"api-harness/internal/product"
)

type mockEnv struct {
	users   *auth.MemoryUserStore
	tokens  *auth.MemoryTokenStore
	catalog *product.MemoryCatalog
	authSvc *auth.Service
	prodSvc *product.Service
}

func newMockEnv() mockEnv {
	users := auth.NewMemoryUserStore(nil, 0, nil)
	tokens := auth.NewMemoryTokenStore(clockwork.NewRealClock(), nil)
	catalog := product.NewMemoryCatalog(nil)
	return mockEnv{
		users:   users,
		tokens:  tokens,
		catalog: catalog,
		authSvc: auth.NewService(users, tokens, auth.FixedSuffixMinter{}, nil),
		prodSvc: product.NewService(catalog, nil),
	}
}

func (e mockEnv) runner() *Runner {
	target := LocalTarget{Auth: e.authSvc, Products: e.prodSvc}
	return NewRunner(target, target, Backend{Mock: true, Users: e.users, Tokens: e.tokens, Catalog: e.catalog}, nil)
}

func failures(results []CaseResult) map[string][]string {
	out := make(map[string][]string)
	for _, r := range results {
		if !r.Passed() {
			out[r.Name] = r.Failures
		}
	}
	return out
}

func TestShippedDataPassesAgainstMock(t *testing.T) {
	loader := NewLoader("../../data", nil)
	r := newMockEnv().runner()
	ctx := context.Background()

	loginCases, err := loader.LoginCases()
	require.NoError(t, err)
	require.NotEmpty(t, loginCases)
	assert.Empty(t, failures(r.RunLogin(ctx, loginCases)))

	productCases, err := loader.ProductCases()
	require.NoError(t, err)
	require.NotEmpty(t, productCases)
	assert.Empty(t, failures(r.RunProducts(ctx, productCases)))
}

func TestRunnerReportsMismatches(t *testing.T) {
	r := newMockEnv().runner()
	ctx := context.Background()

	results := r.RunLogin(ctx, []LoginCase{
		{CaseName: "wrong_code", Username: "test_user", Password: "test_pass_123", ExpectedCode: 401, ExpectedMsg: "password error"},
		{CaseName: "wrong_status", Username: "test_user", Password: "bad_pass_1", ExpectedCode: 401, ExpectedMsg: "password", ExpectedStatus: "locked"},
		// A locked account does not count the failure, so check_db flags it.
		{CaseName: "locked_no_increment", Username: "locked_user", Password: "bad_pass_1", ExpectedCode: 401, ExpectedMsg: "password", CheckDB: true},
	})

	got := failures(results)
	require.Len(t, got, 3)
	assert.Len(t, got["wrong_code"], 2)
	assert.Equal(t, []string{"status: want locked, got active"}, got["wrong_status"])
	assert.Equal(t, []string{"fail_count: want 6, got 5"}, got["locked_no_increment"])
}

func TestRunnerResetsBetweenCases(t *testing.T) {
	r := newMockEnv().runner()
	wrong := LoginCase{CaseName: "wrong", Username: "test_user", Password: "bad_pass_1", ExpectedCode: 401, ExpectedMsg: "password error", CheckDB: true}

	results := r.RunLogin(context.Background(), []LoginCase{wrong, wrong, wrong, wrong, wrong, wrong})
	assert.Empty(t, failures(results), "each case starts from the seed, so fail_count is always 0 -> 1")
}

func TestRunnerSkipCacheDropsToken(t *testing.T) {
	env := newMockEnv()
	ctx := context.Background()
	require.NoError(t, env.tokens.Set(ctx, "admin_user", "stale", nil))

	// Mock mode resets the token table first, so run with Mock off to keep
	// the stale entry visible to skip_cache.
	target := LocalTarget{Auth: env.authSvc, Products: env.prodSvc}
	r := NewRunner(target, target, Backend{Users: env.users, Tokens: env.tokens}, nil)

	results := r.RunLogin(ctx, []LoginCase{{CaseName: "fresh", Username: "admin_user", Password: "admin_pass_789", ExpectedCode: 200, ExpectedMsg: "success", SkipCache: true}})
	assert.Empty(t, failures(results))

	token, ok, err := env.tokens.Get(ctx, "admin_user")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "token_admin_user_8888", token)
}

func TestRunnerProductSuiteLoginFailure(t *testing.T) {
	env := newMockEnv()
	ctx := context.Background()
	for i := 0; i < auth.DefaultLockThreshold; i++ {
		require.NoError(t, env.users.UpdateFailCount(ctx, "admin_user", true))
	}

	target := LocalTarget{Auth: env.authSvc, Products: env.prodSvc}
	r := NewRunner(target, target, Backend{Catalog: env.catalog}, nil)
	results := r.RunProducts(ctx, []ProductCase{{CaseName: "detail", Action: ActionDetail, ProductID: "product_001", ExpectedCode: 200}})

	require.Len(t, results, 1)
	assert.False(t, results[0].Passed())
	assert.Contains(t, results[0].Failures[0], "suite login")
}

func TestHTTPTargetAgainstHandlers(t *testing.T) {
	env := newMockEnv()
	authHandler := auth.NewHandler(env.authSvc)
	productHandler := product.NewHandler(env.prodSvc)

	products := http.NewServeMux()
	products.HandleFunc("GET /products", productHandler.ListProducts)
	products.HandleFunc("GET /products/{id}", productHandler.GetProduct)
	products.HandleFunc("POST /products", productHandler.CreateProduct)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", authHandler.Login)
	mux.Handle("/products", auth.Middleware(nil, products))
	mux.Handle("/products/", auth.Middleware(nil, products))
	server := httptest.NewServer(mux)
	defer server.Close()

	target := HTTPTarget{Sender: notify.NewClient(server.URL, time.Second, nil)}
	r := NewRunner(target, target, Backend{Users: env.users, Tokens: env.tokens}, nil)
	ctx := context.Background()

	loginResults := r.RunLogin(ctx, []LoginCase{
		{CaseName: "ok", Username: "test_user", Password: "test_pass_123", ExpectedCode: 200, ExpectedMsg: "success", SensitiveCheck: true},
		{CaseName: "bad", Username: "test_user", Password: "bad_pass_1", ExpectedCode: 401, ExpectedMsg: "password error", CheckDB: true},
		{CaseName: "ghost", Username: "ghost", Password: "x", ExpectedCode: 404, ExpectedMsg: "user not found"},
	})
	assert.Empty(t, failures(loginResults))

	productResults := r.RunProducts(ctx, []ProductCase{
		{CaseName: "detail", Action: ActionDetail, ProductID: "product_001", ExpectedCode: 200, ExpectedMsg: "success", CheckStock: true, ExpectedStock: 100},
		{CaseName: "missing", Action: ActionDetail, ProductID: "product_999", ExpectedCode: 404, ExpectedMsg: "product not found"},
		{CaseName: "list", Action: ActionList, ExpectedCode: 200},
		{CaseName: "create", Action: ActionCreate, ProductName: "Desk", Price: 1, ExpectedCode: 201, ExpectedMsg: "created"},
	})
	assert.Empty(t, failures(productResults))
}

func TestReportWrite(t *testing.T) {
	var report Report
	report.Add(
		CaseResult{Suite: "login", Name: "a"},
		CaseResult{Suite: "login", Name: "b", Failures: []string{"code: want 200, got 401"}},
	)

	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf))

	assert.Equal(t, 1, report.Failed())
	out := buf.String()
	assert.Contains(t, out, "PASS  login/a")
	assert.Contains(t, out, "FAIL  login/b")
	assert.Contains(t, out, "code: want 200, got 401")
	assert.Contains(t, out, "2 cases, 1 passed, 1 failed")
}
