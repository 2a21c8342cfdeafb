package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/bankapp/internal/common"
	"github.com/dmitrijs2005/bankapp/internal/cryptox"
	"github.com/dmitrijs2005/bankapp/internal/logging"
	"github.com/dmitrijs2005/bankapp/internal/server/auth"
	"github.com/dmitrijs2005/bankapp/internal/server/config"
	"github.com/dmitrijs2005/bankapp/internal/server/metrics"
	"github.com/dmitrijs2005/bankapp/internal/server/models"
	"github.com/dmitrijs2005/bankapp/internal/server/notify"
	"github.com/dmitrijs2005/bankapp/internal/server/ratelimit"
	"github.com/dmitrijs2005/bankapp/internal/server/repositories/memstore"
	"github.com/dmitrijs2005/bankapp/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bankapp/internal/server/services"
	"github.com/dmitrijs2005/bankapp/internal/server/session"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.PasswordResetRequested
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, body any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ev, ok := body.(notify.PasswordResetRequested); ok {
		p.events = append(p.events, ev)
	}
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type failingBackend struct{}

func (failingBackend) Hit(context.Context, string, ratelimit.Limit, time.Time) (ratelimit.Result, error) {
	return ratelimit.Result{}, errors.New("redis: connection refused")
}

type harness struct {
	t       *testing.T
	repos   repomanager.RepositoryManager
	hasher  auth.Hasher
	events  *recordingPublisher
	server  *Server
	handler http.Handler
	logs    *bytes.Buffer
	slept   []time.Duration
	seeded  int
}

func newHarness(t *testing.T, backend ratelimit.Backend) *harness {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.RegistrationDefaultStatus = common.StatusActive

	var logs bytes.Buffer
	logger, err := logging.New("slog", "debug", &logs)
	require.NoError(t, err)

	h := &harness{
		t:      t,
		repos:  repomanager.NewInMemoryRepositoryManager(memstore.New()),
		hasher: auth.NewBcryptHasher(bcrypt.MinCost),
		events: &recordingPublisher{},
		logs:   &logs,
	}

	m := metrics.New("test")
	tokens := auth.NewResetTokens([]byte("secret"), time.Hour, nil)
	users := services.NewUserService(h.repos, h.hasher, tokens, h.events, logger, cfg)
	transfers := services.NewTransferService(h.repos, logger, m, cfg)

	defaults, err := ratelimit.ParseAll(cfg.RateLimitDefaults)
	require.NoError(t, err)
	if backend == nil {
		backend = ratelimit.NewMemoryBackend()
	}

	h.server = NewServer(":0", Deps{
		Logger:     logger,
		Users:      users,
		Transfers:  transfers,
		Statements: services.NewStatementService(transfers, logger, cfg),
		Sessions:   session.NewManager(session.NewMemoryStore(), 30*time.Minute, cryptox.DeriveKey([]byte("secret"), "cookie"), true, nil),
		Limiter:    ratelimit.NewLimiter(backend, "test", defaults, nil),
		Limits: RouteLimits{
			Login:        []ratelimit.Limit{ratelimit.MustParse("5 per minute")},
			ResetRequest: []ratelimit.Limit{ratelimit.MustParse("3 per hour")},
			ResetConfirm: []ratelimit.Limit{ratelimit.MustParse("5 per hour")},
			Register:     []ratelimit.Limit{ratelimit.MustParse("10 per hour")},
			Transfer:     []ratelimit.Limit{ratelimit.MustParse("30 per hour")},
		},
		Penalty: time.Second,
		Metrics: m,
	})
	h.server.sleep = func(_ context.Context, d time.Duration) { h.slept = append(h.slept, d) }
	h.handler = h.server.Router()
	return h
}

func (h *harness) seed(username, balance string, admin bool) *models.User {
	h.t.Helper()
	h.seeded++
	hash, err := h.hasher.Hash("Abcd123!")
	require.NoError(h.t, err)

	u, err := h.repos.Users().Create(context.Background(), &models.User{
		Username:      username,
		Email:         username + "@example.com",
		PasswordHash:  hash,
		AccountNumber: fmt.Sprintf("%010d", 1000+h.seeded),
		Balance:       decimal.RequireFromString(balance),
		Status:        common.StatusActive,
		IsAdmin:       admin,
	})
	require.NoError(h.t, err)
	return u
}

type reqOpt func(r *http.Request)

func withCookie(c *http.Cookie) reqOpt {
	return func(r *http.Request) {
		if c != nil {
			r.AddCookie(c)
		}
	}
}

func acceptJSON(r *http.Request) { r.Header.Set("Accept", "application/json") }

func (h *harness) do(method, target string, body any, opts ...reqOpt) *httptest.ResponseRecorder {
	h.t.Helper()

	var rdr io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case url.Values:
		rdr = strings.NewReader(b.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		raw, err := json.Marshal(b)
		require.NoError(h.t, err)
		rdr = bytes.NewReader(raw)
		contentType = "application/json"
	}

	req := httptest.NewRequest(method, target, rdr)
	req.RemoteAddr = "203.0.113.7:5555"
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, o := range opts {
		o(req)
	}

	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == common.SessionCookieName {
			return c
		}
	}
	return nil
}

func (h *harness) login(username string) *http.Cookie {
	h.t.Helper()
	rec := h.do(http.MethodPost, "/login", map[string]string{"username": username, "password": "Abcd123!"})
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	c := sessionCookie(rec)
	require.NotNil(h.t, c)
	return c
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRegisterLoginAccountLogout(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodPost, "/register", url.Values{
		"username": {"alice"}, "email": {"Alice@Example.com"}, "password": {"Abcd123!"}, "password2": {"Abcd123!"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, "/login", map[string]string{"username": "alice", "password": "Abcd123!"})
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	rec = h.do(http.MethodGet, "/api/account", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-cache, no-store, must-revalidate, private, max-age=0", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))
	assert.Equal(t, "0", rec.Header().Get("Expires"))
	user := decodeBody(t, rec)["user"].(map[string]any)
	assert.Equal(t, "alice@example.com", user["email"])
	assert.Equal(t, "0.00", user["balance"])

	rec = h.do(http.MethodPost, "/logout", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, -1, sessionCookie(rec).MaxAge)

	rec = h.do(http.MethodGet, "/api/account", nil, withCookie(cookie))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister_FieldErrors(t *testing.T) {
	h := newHarness(t, nil)
	h.seed("alice", "0", false)

	rec := h.do(http.MethodPost, "/register", map[string]string{
		"username": "alice", "email": "bad", "password": "abcdefgh", "password2": "abcdefgh",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	fields := decodeBody(t, rec)["fields"].(map[string]any)
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	h := newHarness(t, nil)
	h.seed("alice", "0", false)

	unknown := h.do(http.MethodPost, "/login", map[string]string{"username": "mallory", "password": "Abcd123!"})
	wrong := h.do(http.MethodPost, "/login", map[string]string{"username": "alice", "password": "Wrong123!"})

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, unknown.Code, wrong.Code)
	assert.Equal(t, unknown.Body.Bytes(), wrong.Body.Bytes())
	assert.Nil(t, sessionCookie(unknown))
	assert.Nil(t, sessionCookie(wrong))
	assert.NotContains(t, h.logs.String(), "Wrong123!")
}

func TestLogin_RotatesSession(t *testing.T) {
	h := newHarness(t, nil)
	h.seed("alice", "0", false)

	first := h.login("alice")
	rec := h.do(http.MethodPost, "/login", map[string]string{"username": "alice", "password": "Abcd123!"}, withCookie(first))
	require.Equal(t, http.StatusOK, rec.Code)
	second := sessionCookie(rec)
	assert.NotEqual(t, first.Value, second.Value)

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/account", nil, withCookie(first)).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/account", nil, withCookie(second)).Code)
}

func TestSession_ForgedCookie(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodGet, "/api/account", nil, withCookie(&http.Cookie{Name: common.SessionCookieName, Value: "abc.def"}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, -1, sessionCookie(rec).MaxAge)
}

func TestRateLimit_Login(t *testing.T) {
	h := newHarness(t, nil)
	creds := map[string]string{"username": "mallory", "password": "x"}

	for i := 0; i < 5; i++ {
		rec := h.do(http.MethodPost, "/login", creds)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := h.do(http.MethodPost, "/login", creds, acceptJSON)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.JSONEq(t, `{"error":"Rate limit exceeded","message":"Too many attempts. Please try again later.","status_code":429}`, rec.Body.String())
	assert.Equal(t, []time.Duration{time.Second}, h.slept)

	rec = h.do(http.MethodPost, "/login", creds)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, MsgTooManyAttempts, rec.Body.String())

	assert.Contains(t, h.logs.String(), `"msg":"rate limit exceeded"`)
	assert.Contains(t, h.logs.String(), `"ip":"203.0.113.7"`)

	m := h.do(http.MethodGet, "/metrics", nil)
	assert.Contains(t, m.Body.String(), `test_rate_limited_total{scope="login"} 2`)
}

func TestRateLimit_RegisterMessages(t *testing.T) {
	h := newHarness(t, nil)
	body := map[string]string{"username": "x"}

	for i := 0; i < 10; i++ {
		require.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, "/register", body).Code)
	}

	rec := h.do(http.MethodPost, "/register", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Rate limit exceeded: 10 per 1h0m0s", rec.Body.String())

	rec = h.do(http.MethodPost, "/register", body, acceptJSON)
	assert.Equal(t, MsgTooManyRequests, decodeBody(t, rec)["message"])
}

func TestRateLimit_PerClientIP(t *testing.T) {
	h := newHarness(t, nil)
	creds := map[string]string{"username": "mallory", "password": "x"}
	for i := 0; i < 5; i++ {
		h.do(http.MethodPost, "/login", creds)
	}

	other := func(r *http.Request) { r.RemoteAddr = "198.51.100.1:1234" }
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/login", creds, other).Code)
}

func TestRateLimit_BackendFailure(t *testing.T) {
	h := newHarness(t, failingBackend{})

	rec := h.do(http.MethodPost, "/login", map[string]string{"username": "a", "password": "b"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = h.do(http.MethodPost, "/reset_password_request", map[string]string{"email": "a@example.com"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// non-sensitive routes stay available
	rec = h.do(http.MethodPost, "/register", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimit_DefaultsCoverRemainingRoutes(t *testing.T) {
	h := newHarness(t, nil)
	alice := h.seed("alice", "0", false)
	h.seed("root", "0", true)
	admin := h.login("root")
	cookie := h.login("alice")
	deposit := map[string]string{"account_number": alice.AccountNumber, "amount": "1"}

	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/deposit", deposit, withCookie(admin)).Code)
	}
	rec := h.do(http.MethodPost, "/deposit", deposit, withCookie(admin))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	a, _ := h.repos.Users().GetByID(context.Background(), alice.ID)
	assert.Equal(t, "50.00", a.Balance.StringFixed(2))

	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/account", nil, withCookie(cookie)).Code)
	}
	rec = h.do(http.MethodGet, "/api/account", nil, withCookie(cookie))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"Rate limit exceeded","message":"`+MsgTooManyRequests+`","status_code":429}`, rec.Body.String())

	// counted before the session lookup
	assert.Equal(t, http.StatusTooManyRequests, h.do(http.MethodGet, "/api/transactions", nil).Code)

	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/logout", nil).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, h.do(http.MethodPost, "/logout", nil).Code)

	m := h.do(http.MethodGet, "/metrics", nil)
	assert.Contains(t, m.Body.String(), `test_rate_limited_total{scope="deposit"} 1`)
	assert.Contains(t, m.Body.String(), `test_rate_limited_total{scope="account"} 2`)
}

func TestTransferFlow(t *testing.T) {
	h := newHarness(t, nil)
	alice := h.seed("alice", "100", false)
	bob := h.seed("bob", "0", false)
	cookie := h.login("alice")

	rec := h.do(http.MethodPost, "/transfer", url.Values{"recipient_username": {"bob"}, "amount": {"60"}}, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pending := decodeBody(t, rec)["pending"].(map[string]any)
	assert.Equal(t, "60.00", pending["amount"])
	assert.Equal(t, "bob", pending["recipient_username"])

	rec = h.do(http.MethodPost, "/transfer/confirm", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tx := decodeBody(t, rec)["transaction"].(map[string]any)
	assert.Equal(t, "out", tx["direction"])

	a, _ := h.repos.Users().GetByID(context.Background(), alice.ID)
	b, _ := h.repos.Users().GetByID(context.Background(), bob.ID)
	assert.Equal(t, "40.00", a.Balance.StringFixed(2))
	assert.Equal(t, "60.00", b.Balance.StringFixed(2))

	rec = h.do(http.MethodPost, "/transfer/confirm", nil, withCookie(cookie))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodGet, "/api/transactions", nil, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["transactions"], 1)
}

func TestTransfer_ConcurrentConfirmPaysOnce(t *testing.T) {
	h := newHarness(t, nil)
	alice := h.seed("alice", "100", false)
	bob := h.seed("bob", "0", false)
	cookie := h.login("alice")

	rec := h.do(http.MethodPost, "/transfer", map[string]string{"recipient_username": "bob", "amount": "10"}, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	codes := make([]int, 2)
	var wg sync.WaitGroup
	for i := range codes {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/transfer/confirm", nil)
			req.RemoteAddr = "203.0.113.7:5555"
			req.AddCookie(cookie)
			w := httptest.NewRecorder()
			h.handler.ServeHTTP(w, req)
			codes[i] = w.Code
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []int{http.StatusOK, http.StatusConflict}, codes)

	a, _ := h.repos.Users().GetByID(context.Background(), alice.ID)
	b, _ := h.repos.Users().GetByID(context.Background(), bob.ID)
	assert.Equal(t, "90.00", a.Balance.StringFixed(2))
	assert.Equal(t, "10.00", b.Balance.StringFixed(2))
}

func TestTransfer_LogoutDropsPending(t *testing.T) {
	h := newHarness(t, nil)
	h.seed("alice", "100", false)
	h.seed("bob", "0", false)
	cookie := h.login("alice")

	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/transfer", map[string]string{"recipient_username": "bob", "amount": "10"}, withCookie(cookie)).Code)
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/logout", nil, withCookie(cookie)).Code)

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/transfer/confirm", nil, withCookie(cookie)).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/account", nil, withCookie(cookie)).Code)
}

func TestTransfer_InsufficientFundsClearsPending(t *testing.T) {
	h := newHarness(t, nil)
	h.seed("alice", "10", false)
	h.seed("bob", "0", false)
	cookie := h.login("alice")

	rec := h.do(http.MethodPost, "/transfer", map[string]string{"recipient_username": "bob", "amount": "60"}, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodPost, "/transfer/confirm", nil, withCookie(cookie))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, MsgInsufficientFunds, decodeBody(t, rec)["error"])

	rec = h.do(http.MethodPost, "/transfer/confirm", nil, withCookie(cookie))
	assert.Equal(t, MsgNoPending, decodeBody(t, rec)["error"])
}

func TestTransfer_Rejections(t *testing.T) {
	h := newHarness(t, nil)
	h.seed("alice", "100", false)
	cookie := h.login("alice")

	rec := h.do(http.MethodPost, "/transfer", map[string]string{"recipient_username": "alice", "amount": "10"}, withCookie(cookie))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["fields"], "recipient_username")

	rec = h.do(http.MethodPost, "/transfer", map[string]string{"recipient_username": "bob", "amount": "ten"}, withCookie(cookie))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["fields"], "amount")

	rec = h.do(http.MethodPost, "/transfer/cancel", nil, withCookie(cookie))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodPost, "/transfer", map[string]string{"recipient_username": "bob", "amount": "10"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTransfer_Cancel(t *testing.T) {
	h := newHarness(t, nil)
	h.seed("alice", "100", false)
	h.seed("bob", "0", false)
	cookie := h.login("alice")

	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/transfer", map[string]string{"recipient_username": "bob", "amount": "10"}, withCookie(cookie)).Code)
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/transfer/cancel", nil, withCookie(cookie)).Code)
	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, "/transfer/confirm", nil, withCookie(cookie)).Code)
}

func TestAdminRoutes(t *testing.T) {
	h := newHarness(t, nil)
	alice := h.seed("alice", "0", false)
	h.seed("root", "0", true)

	userCookie := h.login("alice")
	rec := h.do(http.MethodPost, "/deposit", map[string]string{"account_number": alice.AccountNumber, "amount": "50"}, withCookie(userCookie))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/admin/users", nil, withCookie(userCookie)).Code)

	admin := h.login("root")
	rec = h.do(http.MethodPost, "/deposit", map[string]string{"account_number": alice.AccountNumber, "amount": "50"}, withCookie(admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, "/deposit", map[string]string{"account_number": "9999999999", "amount": "50"}, withCookie(admin))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodGet, "/api/admin/users", nil, withCookie(admin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["users"], 2)

	rec = h.do(http.MethodGet, "/api/admin/users/1", nil, withCookie(admin))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "50.00", decodeBody(t, rec)["user"].(map[string]any)["balance"])

	rec = h.do(http.MethodPost, "/api/admin/users/1", map[string]string{"email": "alice@example.com", "status": "deactivated"}, withCookie(admin))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// a deactivated user's live session stops working
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/account", nil, withCookie(userCookie)).Code)

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/admin/users/abc", nil, withCookie(admin)).Code)
}

func TestPasswordResetFlow(t *testing.T) {
	h := newHarness(t, nil)
	h.seed("alice", "0", false)

	unknown := h.do(http.MethodPost, "/reset_password_request", map[string]string{"email": "nobody@example.com"})
	known := h.do(http.MethodPost, "/reset_password_request", map[string]string{"email": "alice@example.com"})
	require.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, unknown.Code, known.Code)
	assert.Equal(t, unknown.Body.Bytes(), known.Body.Bytes())

	require.Len(t, h.events.events, 1)
	u, err := url.Parse(h.events.events[0].ResetURL)
	require.NoError(t, err)
	token := path.Base(u.Path)

	rec := h.do(http.MethodGet, "/reset_password/"+token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodPost, "/reset_password/"+token, map[string]string{"password": "Newpass1!", "password2": "Newpass1!"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(http.MethodPost, "/reset_password/"+token, map[string]string{"password": "Newpass1!", "password2": "Newpass1!"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgInvalidResetLink, decodeBody(t, rec)["error"])
	assert.NotContains(t, h.logs.String(), token)

	rec = h.do(http.MethodPost, "/login", map[string]string{"username": "alice", "password": "Newpass1!"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatement_Disabled(t *testing.T) {
	h := newHarness(t, nil)
	h.seed("alice", "0", false)
	cookie := h.login("alice")

	rec := h.do(http.MethodPost, "/api/account/statement", nil, withCookie(cookie))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateProfile(t *testing.T) {
	h := newHarness(t, nil)
	h.seed("alice", "0", false)
	h.seed("bob", "0", false)
	cookie := h.login("alice")

	rec := h.do(http.MethodPost, "/api/account/profile", map[string]string{"email": "bob@example.com"}, withCookie(cookie))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["fields"], "email")

	rec = h.do(http.MethodPost, "/api/account/profile", map[string]string{"email": "alice@example.com", "firstname": "Alice"}, withCookie(cookie))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice", decodeBody(t, rec)["user"].(map[string]any)["firstname"])
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		code int
		msg  string
	}{
		{common.ErrInvalidCredentials, http.StatusUnauthorized, MsgInvalidLogin},
		{common.ErrAccountDeactivated, http.StatusForbidden, MsgDeactivated},
		{common.ErrAccountPending, http.StatusForbidden, MsgPending},
		{common.ErrTokenExpired, http.StatusBadRequest, MsgInvalidResetLink},
		{common.ErrTokenUnknown, http.StatusBadRequest, MsgInvalidResetLink},
		{common.ErrInsufficientFunds, http.StatusConflict, MsgInsufficientFunds},
		{common.ErrorDisabled, http.StatusNotFound, MsgNotFound},
		{common.ErrorInternal, http.StatusInternalServerError, MsgInternal},
		{context.DeadlineExceeded, http.StatusInternalServerError, MsgInternal},
		{errors.New("pq: relation users does not exist"), http.StatusInternalServerError, MsgInternal},
	}
	for _, tt := range tests {
		code, body := errorStatus(tt.err)
		assert.Equal(t, tt.code, code, tt.err.Error())
		assert.Equal(t, tt.msg, body.Error, tt.err.Error())
	}
}
