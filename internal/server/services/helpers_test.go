package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/bankapp/internal/logging"
	"github.com/dmitrijs2005/bankapp/internal/server/auth"
	"github.com/dmitrijs2005/bankapp/internal/server/config"
	"github.com/dmitrijs2005/bankapp/internal/server/models"
	"github.com/dmitrijs2005/bankapp/internal/server/repositories/memstore"
	"github.com/dmitrijs2005/bankapp/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bankapp/internal/server/repositories/transactions"
	"github.com/dmitrijs2005/bankapp/internal/server/repositories/users"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var t0 = time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type published struct {
	key  string
	body any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, key string, body any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{key: key, body: body})
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type testEnv struct {
	cfg       *config.Config
	repos     repomanager.RepositoryManager
	hasher    auth.Hasher
	clock     *fakeClock
	events    *recordingPublisher
	users     *UserService
	transfers *TransferService
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.RegistrationDefaultStatus = "active"
	cfg.PublicBaseURL = "https://bank.example/"

	env := &testEnv{
		cfg:    cfg,
		repos:  repomanager.NewInMemoryRepositoryManager(memstore.New()),
		hasher: auth.NewBcryptHasher(bcrypt.MinCost),
		clock:  &fakeClock{now: t0},
		events: &recordingPublisher{},
	}
	tokens := auth.NewResetTokens([]byte("test-secret"), cfg.ResetTokenValidity, env.clock.Now)

	env.users = NewUserService(env.repos, env.hasher, tokens, env.events, logging.Nop{}, cfg)
	env.users.clock = env.clock.Now

	env.transfers = NewTransferService(env.repos, logging.Nop{}, nil, cfg)
	env.transfers.clock = env.clock.Now
	return env
}

// seed inserts a user straight into the store.
func (e *testEnv) seed(t *testing.T, username, account, balance, status string) *models.User {
	t.Helper()
	hash, err := e.hasher.Hash("Abcd123!")
	require.NoError(t, err)

	u, err := e.repos.Users().Create(context.Background(), &models.User{
		Username:      username,
		Email:         username + "@example.com",
		PasswordHash:  hash,
		AccountNumber: account,
		Balance:       decimal.RequireFromString(balance),
		Status:        status,
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) balance(t *testing.T, id int64) decimal.Decimal {
	t.Helper()
	u, err := e.repos.Users().GetByID(context.Background(), id)
	require.NoError(t, err)
	return u.Balance
}

var errStoreDown = errors.New("connection refused")

// brokenRepos fails every store call.
type brokenRepos struct{}

func (brokenRepos) Users() users.Repository               { return brokenUsers{} }
func (brokenRepos) Transactions() transactions.Repository { return brokenTxs{} }
func (brokenRepos) RunMigrations(context.Context) error   { return errStoreDown }
func (brokenRepos) WithTx(context.Context, func(context.Context, repomanager.Repositories) error) error {
	return errStoreDown
}

type brokenUsers struct{ users.Repository }

func (brokenUsers) GetByUsername(context.Context, string) (*models.User, error) {
	return nil, errStoreDown
}
func (brokenUsers) GetByEmail(context.Context, string) (*models.User, error) {
	return nil, errStoreDown
}
func (brokenUsers) GetByID(context.Context, int64) (*models.User, error) {
	return nil, errStoreDown
}
func (brokenUsers) List(context.Context, int, int) ([]*models.User, error) {
	return nil, errStoreDown
}

type brokenTxs struct{ transactions.Repository }

func (brokenTxs) ListByUser(context.Context, int64, int) ([]*models.Transaction, error) {
	return nil, errStoreDown
}
