//go:build integration

package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/robumart/platform/internal/app"
	"github.com/robumart/platform/internal/auth"
	"github.com/robumart/platform/internal/infra"
)

const (
	TestJWTSecret      = "integration-test-secret"
	TestSupplierAPIKey = "integration-supplier-key"
	TestCryptoPayToken = "integration-cryptopay-token"
	TestPayLinkToken   = "integration-paylink-token"
	TestBotToken       = "integration-bot-token"
	TestCronSecret     = "integration-cron-secret"
	TestDBHost         = "localhost"
	TestDBPort         = 5435
	TestDBUser         = "robumart"
	TestDBPass         = "robumart"
	TestDBName         = "robumart_test"
)

// TestEnv holds all resources for an integration test.
type TestEnv struct {
	Server   *httptest.Server
	Pool     *pgxpool.Pool
	JWTMgr   *auth.JWTManager
	Supplier *SupplierStub
	Crypto   *CryptoPayStub
	Exchange *ExchangeStub
	t        *testing.T
}

var (
	sharedPool *pgxpool.Pool
	poolOnce   sync.Once
	poolErr    error
)

func testDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		TestDBUser, TestDBPass, TestDBHost, TestDBPort, TestDBName)
}

func bootstrapDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		TestDBUser, TestDBPass, TestDBHost, TestDBPort, "robumart")
}

func ensureTestDB() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bPool, err := pgxpool.New(ctx, bootstrapDSN())
	if err != nil {
		return fmt.Errorf("connect bootstrap db: %w", err)
	}
	defer bPool.Close()

	var exists bool
	err = bPool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", TestDBName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check db exists: %w", err)
	}

	if !exists {
		_, err = bPool.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", TestDBName))
		if err != nil {
			return fmt.Errorf("create test db: %w", err)
		}
	}
	return nil
}

func runTestMigrations() error {
	migratePath := fmt.Sprintf("file://%s/db/migrations", findProjectRoot())

	m, err := newMigrate(migratePath, testDSN())
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err.Error() != "no change" {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func findProjectRoot() string {
	dir, _ := os.Getwd()
	for dir != "" && dir != "/" {
		if _, err := os.Stat(dir + "/go.mod"); err == nil {
			return dir
		}
		i := len(dir) - 1
		for i > 0 && dir[i] != '/' {
			i--
		}
		dir = dir[:i]
	}
	return "."
}

func getSharedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	poolOnce.Do(func() {
		if err := ensureTestDB(); err != nil {
			poolErr = err
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		poolCfg, err := pgxpool.ParseConfig(testDSN())
		if err != nil {
			poolErr = fmt.Errorf("parse pool config: %w", err)
			return
		}
		poolCfg.MaxConns = 10
		poolCfg.MinConns = 1

		sharedPool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			poolErr = fmt.Errorf("create pool: %w", err)
			return
		}

		if err := runTestMigrations(); err != nil {
			poolErr = fmt.Errorf("run migrations: %w", err)
			sharedPool.Close()
			sharedPool = nil
			return
		}
	})

	if poolErr != nil {
		t.Fatalf("failed to initialize test pool: %v", poolErr)
	}
	return sharedPool
}

// NewTestEnv creates a test environment with an httptest.Server backed by the
// real router, a test DB and stubbed external providers.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	pool := getSharedPool(t)

	supplier := NewSupplierStub(t)
	crypto := NewCryptoPayStub(t)
	exchange := NewExchangeStub(t)

	jwtMgr := auth.NewJWTManager(TestJWTSecret, 24*time.Hour, 8*time.Hour)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	cfg := &infra.Config{
		JWTSecret:         TestJWTSecret,
		CronSecret:        TestCronSecret,
		SupplierBaseURL:   supplier.Server.URL,
		SupplierAPIKey:    TestSupplierAPIKey,
		CryptoPayBaseURL:  crypto.Server.URL,
		CryptoPayToken:    TestCryptoPayToken,
		PayLinkBaseURL:    "http://paylink.invalid",
		PayLinkToken:      TestPayLinkToken,
		PayLinkShopID:     "shop-test",
		ExchangeBaseURL:   exchange.Server.URL,
		ExchangeAPIKey:    "integration-exchange-key",
		ExchangeAPISecret: "integration-exchange-secret",
		TelegramBotToken:  TestBotToken,
		PricingMode:       "manual",
		SellRate:          0.70,
		BuyRate:           0.50,
		MarkupType:        "percent",
		MarkupValue:       15,
		ReferralPercent:   5,
	}

	deps := app.RouterDeps{
		Pool:   pool,
		Redis:  nil, // caching disabled in tests
		Config: cfg,
		JWTMgr: jwtMgr,
		Logger: logger,
	}
	svcs := app.BuildServices(deps)
	router := app.NewRouter(deps, svcs)

	server := httptest.NewServer(router)

	env := &TestEnv{
		Server:   server,
		Pool:     pool,
		JWTMgr:   jwtMgr,
		Supplier: supplier,
		Crypto:   crypto,
		Exchange: exchange,
		t:        t,
	}

	t.Cleanup(func() {
		server.Close()
		supplier.Close()
		crypto.Close()
		exchange.Close()
		env.CleanAll()
	})

	// Clean before test to ensure isolation
	env.CleanAll()

	return env
}
