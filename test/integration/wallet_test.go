//go:build integration

package integration

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robumart/platform/internal/domain"
	"github.com/robumart/platform/test/integration/testutil"
)

func TestTopUpCrypto_FullCycle(t *testing.T) {
	env := testutil.NewTestEnv(t)
	userID, token := env.NewUser(0)

	// 500.00 rub top-up.
	resp := env.POST("/wallet/topup", map[string]int64{"amount": 50_000}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var payment domain.Payment
	testutil.Decode(env, resp, &payment)
	assert.Equal(t, domain.PaymentStatusPending, payment.Status)
	require.NotNil(t, payment.InvoiceURL)
	assert.Equal(t, int64(0), env.Balance(userID))

	// Still unpaid on the provider side.
	resp = env.GET("/wallet/status/"+payment.ID, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var checked domain.Payment
	testutil.Decode(env, resp, &checked)
	assert.Equal(t, domain.PaymentStatusPending, checked.Status)

	// Provider confirms; the status poll resolves and credits.
	invoiceID, err := strconv.ParseInt(payment.ID, 10, 64)
	require.NoError(t, err)
	env.Crypto.MarkPaid(invoiceID)

	resp = env.GET("/wallet/status/"+payment.ID, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	testutil.Decode(env, resp, &checked)
	assert.Equal(t, domain.PaymentStatusPaid, checked.Status)
	assert.Equal(t, int64(50_000), env.Balance(userID))

	// Polling again must not double-credit.
	resp = env.GET("/wallet/status/"+payment.ID, token)
	resp.Body.Close()
	assert.Equal(t, int64(50_000), env.Balance(userID))
}

func TestTopUpCrypto_ExpiredInvoiceClosesPayment(t *testing.T) {
	env := testutil.NewTestEnv(t)
	userID, token := env.NewUser(0)

	resp := env.POST("/wallet/topup", map[string]int64{"amount": 50_000}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var payment domain.Payment
	testutil.Decode(env, resp, &payment)

	invoiceID, err := strconv.ParseInt(payment.ID, 10, 64)
	require.NoError(t, err)
	env.Crypto.MarkExpired(invoiceID)

	resp = env.GET("/wallet/status/"+payment.ID, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var checked domain.Payment
	testutil.Decode(env, resp, &checked)
	assert.Equal(t, domain.PaymentStatusExpired, checked.Status)
	assert.Equal(t, "expired", env.PaymentStatus(payment.ID))
	assert.Equal(t, int64(0), env.Balance(userID))

	// The provider flipping to paid afterwards changes nothing; the
	// payment already left pending.
	env.Crypto.MarkPaid(invoiceID)
	resp = env.GET("/wallet/status/"+payment.ID, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	testutil.Decode(env, resp, &checked)
	assert.Equal(t, domain.PaymentStatusExpired, checked.Status)
	assert.Equal(t, int64(0), env.Balance(userID))
}

func TestTopUp_RejectsBelowMinimum(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, token := env.NewUser(0)

	resp := env.POST("/wallet/topup", map[string]int64{"amount": 500}, token)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTopUp_CreditsReferralBonus(t *testing.T) {
	env := testutil.NewTestEnv(t)
	referrerID, _ := env.NewUser(0)
	userID, token := env.NewUser(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := env.Pool.Exec(ctx,
		`UPDATE users SET referrer_id = $2 WHERE id = $1`, userID, referrerID)
	require.NoError(t, err)

	resp := env.POST("/wallet/topup", map[string]int64{"amount": 50_000}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var payment domain.Payment
	testutil.Decode(env, resp, &payment)

	invoiceID, err := strconv.ParseInt(payment.ID, 10, 64)
	require.NoError(t, err)
	env.Crypto.MarkPaid(invoiceID)

	resp = env.GET("/wallet/status/"+payment.ID, token)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// 5% of 500.00 rub.
	assert.Equal(t, int64(2_500), referralBalance(t, env, referrerID))
}

func TestTopUp_RateLimited(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, token := env.NewUser(0)

	// The top-up routes allow five calls a minute per user.
	for i := 0; i < 5; i++ {
		resp := env.POST("/wallet/topup", map[string]int64{"amount": 1_000}, token)
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := env.POST("/wallet/topup", map[string]int64{"amount": 1_000}, token)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Another user is unaffected.
	_, other := env.NewUser(0)
	resp = env.POST("/wallet/topup", map[string]int64{"amount": 1_000}, other)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestReferralTransfer(t *testing.T) {
	env := testutil.NewTestEnv(t)
	userID, token := env.NewUser(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := env.Pool.Exec(ctx,
		`UPDATE users SET referral_balance = 3000 WHERE id = $1`, userID)
	require.NoError(t, err)

	resp := env.POST("/referrals/transfer", map[string]int64{"amount": 2_000}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	assert.Equal(t, int64(2_000), env.Balance(userID))
	assert.Equal(t, int64(1_000), referralBalance(t, env, userID))

	// More than remains must fail without moving anything.
	resp = env.POST("/referrals/transfer", map[string]int64{"amount": 5_000}, token)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, int64(1_000), referralBalance(t, env, userID))
}

func TestWalletRate(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, token := env.NewUser(0)

	resp := env.GET("/wallet/rate", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Rate  float64 `json:"rate"`
		Stock int64   `json:"stock"`
	}
	testutil.Decode(env, resp, &body)
	assert.Equal(t, 0.70, body.Rate)
	assert.Equal(t, int64(1_000_000), body.Stock)
}

func TestLinkExchangeUID(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, token := env.NewUser(0)
	_, otherToken := env.NewUser(0)

	resp := env.PUT("/me/exchange-uid", map[string]string{"uid": "12345678"}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The same UID cannot be linked to a second account.
	resp = env.PUT("/me/exchange-uid", map[string]string{"uid": "12345678"}, otherToken)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCronEndpoints_RequireSecret(t *testing.T) {
	env := testutil.NewTestEnv(t)

	req, err := http.NewRequest(http.MethodPost, env.Server.URL+"/cron/cleanup-payments", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testutil.TestCronSecret)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func referralBalance(t *testing.T, env *testutil.TestEnv, userID uuid.UUID) int64 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var balance int64
	err := env.Pool.QueryRow(ctx,
		`SELECT referral_balance::bigint FROM users WHERE id = $1`, userID).Scan(&balance)
	require.NoError(t, err)
	return balance
}
