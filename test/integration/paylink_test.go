//go:build integration

package integration

import (
	"context"
	"crypto/md5"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robumart/platform/test/integration/testutil"
)

// insertPendingBill plants a pending fiat-gateway payment the way /wallet/bill
// would record it, without needing the gateway up.
func insertPendingBill(t *testing.T, env *testutil.TestEnv, userID uuid.UUID, amount int64) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id := uuid.NewString()
	_, err := env.Pool.Exec(ctx, `
		INSERT INTO payments (id, user_id, amount, method, status)
		VALUES ($1, $2, $3, 'paylink', 'pending')`,
		id, userID, amount)
	require.NoError(t, err)
	return id
}

// paylinkPostback builds a signed postback body for the test gateway token.
func paylinkPostback(status, invID, outSum string) map[string]any {
	sum := md5.Sum([]byte(outSum + ":" + invID + ":" + testutil.TestPayLinkToken))
	return map[string]any{
		"Status":         status,
		"InvId":          invID,
		"OutSum":         outSum,
		"SignatureValue": fmt.Sprintf("%X", sum),
	}
}

func TestPayLinkPostback_SuccessCredits(t *testing.T) {
	env := testutil.NewTestEnv(t)
	userID, _ := env.NewUser(0)
	billID := insertPendingBill(t, env, userID, 25_000)

	resp := env.POST("/webhooks/paylink", paylinkPostback("SUCCESS", billID, "250.00"), "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "paid", env.PaymentStatus(billID))
	assert.Equal(t, int64(25_000), env.Balance(userID))
}

func TestPayLinkPostback_FailureCancelsPendingBill(t *testing.T) {
	env := testutil.NewTestEnv(t)
	userID, _ := env.NewUser(0)
	billID := insertPendingBill(t, env, userID, 25_000)

	resp := env.POST("/webhooks/paylink", paylinkPostback("FAIL", billID, "250.00"), "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "cancelled", env.PaymentStatus(billID))
	assert.Equal(t, int64(0), env.Balance(userID))

	// A success arriving after the cancel lost the pending gate; no credit.
	resp = env.POST("/webhooks/paylink", paylinkPostback("SUCCESS", billID, "250.00"), "")
	resp.Body.Close()
	assert.Equal(t, "cancelled", env.PaymentStatus(billID))
	assert.Equal(t, int64(0), env.Balance(userID))
}

func TestPayLinkPostback_FailureAfterPaidKeepsCredit(t *testing.T) {
	env := testutil.NewTestEnv(t)
	userID, _ := env.NewUser(0)
	billID := insertPendingBill(t, env, userID, 25_000)

	resp := env.POST("/webhooks/paylink", paylinkPostback("SUCCESS", billID, "250.00"), "")
	resp.Body.Close()
	require.Equal(t, int64(25_000), env.Balance(userID))

	resp = env.POST("/webhooks/paylink", paylinkPostback("FAIL", billID, "250.00"), "")
	resp.Body.Close()
	assert.Equal(t, "paid", env.PaymentStatus(billID))
	assert.Equal(t, int64(25_000), env.Balance(userID))
}

func TestPayLinkPostback_RejectsBadSignature(t *testing.T) {
	env := testutil.NewTestEnv(t)
	userID, _ := env.NewUser(0)
	billID := insertPendingBill(t, env, userID, 25_000)

	body := paylinkPostback("SUCCESS", billID, "250.00")
	body["SignatureValue"] = "00000000000000000000000000000000"

	resp := env.POST("/webhooks/paylink", body, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	assert.Equal(t, "pending", env.PaymentStatus(billID))
	assert.Equal(t, int64(0), env.Balance(userID))
}
