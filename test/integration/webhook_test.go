//go:build integration

package integration

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robumart/platform/internal/domain"
	"github.com/robumart/platform/internal/gateway"
	"github.com/robumart/platform/test/integration/testutil"
)

// signedSupplierWebhook marshals the payload, signs it and embeds the sign
// field the way the supplier does.
func signedSupplierWebhook(t *testing.T, payload map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	sign, err := gateway.ComputeSign(raw, testutil.TestSupplierAPIKey)
	require.NoError(t, err)

	payload["sign"] = sign
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return body
}

func TestSupplierWebhook_CompletesOrder(t *testing.T) {
	env := testutil.NewTestEnv(t)
	userID, token := env.NewUser(10_000)

	resp := env.POST("/orders", createOrderBody(100), token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var order domain.Order
	testutil.Decode(env, resp, &order)

	body := signedSupplierWebhook(t, map[string]any{
		"type":        "gamepass_order",
		"uuid":        "supplier-uuid-1",
		"orderId":     order.ID.String(),
		"status":      "Completed",
		"robuxAmount": 100,
	})

	resp = env.POST("/webhooks/supplier", body, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "completed", env.OrderStatus(order.ID))
	// The hold stays spent.
	assert.Equal(t, int64(3_000), env.Balance(userID))
}

func TestSupplierWebhook_MatchesBySupplierOrderID(t *testing.T) {
	env := testutil.NewTestEnv(t)
	userID, token := env.NewUser(10_000)

	resp := env.POST("/orders", createOrderBody(100), token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var order domain.Order
	testutil.Decode(env, resp, &order)

	// The callback carries the supplier's own id, not our uuid.
	body := signedSupplierWebhook(t, map[string]any{
		"type":    "gamepass_order",
		"uuid":    "supplier-uuid-3",
		"orderId": "rbx-" + order.ID.String(),
		"status":  "Completed",
	})

	resp = env.POST("/webhooks/supplier", body, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "completed", env.OrderStatus(order.ID))
	assert.Equal(t, int64(3_000), env.Balance(userID))
}

func TestSupplierWebhook_UnknownOrderNotFound(t *testing.T) {
	env := testutil.NewTestEnv(t)

	body := signedSupplierWebhook(t, map[string]any{
		"type":    "gamepass_order",
		"orderId": "rbx-never-created",
		"status":  "Completed",
	})

	resp := env.POST("/webhooks/supplier", body, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSupplierWebhook_ErrorRefunds(t *testing.T) {
	env := testutil.NewTestEnv(t)
	userID, token := env.NewUser(10_000)

	resp := env.POST("/orders", createOrderBody(100), token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var order domain.Order
	testutil.Decode(env, resp, &order)

	body := signedSupplierWebhook(t, map[string]any{
		"type":    "gamepass_order",
		"uuid":    "supplier-uuid-2",
		"orderId": order.ID.String(),
		"status":  "Error",
		"error":   map[string]any{"reason": "delivery_failed", "message": "target gamepass missing"},
	})

	resp = env.POST("/webhooks/supplier", body, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "failed", env.OrderStatus(order.ID))
	assert.Equal(t, int64(10_000), env.Balance(userID))
}

func TestSupplierWebhook_DuplicateDeliveryIsIdempotent(t *testing.T) {
	env := testutil.NewTestEnv(t)
	userID, token := env.NewUser(10_000)

	resp := env.POST("/orders", createOrderBody(100), token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var order domain.Order
	testutil.Decode(env, resp, &order)

	body := signedSupplierWebhook(t, map[string]any{
		"type":    "gamepass_order",
		"orderId": order.ID.String(),
		"status":  "Error",
	})

	for i := 0; i < 3; i++ {
		resp := env.POST("/webhooks/supplier", body, "")
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	// One refund, not three.
	assert.Equal(t, int64(10_000), env.Balance(userID))
}

func TestSupplierWebhook_RejectsBadSignature(t *testing.T) {
	env := testutil.NewTestEnv(t)
	userID, token := env.NewUser(10_000)

	resp := env.POST("/orders", createOrderBody(100), token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var order domain.Order
	testutil.Decode(env, resp, &order)

	body, err := json.Marshal(map[string]any{
		"orderId": order.ID.String(),
		"status":  "Completed",
		"sign":    "0000000000000000000000000000000000000000",
	})
	require.NoError(t, err)

	resp = env.POST("/webhooks/supplier", body, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	assert.Equal(t, "processing", env.OrderStatus(order.ID))
	assert.Equal(t, int64(3_000), env.Balance(userID))
}

func TestSupplierWebhook_NonTerminalStatusIgnored(t *testing.T) {
	env := testutil.NewTestEnv(t)
	_, token := env.NewUser(10_000)

	resp := env.POST("/orders", createOrderBody(100), token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var order domain.Order
	testutil.Decode(env, resp, &order)

	body := signedSupplierWebhook(t, map[string]any{
		"orderId": order.ID.String(),
		"status":  "Queued",
	})

	resp = env.POST("/webhooks/supplier", body, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "processing", env.OrderStatus(order.ID))
}
