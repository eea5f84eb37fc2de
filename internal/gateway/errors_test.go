package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		status int
		kind   Kind
	}{
		{400, KindValidation},
		{402, KindOutOfStock},
		{403, KindInsufficientUpstream},
		{404, KindNotFound},
		{409, KindConflict},
		{429, KindRateLimited},
		{500, KindServer},
		{502, KindServer},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, classify(tc.status), "status %d", tc.status)
	}
}

func TestTransient(t *testing.T) {
	assert.True(t, (&Error{Kind: KindTimeout}).Transient())
	assert.True(t, (&Error{Kind: KindServer}).Transient())
	assert.True(t, (&Error{Kind: KindRateLimited}).Transient())

	assert.False(t, (&Error{Kind: KindValidation}).Transient())
	assert.False(t, (&Error{Kind: KindOutOfStock}).Transient())
	assert.False(t, (&Error{Kind: KindInsufficientUpstream}).Transient())
	assert.False(t, (&Error{Kind: KindNotFound}).Transient())
	assert.False(t, (&Error{Kind: KindConflict}).Transient())
}

func TestClient_ClassifiesErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("api-key"))
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"message":"not enough stock"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", slog.Default())
	_, err := c.CreateGamepassOrder(context.Background(), CreateOrderRequest{
		OrderID: "o-1", Username: "builderman", Amount: 100, PlaceID: 123,
	})

	var gwErr *Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, KindOutOfStock, gwErr.Kind)
	assert.Equal(t, 402, gwErr.Status)
	assert.Equal(t, "not enough stock", gwErr.Message)
	assert.False(t, gwErr.Transient())
}

func TestClient_CreateOrderSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/gamepass", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"data":{"orderId":"o-1","robloxUsername":"builderman","robuxAmount":100,"status":"Queued","placeId":123}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", slog.Default())
	data, err := c.CreateGamepassOrder(context.Background(), CreateOrderRequest{
		OrderID: "o-1", Username: "builderman", Amount: 100, PlaceID: 123,
	})
	require.NoError(t, err)
	assert.Equal(t, "o-1", data.OrderID)
	assert.Equal(t, StatusQueued, data.Status)
}
