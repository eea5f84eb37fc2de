package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExchangeListInternalDeposits_SignsRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/asset/deposit/query-internal-record", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("X-BAPI-API-KEY"))
		assert.Equal(t, "5000", r.Header.Get("X-BAPI-RECV-WINDOW"))

		ts := r.Header.Get("X-BAPI-TIMESTAMP")
		require.NotEmpty(t, ts)

		mac := hmac.New(sha256.New, []byte("secret-1"))
		mac.Write([]byte(ts + "key-1" + "5000" + r.URL.RawQuery))
		assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), r.Header.Get("X-BAPI-SIGN"))

		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"rows":[
			{"id":"1","amount":"10.5","coin":"USDT","address":"100200","status":2,"txID":"tx-1","createdTime":"1700000000000"},
			{"id":"2","amount":"3.0","coin":"USDT","address":"100300","status":3,"txID":"tx-2","createdTime":"1700000001000"}
		],"nextPageCursor":""}}`))
	}))
	defer srv.Close()

	p := NewExchangeProvider(srv.URL, "key-1", "secret-1", slog.Default())
	rows, err := p.ListInternalDeposits(context.Background(), 1700000000000, 5)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "tx-1", rows[0].TxID)
	assert.Equal(t, "100200", rows[0].Address)
	assert.True(t, rows[0].Succeeded())
	assert.False(t, rows[1].Succeeded())
}

func TestExchangeListInternalDeposits_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":10003,"retMsg":"invalid api key"}`))
	}))
	defer srv.Close()

	p := NewExchangeProvider(srv.URL, "bad-key", "secret", slog.Default())
	_, err := p.ListInternalDeposits(context.Background(), 0, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestExchangeListInternalDeposits_Paginates(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			assert.Empty(t, r.URL.Query().Get("cursor"))
			_, _ = w.Write([]byte(`{"retCode":0,"result":{"rows":[{"id":"1","txID":"tx-1","status":2}],"nextPageCursor":"c2"}}`))
			return
		}
		assert.Equal(t, "c2", r.URL.Query().Get("cursor"))
		_, _ = w.Write([]byte(`{"retCode":0,"result":{"rows":[{"id":"2","txID":"tx-2","status":2}],"nextPageCursor":""}}`))
	}))
	defer srv.Close()

	p := NewExchangeProvider(srv.URL, "key", "secret", slog.Default())
	rows, err := p.ListInternalDeposits(context.Background(), 0, 5)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, 2, calls)
}
