//go:build integration

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/robumart/platform/internal/auth"
)

// NewUser inserts a user with the given balance in kopecks and returns the
// user id and a user-realm token.
func (env *TestEnv) NewUser(balance int64) (uuid.UUID, string) {
	env.t.Helper()
	return env.newUser(balance, "user")
}

// NewAdmin inserts an admin user and returns the id and an admin-realm token.
func (env *TestEnv) NewAdmin() (uuid.UUID, string) {
	env.t.Helper()

	id := uuid.New()
	env.insertUser(id, 0, "admin")

	token, err := env.JWTMgr.GenerateToken(auth.RealmAdmin, id, "admin")
	if err != nil {
		env.t.Fatalf("NewAdmin: generate token: %v", err)
	}
	return id, token
}

func (env *TestEnv) newUser(balance int64, role string) (uuid.UUID, string) {
	id := uuid.New()
	env.insertUser(id, balance, role)

	token, err := env.JWTMgr.GenerateToken(auth.RealmUser, id, role)
	if err != nil {
		env.t.Fatalf("newUser: generate token: %v", err)
	}
	return id, token
}

func (env *TestEnv) insertUser(id uuid.UUID, balance int64, role string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := env.Pool.Exec(ctx, `
		INSERT INTO users (id, username, role, balance)
		VALUES ($1, $2, $3, $4)`,
		id, "it_"+id.String()[:8], role, balance)
	if err != nil {
		env.t.Fatalf("insertUser: %v", err)
	}
}

// Balance reads the user's current spendable balance in kopecks.
func (env *TestEnv) Balance(userID uuid.UUID) int64 {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var balance int64
	err := env.Pool.QueryRow(ctx,
		`SELECT balance::bigint FROM users WHERE id = $1`, userID).Scan(&balance)
	if err != nil {
		env.t.Fatalf("Balance: %v", err)
	}
	return balance
}

// OrderStatus reads an order's current status.
func (env *TestEnv) OrderStatus(orderID uuid.UUID) string {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var status string
	err := env.Pool.QueryRow(ctx,
		`SELECT status FROM orders WHERE id = $1`, orderID).Scan(&status)
	if err != nil {
		env.t.Fatalf("OrderStatus: %v", err)
	}
	return status
}

// PaymentStatus reads a payment's current status.
func (env *TestEnv) PaymentStatus(paymentID string) string {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var status string
	err := env.Pool.QueryRow(ctx,
		`SELECT status FROM payments WHERE id = $1`, paymentID).Scan(&status)
	if err != nil {
		env.t.Fatalf("PaymentStatus: %v", err)
	}
	return status
}

// UpstreamID reads an order's stored supplier-side id, empty when unset.
func (env *TestEnv) UpstreamID(orderID uuid.UUID) string {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var upstream *string
	err := env.Pool.QueryRow(ctx,
		`SELECT upstream_id FROM orders WHERE id = $1`, orderID).Scan(&upstream)
	if err != nil {
		env.t.Fatalf("UpstreamID: %v", err)
	}
	if upstream == nil {
		return ""
	}
	return *upstream
}

// POST sends a JSON POST with an optional bearer token.
func (env *TestEnv) POST(path string, body any, token string) *http.Response {
	env.t.Helper()
	return env.request(http.MethodPost, path, body, token)
}

// PUT sends a JSON PUT with an optional bearer token.
func (env *TestEnv) PUT(path string, body any, token string) *http.Response {
	env.t.Helper()
	return env.request(http.MethodPut, path, body, token)
}

// GET sends a GET with an optional bearer token.
func (env *TestEnv) GET(path, token string) *http.Response {
	env.t.Helper()
	return env.request(http.MethodGet, path, nil, token)
}

func (env *TestEnv) request(method, path string, body any, token string) *http.Response {
	var reqBody *bytes.Buffer = bytes.NewBuffer(nil)
	if body != nil {
		if raw, ok := body.([]byte); ok {
			reqBody = bytes.NewBuffer(raw)
		} else if err := json.NewEncoder(reqBody).Encode(body); err != nil {
			env.t.Fatalf("encode request body: %v", err)
		}
	}

	req, err := http.NewRequest(method, env.Server.URL+path, reqBody)
	if err != nil {
		env.t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// Decode decodes the response body into dst and closes it.
func Decode(env *TestEnv, resp *http.Response, dst any) {
	env.t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		env.t.Fatalf("decode response: %v", err)
	}
}
