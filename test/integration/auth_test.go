//go:build integration

package integration

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robumart/platform/internal/domain"
	"github.com/robumart/platform/test/integration/testutil"
)

// telegramLoginPayload builds a widget payload signed with the test bot token.
func telegramLoginPayload(t *testing.T, telegramID int64, username string, botToken string) map[string]any {
	t.Helper()

	authDate := time.Now().Unix()
	fields := map[string]string{
		"id":        fmt.Sprintf("%d", telegramID),
		"auth_date": fmt.Sprintf("%d", authDate),
	}
	if username != "" {
		fields["username"] = username
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}

	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(strings.Join(lines, "\n")))

	return map[string]any{
		"id":        telegramID,
		"username":  username,
		"auth_date": authDate,
		"hash":      hex.EncodeToString(mac.Sum(nil)),
	}
}

func TestTelegramLogin_CreatesAccountAndIssuesToken(t *testing.T) {
	env := testutil.NewTestEnv(t)

	payload := telegramLoginPayload(t, 777001, "alice_w", testutil.TestBotToken)
	resp := env.POST("/auth/telegram", payload, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var login struct {
		Token string       `json:"token"`
		User  *domain.User `json:"user"`
	}
	testutil.Decode(env, resp, &login)
	require.NotEmpty(t, login.Token)
	require.NotNil(t, login.User)
	assert.Equal(t, "alice_w", login.User.Username)

	// The issued token works against protected routes.
	resp = env.GET("/me", login.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me domain.User
	testutil.Decode(env, resp, &me)
	assert.Equal(t, login.User.ID, me.ID)
}

func TestTelegramLogin_SameTelegramIDReusesAccount(t *testing.T) {
	env := testutil.NewTestEnv(t)

	first := telegramLoginPayload(t, 777002, "bob", testutil.TestBotToken)
	resp := env.POST("/auth/telegram", first, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var a struct {
		User *domain.User `json:"user"`
	}
	testutil.Decode(env, resp, &a)

	second := telegramLoginPayload(t, 777002, "bob", testutil.TestBotToken)
	resp = env.POST("/auth/telegram", second, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var b struct {
		User *domain.User `json:"user"`
	}
	testutil.Decode(env, resp, &b)

	assert.Equal(t, a.User.ID, b.User.ID)
}

func TestTelegramLogin_RejectsForgedHash(t *testing.T) {
	env := testutil.NewTestEnv(t)

	payload := telegramLoginPayload(t, 777003, "mallory", "wrong-bot-token")
	resp := env.POST("/auth/telegram", payload, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProtectedRoutes_RejectMissingToken(t *testing.T) {
	env := testutil.NewTestEnv(t)

	resp := env.GET("/me", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
