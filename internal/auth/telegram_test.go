package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signTelegramLogin(t *testing.T, login *TelegramLogin, botToken string) string {
	t.Helper()

	fields := map[string]string{
		"id":        fmt.Sprintf("%d", login.ID),
		"auth_date": fmt.Sprintf("%d", login.AuthDate),
	}
	if login.FirstName != "" {
		fields["first_name"] = login.FirstName
	}
	if login.LastName != "" {
		fields["last_name"] = login.LastName
	}
	if login.Username != "" {
		fields["username"] = login.Username
	}
	if login.PhotoURL != "" {
		fields["photo_url"] = login.PhotoURL
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
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyTelegramLogin_Valid(t *testing.T) {
	now := time.Now()
	login := &TelegramLogin{
		ID:        123456789,
		FirstName: "Alice",
		Username:  "alice_w",
		AuthDate:  now.Add(-time.Minute).Unix(),
	}
	login.Hash = signTelegramLogin(t, login, "bot-token")

	require.NoError(t, VerifyTelegramLogin(login, "bot-token", now))
}

func TestVerifyTelegramLogin_OmitsAbsentFields(t *testing.T) {
	now := time.Now()
	login := &TelegramLogin{
		ID:       42,
		AuthDate: now.Unix(),
	}
	login.Hash = signTelegramLogin(t, login, "bot-token")

	assert.NoError(t, VerifyTelegramLogin(login, "bot-token", now))
}

func TestVerifyTelegramLogin_TamperedField(t *testing.T) {
	now := time.Now()
	login := &TelegramLogin{
		ID:        123456789,
		FirstName: "Alice",
		AuthDate:  now.Unix(),
	}
	login.Hash = signTelegramLogin(t, login, "bot-token")
	login.Username = "mallory"

	assert.Error(t, VerifyTelegramLogin(login, "bot-token", now))
}

func TestVerifyTelegramLogin_WrongBotToken(t *testing.T) {
	now := time.Now()
	login := &TelegramLogin{
		ID:       5,
		AuthDate: now.Unix(),
	}
	login.Hash = signTelegramLogin(t, login, "other-token")

	assert.Error(t, VerifyTelegramLogin(login, "bot-token", now))
}

func TestVerifyTelegramLogin_Expired(t *testing.T) {
	now := time.Now()
	login := &TelegramLogin{
		ID:       5,
		AuthDate: now.Add(-25 * time.Hour).Unix(),
	}
	login.Hash = signTelegramLogin(t, login, "bot-token")

	assert.Error(t, VerifyTelegramLogin(login, "bot-token", now))
}

func TestVerifyTelegramLogin_MissingHash(t *testing.T) {
	login := &TelegramLogin{ID: 5, AuthDate: time.Now().Unix()}
	assert.Error(t, VerifyTelegramLogin(login, "bot-token", time.Now()))
}
