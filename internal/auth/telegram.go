package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Telegram login payloads older than this are rejected.
const telegramLoginMaxAge = 24 * time.Hour

// TelegramLogin is the payload of the Telegram login widget.
type TelegramLogin struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
	AuthDate  int64  `json:"auth_date"`
	Hash      string `json:"hash"`
}

// VerifyTelegramLogin checks the widget's HMAC: the data-check string is
// every present field except hash, as key=value lines sorted by key, signed
// with SHA256(botToken).
func VerifyTelegramLogin(login *TelegramLogin, botToken string, now time.Time) error {
	if login.Hash == "" {
		return fmt.Errorf("missing login hash")
	}
	if login.AuthDate == 0 || now.Sub(time.Unix(login.AuthDate, 0)) > telegramLoginMaxAge {
		return fmt.Errorf("login payload expired")
	}

	fields := map[string]string{
		"id":        strconv.FormatInt(login.ID, 10),
		"auth_date": strconv.FormatInt(login.AuthDate, 10),
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
	checkString := strings.Join(lines, "\n")

	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(checkString))
	expected := hex.EncodeToString(mac.Sum(nil))

	if subtle.ConstantTimeCompare([]byte(expected), []byte(login.Hash)) != 1 {
		return fmt.Errorf("invalid login hash")
	}
	return nil
}
