package gateway

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "merchant-key-123"

// signBody reproduces the documented construction over an already-canonical
// payload: MD5(Base64(payload) + key).
func signBody(canonical, key string) string {
	b64 := base64.StdEncoding.EncodeToString([]byte(canonical))
	sum := md5.Sum([]byte(b64 + key))
	return hex.EncodeToString(sum[:])
}

func TestVerifyWebhook_Valid(t *testing.T) {
	// Keys already sorted, no sign field: canonical form equals the input.
	canonical := `{"amount":100,"orderId":"abc","status":"Completed"}`
	sign := signBody(canonical, testAPIKey)

	body := `{"orderId":"abc","status":"Completed","amount":100,"sign":"` + sign + `"}`

	ok, err := VerifyWebhook([]byte(body), sign, testAPIKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyWebhook_SortsKeysAndKeepsNumberForm(t *testing.T) {
	// Unsorted input with a float that must survive re-encoding byte-for-byte.
	canonical := `{"price":12.50,"rate":0.7,"uuid":"u-1"}`
	sign := signBody(canonical, testAPIKey)

	body := `{"uuid":"u-1","rate":0.7,"price":12.50,"sign":"` + sign + `"}`

	ok, err := VerifyWebhook([]byte(body), sign, testAPIKey)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyWebhook_TamperedField(t *testing.T) {
	canonical := `{"amount":100,"orderId":"abc"}`
	sign := signBody(canonical, testAPIKey)

	// Amount changed after signing.
	body := `{"orderId":"abc","amount":999,"sign":"` + sign + `"}`

	ok, err := VerifyWebhook([]byte(body), sign, testAPIKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyWebhook_WrongKey(t *testing.T) {
	canonical := `{"orderId":"abc"}`
	sign := signBody(canonical, "some-other-key")

	body := `{"orderId":"abc","sign":"` + sign + `"}`

	ok, err := VerifyWebhook([]byte(body), sign, testAPIKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyWebhook_EmptySign(t *testing.T) {
	ok, err := VerifyWebhook([]byte(`{"orderId":"abc"}`), "", testAPIKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyWebhook_MalformedBody(t *testing.T) {
	_, err := VerifyWebhook([]byte(`not json`), "deadbeef", testAPIKey)
	assert.Error(t, err)
}

func TestVerifyWebhook_NullFieldsSigned(t *testing.T) {
	// Null buyer fields participate in the canonical form.
	canonical := `{"buyerRobloxId":null,"error":null,"orderId":"abc"}`
	sign := signBody(canonical, testAPIKey)

	body := `{"orderId":"abc","buyerRobloxId":null,"error":null,"sign":"` + sign + `"}`

	ok, err := VerifyWebhook([]byte(body), sign, testAPIKey)
	require.NoError(t, err)
	assert.True(t, ok)
}
