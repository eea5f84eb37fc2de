package gateway

import (
	"bytes"
	"crypto/md5"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ComputeSign computes the webhook signature over a raw payload:
// MD5(Base64(canonical payload without "sign") + apiKey), hex-encoded.
//
// The canonical form sorts object keys recursively. Numbers are kept in
// their original textual form (json.Number) so re-encoding stays
// byte-stable with what the supplier signed.
func ComputeSign(rawBody []byte, apiKey string) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(rawBody))
	dec.UseNumber()

	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return "", fmt.Errorf("decode webhook body: %w", err)
	}
	delete(payload, "sign")

	// json.Marshal sorts map keys at every level, which matches the
	// supplier's sorted-key canonicalization.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "", fmt.Errorf("canonicalize webhook body: %w", err)
	}
	canonical := bytes.TrimRight(buf.Bytes(), "\n")

	b64 := base64.StdEncoding.EncodeToString(canonical)
	sum := md5.Sum([]byte(b64 + apiKey))
	return hex.EncodeToString(sum[:]), nil
}

// VerifyWebhook checks the detached signature of a webhook body against the
// given signature in constant time.
func VerifyWebhook(rawBody []byte, sign, apiKey string) (bool, error) {
	if sign == "" {
		return false, nil
	}
	expected, err := ComputeSign(rawBody, apiKey)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(sign)) == 1, nil
}
