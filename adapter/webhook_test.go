package adapter

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theoremus-urban-solutions/livetrack/config"
	"github.com/theoremus-urban-solutions/livetrack/feed"
)

func newTestWebhook(t *testing.T, secret string) *Webhook {
	t.Helper()
	t.Setenv("TEST_WEBHOOK_SECRET", secret)
	wh, err := NewWebhook("push", config.WebhookConfig{SecretEnv: "TEST_WEBHOOK_SECRET", Source: "partner"})
	require.NoError(t, err)
	return wh
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookRequiresSecret(t *testing.T) {
	t.Setenv("TEST_WEBHOOK_SECRET", "")
	_, err := NewWebhook("push", config.WebhookConfig{SecretEnv: "TEST_WEBHOOK_SECRET"})
	assert.Error(t, err)
}

func TestWebhookVerifyAcceptsValidSignature(t *testing.T) {
	wh := newTestWebhook(t, "s3cret")
	body := []byte(`{"domain":"VESSEL","public_id":"257012345"}`)

	assert.NoError(t, wh.Verify(body, sign("s3cret", body)))
	assert.NoError(t, wh.Verify(body, "sha256="+sign("s3cret", body)))
}

func TestWebhookVerifyRejectsTamperedBody(t *testing.T) {
	wh := newTestWebhook(t, "s3cret")
	body := []byte(`{"domain":"VESSEL","public_id":"257012345"}`)
	sig := sign("s3cret", body)

	tampered := append([]byte(nil), body...)
	tampered[10] ^= 0x01
	assert.ErrorIs(t, wh.Verify(tampered, sig), ErrBadSignature)
}

func TestWebhookVerifyRejectsWrongSecret(t *testing.T) {
	wh := newTestWebhook(t, "s3cret")
	body := []byte(`{}`)
	assert.ErrorIs(t, wh.Verify(body, sign("other", body)), ErrBadSignature)
}

func TestWebhookVerifyRejectsMissingOrMalformed(t *testing.T) {
	wh := newTestWebhook(t, "s3cret")
	assert.ErrorIs(t, wh.Verify([]byte(`{}`), ""), ErrMissingSignature)
	assert.ErrorIs(t, wh.Verify([]byte(`{}`), "not-hex!"), ErrBadSignature)
}

func TestWebhookDecodeStampsSource(t *testing.T) {
	wh := newTestWebhook(t, "s3cret")
	body := []byte(`{
		"domain": "VESSEL",
		"public_id": "257012345",
		"source": "ignored-upstream-value",
		"timestamp": "2026-08-25T10:00:00Z",
		"latitude": 59.9,
		"longitude": 10.7,
		"speed": 4.2
	}`)

	ev, err := wh.Decode(body)
	require.NoError(t, err)
	assert.Equal(t, feed.DomainVessel, ev.Domain)
	assert.Equal(t, "partner", ev.Source)
	require.NotNil(t, ev.Speed)
	assert.Equal(t, 4.2, *ev.Speed)
	assert.Equal(t, time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC), ev.Timestamp.UTC())
}

func TestWebhookDecodeRejectsGarbage(t *testing.T) {
	wh := newTestWebhook(t, "s3cret")
	_, err := wh.Decode([]byte("not json"))
	assert.Error(t, err)
}
