package adapter

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/theoremus-urban-solutions/livetrack/config"
	"github.com/theoremus-urban-solutions/livetrack/feed"
	"github.com/theoremus-urban-solutions/livetrack/metrics"
)

var (
	// ErrBadSignature means the request signature did not match the body.
	ErrBadSignature = errors.New("signature mismatch")
	// ErrMissingSignature means no signature header was provided.
	ErrMissingSignature = errors.New("missing signature")
)

// Webhook is the passive adapter behind the signed ingest endpoint. It has no
// loop of its own; the HTTP layer calls Verify and Decode per request and
// emits the result.
type Webhook struct {
	name   string
	source string
	secret []byte
}

// NewWebhook resolves the shared secret from the configured environment
// variable. An empty secret is a configuration error, not a runtime one.
func NewWebhook(name string, cfg config.WebhookConfig) (*Webhook, error) {
	secret := os.Getenv(cfg.SecretEnv)
	if secret == "" {
		return nil, fmt.Errorf("webhook %s: environment variable %s is empty", name, cfg.SecretEnv)
	}
	source := cfg.Source
	if source == "" {
		source = name
	}
	return &Webhook{name: name, source: source, secret: []byte(secret)}, nil
}

func (w *Webhook) Name() string { return w.name }

// Run parks until cancelled. The supervisor treats the webhook like any other
// adapter so restarts and shutdown stay uniform.
func (w *Webhook) Run(ctx context.Context, _ *Emitter) error {
	<-ctx.Done()
	return nil
}

// Verify checks an HMAC-SHA256 signature over the exact raw body bytes. The
// signature is hex, optionally prefixed with "sha256=". Comparison is
// constant time.
func (w *Webhook) Verify(raw []byte, sigHex string) error {
	if sigHex == "" {
		metrics.WebhookRejected.WithLabelValues("missing_signature").Inc()
		return ErrMissingSignature
	}
	sigHex = strings.TrimPrefix(sigHex, "sha256=")
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		metrics.WebhookRejected.WithLabelValues("malformed_signature").Inc()
		return ErrBadSignature
	}
	mac := hmac.New(sha256.New, w.secret)
	mac.Write(raw)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		metrics.WebhookRejected.WithLabelValues("signature").Inc()
		return ErrBadSignature
	}
	return nil
}

// Decode parses a verified body into an event, stamping the configured source.
// Validation happens later at the emitter like every other adapter's events.
func (w *Webhook) Decode(raw []byte) (feed.PositionEvent, error) {
	var ev feed.PositionEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		metrics.WebhookRejected.WithLabelValues("body").Inc()
		return feed.PositionEvent{}, fmt.Errorf("decode body: %w", err)
	}
	ev.Source = w.source
	return ev, nil
}
