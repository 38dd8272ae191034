// Package correlation propagates a per-request correlation ID through HTTP
// handlers, relational/cache/broker calls, and event consumers.
//
// The original design keeps the ID in a goroutine-local contextvar; Go's
// idiomatic analogue is context.Context, which this package uses instead of
// any goroutine-local storage trick.
package correlation

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type ctxKeyType struct{}

var ctxKey = ctxKeyType{}

// Header is the HTTP header carrying the correlation ID, both inbound and
// on responses.
const Header = "X-Correlation-ID"

// MaxLength is the longest correlation ID this package will propagate
// verbatim; longer inbound values are truncated rather than rejected.
const MaxLength = 64

// New generates a correlation ID of the form "req-<16 hex>".
func New() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is effectively unrecoverable entropy
		// starvation; fall back to a fixed, clearly-synthetic id
		// rather than panic mid-request.
		return "req-0000000000000000"
	}
	return "req-" + hex.EncodeToString(buf)
}

// WithID returns a context carrying id as the current correlation ID.
func WithID(ctx context.Context, id string) context.Context {
	if len(id) > MaxLength {
		id = id[:MaxLength]
	}
	return context.WithValue(ctx, ctxKey, id)
}

// Current returns the correlation ID bound to ctx, or "" if none is bound.
func Current(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey).(string)
	return id
}

// Ensure returns ctx unchanged if it already carries a correlation ID, or a
// child context with a freshly generated one otherwise. It also returns the
// effective ID so callers (e.g. HTTP handlers) can echo it without a second
// lookup.
func Ensure(ctx context.Context) (context.Context, string) {
	if id := Current(ctx); id != "" {
		return ctx, id
	}
	id := New()
	return WithID(ctx, id), id
}
