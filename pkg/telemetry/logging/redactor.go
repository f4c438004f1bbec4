package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// privateKeyPattern matches PEM-encoded private key blocks of any type
// (RSA, EC, PKCS#8, encrypted). The (?s) flag lets the base64 body span
// lines. Certificate blocks are deliberately not matched; they are
// public material.
var privateKeyPattern = regexp.MustCompile(`(?s)-----BEGIN [A-Z0-9 ]*PRIVATE KEY-----.*?-----END [A-Z0-9 ]*PRIVATE KEY-----`)

const redactedKey = "[REDACTED PRIVATE KEY]"

// Redact masks PEM private key material in s.
func Redact(s string) string {
	if !strings.Contains(s, "PRIVATE KEY") {
		return s
	}
	return privateKeyPattern.ReplaceAllString(s, redactedKey)
}

// RedactingHandler wraps a slog.Handler and masks private key material
// in the message and in string attribute values before they are
// written.
type RedactingHandler struct {
	inner slog.Handler
}

// NewRedactingHandler wraps inner with private key redaction.
func NewRedactingHandler(inner slog.Handler) *RedactingHandler {
	return &RedactingHandler{inner: inner}
}

// Enabled reports whether the wrapped handler handles records at the
// given level.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle redacts the record and passes it to the wrapped handler.
func (h *RedactingHandler) Handle(ctx context.Context, rec slog.Record) error {
	clean := slog.NewRecord(rec.Time, rec.Level, Redact(rec.Message), rec.PC)
	rec.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(redactAttr(a))
		return true
	})
	return h.inner.Handle(ctx, clean)
}

// WithAttrs returns a handler whose pre-set attributes are redacted.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = redactAttr(a)
	}
	return &RedactingHandler{inner: h.inner.WithAttrs(out)}
}

// WithGroup returns a handler with the given group opened.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{inner: h.inner.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		a.Value = slog.StringValue(Redact(a.Value.String()))
	case slog.KindGroup:
		group := a.Value.Group()
		out := make([]slog.Attr, len(group))
		for i, g := range group {
			out[i] = redactAttr(g)
		}
		a.Value = slog.GroupValue(out...)
	}
	return a
}
