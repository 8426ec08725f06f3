package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// Redacted replaces every value the handler suppresses.
const Redacted = "[REDACTED]"

// sensitiveKeys are compared after lower-casing and dropping '_' and '-'.
var sensitiveKeys = map[string]struct{}{
	"mnemonic":          {},
	"encryptedmnemonic": {},
	"phrase":            {},
	"seedphrase":        {},
	"seed":              {},
	"private":           {},
	"privatekey":        {},
	"priv":              {},
	"xprv":              {},
	"extendedkey":       {},
	"secret":            {},
	"passphrase":        {},
	"password":          {},
	"raw":               {},
	"rawkey":            {},
	"key":               {},
}

// secretPattern matches material that must never reach a log line even under
// an innocent key: 64-hex runs (private keys, seeds), serialized extended
// private keys, and runs of 12 or more lowercase words (mnemonic-shaped).
var secretPattern = regexp.MustCompile(`\b[0-9a-fA-F]{64,}\b|\bxprv[1-9A-HJ-NP-Za-km-z]{100,}\b|\b(?:[a-z]{3,8}\s+){11,}[a-z]{3,8}\b`)

// RedactingHandler wraps a slog.Handler and scrubs secrets from the message
// and from every attribute, including grouped and WithAttrs ones.
type RedactingHandler struct {
	next slog.Handler
}

// NewRedactingHandler wraps next.
func NewRedactingHandler(next slog.Handler) *RedactingHandler {
	return &RedactingHandler{next: next}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, RedactString(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clean := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		clean[i] = redactAttr(a)
	}
	return &RedactingHandler{next: h.next.WithAttrs(clean)}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{next: h.next.WithGroup(name)}
}

// IsSensitiveKey reports whether values logged under key are always redacted.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	k = strings.NewReplacer("_", "", "-", "").Replace(k)
	_, ok := sensitiveKeys[k]
	return ok
}

// RedactString masks secret-shaped substrings of s.
func RedactString(s string) string {
	if s == "" {
		return s
	}
	return secretPattern.ReplaceAllString(s, Redacted)
}

func redactAttr(a slog.Attr) slog.Attr {
	if IsSensitiveKey(a.Key) {
		return slog.String(a.Key, Redacted)
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindGroup:
		group := v.Group()
		clean := make([]any, len(group))
		for i, ga := range group {
			clean[i] = redactAttr(ga)
		}
		return slog.Group(a.Key, clean...)
	case slog.KindString:
		return slog.String(a.Key, RedactString(v.String()))
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, RedactString(err.Error()))
		}
		return slog.Attr{Key: a.Key, Value: v}
	default:
		return slog.Attr{Key: a.Key, Value: v}
	}
}
