package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"
)

type contextKey string

const (
	ctxRID      contextKey = "rid"
	ctxUpdateID contextKey = "update_id"
	ctxUserID   contextKey = "user_id"
	ctxChatID   contextKey = "chat_id"
	ctxLogger   contextKey = "logger"
	ctxHandler  contextKey = "handler"
	ctxTraceID  contextKey = "trace_id"
)

func ensure(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(key).(string)
	return s
}

func int64Value(ctx context.Context, key contextKey) int64 {
	if ctx == nil {
		return 0
	}
	switch v := ctx.Value(key).(type) {
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// WithLogger stores lg in ctx for propagation across layers.
func WithLogger(ctx context.Context, lg *slog.Logger) context.Context {
	ctx = ensure(ctx)
	if lg == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxLogger, lg)
}

// FromContext returns the logger stored in ctx or L.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if lg, ok := ctx.Value(ctxLogger).(*slog.Logger); ok && lg != nil {
			return lg
		}
	}
	return L
}

// WithRID attaches the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ensure(ctx), ctxRID, rid)
}

// RIDFrom returns the correlation id from ctx.
func RIDFrom(ctx context.Context) string { return stringValue(ctx, ctxRID) }

// WithUpdateMeta attaches update, user and chat identifiers. Zero values are
// left out of log lines.
func WithUpdateMeta(ctx context.Context, updateID int, userID, chatID int64) context.Context {
	ctx = context.WithValue(ensure(ctx), ctxUpdateID, int64(updateID))
	ctx = context.WithValue(ctx, ctxUserID, userID)
	return context.WithValue(ctx, ctxChatID, chatID)
}

// UpdateIDFrom returns the update id from ctx.
func UpdateIDFrom(ctx context.Context) int64 { return int64Value(ctx, ctxUpdateID) }

// UserIDFrom returns the user id from ctx.
func UserIDFrom(ctx context.Context) int64 { return int64Value(ctx, ctxUserID) }

// ChatIDFrom returns the chat id from ctx.
func ChatIDFrom(ctx context.Context) int64 { return int64Value(ctx, ctxChatID) }

// WithHandler names the handler currently running.
func WithHandler(ctx context.Context, handler string) context.Context {
	ctx = ensure(ctx)
	if handler == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxHandler, handler)
}

// HandlerFrom returns the handler name from ctx.
func HandlerFrom(ctx context.Context) string { return stringValue(ctx, ctxHandler) }

// WithTrace attaches a trace id.
func WithTrace(ctx context.Context, traceID string) context.Context {
	ctx = ensure(ctx)
	if traceID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxTraceID, traceID)
}

// TraceIDFrom returns the trace id from ctx.
func TraceIDFrom(ctx context.Context) string { return stringValue(ctx, ctxTraceID) }

func addContextFields(ctx context.Context, fields map[string]any) {
	if ctx == nil {
		return
	}
	setIfMissing := func(key string, val any) {
		if _, ok := fields[key]; !ok {
			fields[key] = val
		}
	}
	if rid := RIDFrom(ctx); rid != "" {
		setIfMissing("rid", rid)
	}
	if tid := TraceIDFrom(ctx); tid != "" {
		setIfMissing("trace_id", tid)
	}
	if id := UpdateIDFrom(ctx); id != 0 {
		setIfMissing("update_id", id)
	}
	if id := UserIDFrom(ctx); id != 0 {
		setIfMissing("user_id", id)
	}
	if id := ChatIDFrom(ctx); id != 0 {
		setIfMissing("chat_id", id)
	}
	if h := HandlerFrom(ctx); h != "" {
		setIfMissing("handler", h)
	}
}

// Sanitize drops control and format runes except tab and newline.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SanitizeLimit applies Sanitize and truncates to max runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(Sanitize(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max])
}

// BuildRID returns a correlation id in the form updateID:chatID:userID.
func BuildRID(updateID int, chatID, userID int64) string {
	return fmt.Sprintf("%d:%d:%d", updateID, chatID, userID)
}

// CompactRID rewrites a BuildRID value into dot separated base36 segments.
// Other inputs are returned unchanged.
func CompactRID(rid string) string {
	rid = strings.TrimSpace(rid)
	parts := strings.Split(rid, ":")
	if len(parts) != 3 {
		return rid
	}
	out := make([]string, len(parts))
	for i, part := range parts {
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return rid
		}
		out[i] = strconv.FormatInt(n, 36)
	}
	return strings.Join(out, ".")
}
