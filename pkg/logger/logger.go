package logger

import (
	"context"
	"log/slog"
	"os"
)

// New returns the process-wide JSON logger. Local and dev environments log
// at debug; everything else at info.
func New(appEnv string) *slog.Logger {
	var level slog.Level
	switch appEnv {
	case "local", "dev":
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("env", appEnv)
}

type ctxKey struct{}

// With stores a logger in the context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets the logger from the context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

// WithCall returns a context whose logger carries the provider call
// identifier, so every log line in a webhook turn is correlated.
func WithCall(ctx context.Context, callSid string) context.Context {
	return With(ctx, From(ctx).With("call_sid", callSid))
}
