package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"cloudpico-baro/internal/config"
)

// New builds the process logger: colourised text for dev builds, JSON
// otherwise. The handler admits everything down to the most verbose
// configured level; the returned logger filters at cfg.LogLevel and
// Component loggers at their own level.
func New(cfg config.Config, version string, appName string) *slog.Logger {
	return newLogger(os.Stdout, cfg, version, appName)
}

func newLogger(w io.Writer, cfg config.Config, version string, appName string) *slog.Logger {
	floor := min(cfg.LogLevel, cfg.BaroLogLevel)

	if version == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      floor,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(&levelHandler{level: cfg.LogLevel, inner: h}).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: floor})
	return slog.New(&levelHandler{level: cfg.LogLevel, inner: h}).With(
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
		"vehicle", cfg.VehicleID,
	)
}

// Component derives a logger tagged with component=name that filters at
// level instead of the parent's level. The handler floor set in New still
// applies.
func Component(parent *slog.Logger, name string, level slog.Leveler) *slog.Logger {
	h := parent.Handler()
	if lh, ok := h.(*levelHandler); ok {
		h = lh.inner
	}
	return slog.New(&levelHandler{level: level, inner: h}).With("component", name)
}

type levelHandler struct {
	level slog.Leveler
	inner slog.Handler
}

func (h *levelHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return l >= h.level.Level() && h.inner.Enabled(ctx, l)
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{level: h.level, inner: h.inner.WithAttrs(attrs)}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{level: h.level, inner: h.inner.WithGroup(name)}
}
