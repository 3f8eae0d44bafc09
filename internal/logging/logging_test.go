package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestInitLevels(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() {
		slog.SetDefault(original)
	})

	t.Run("default_warn", func(t *testing.T) {
		Init(false)
		logger := slog.Default()
		if logger.Enabled(context.Background(), slog.LevelInfo) {
			t.Fatal("expected info to be disabled by default")
		}
		if !logger.Enabled(context.Background(), slog.LevelWarn) {
			t.Fatal("expected warn to be enabled by default")
		}
	})

	t.Run("verbose_debug", func(t *testing.T) {
		Init(true)
		if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
			t.Fatal("expected debug to be enabled with verbose")
		}
	})
}
