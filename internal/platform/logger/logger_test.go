package logger

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/mindlog/session-worker/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"WARN", slog.LevelWarn, false},
		{"Error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
	}

	for _, tc := range cases {
		got, err := ParseLevel(tc.in)
		if tc.wantErr {
			assert.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestSetupRejectsInvalidLevel(t *testing.T) {
	_, err := Setup(config.WorkerConfig{LogLevel: "loud"})
	assert.Error(t, err)
}

func TestSetupReturnsLogger(t *testing.T) {
	log, err := Setup(config.WorkerConfig{LogLevel: "debug"})
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestContextRoundTrip(t *testing.T) {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx := WithLogger(context.Background(), log)
	assert.Same(t, log, FromContext(ctx))
	assert.Same(t, log, FromContextOrDefault(ctx, nil))
}

func TestFromContextOrDefaultFallsBack(t *testing.T) {
	def := slog.New(slog.NewTextHandler(os.Stderr, nil))

	assert.Same(t, def, FromContextOrDefault(context.Background(), def))
	assert.NotNil(t, FromContextOrDefault(context.Background(), nil))
}
