package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitrohttp/nitro/internal/util"
)

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     LogConfig
		wantErr bool
	}{
		{"defaults", DefaultLogConfig(), false},
		{"console format", LogConfig{Level: "debug", Format: "console", Output: "stderr"}, false},
		{"invalid level", LogConfig{Level: "verbose"}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestLogger_With(t *testing.T) {
	t.Parallel()

	logger := NopLogger()
	child := logger.With(String("component", "router"))
	assert.NotNil(t, child)

	// Logging on the child must not panic.
	child.Info("message", Int("count", 1))
}

func TestLogger_WithContext(t *testing.T) {
	t.Parallel()

	logger := NopLogger()

	// Empty context returns the same logger.
	same := logger.WithContext(context.Background())
	assert.Equal(t, logger, same)

	ctx := util.ContextWithRequestID(context.Background(), "req-1")
	ctx = util.ContextWithRoute(ctx, "/users/:id")
	enriched := logger.WithContext(ctx)
	assert.NotEqual(t, logger, enriched)
	enriched.Info("message")
}

func TestGlobalLogger(t *testing.T) {
	logger := NopLogger()
	SetGlobalLogger(logger)
	defer SetGlobalLogger(nil)

	assert.Equal(t, logger, GetGlobalLogger())
	assert.Equal(t, logger, L())
}

func TestGetGlobalLogger_Unset(t *testing.T) {
	SetGlobalLogger(nil)
	assert.NotNil(t, GetGlobalLogger())
}
