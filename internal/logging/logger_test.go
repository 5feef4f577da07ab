package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		wantError bool
	}{
		{
			name:      "default config",
			config:    NewDefaultConfig(),
			wantError: false,
		},
		{
			name:      "console format",
			config:    Config{Level: "debug", Format: "console"},
			wantError: false,
		},
		{
			name:      "invalid level",
			config:    Config{Level: "verbose", Format: "json"},
			wantError: true,
		},
		{
			name:      "invalid format",
			config:    Config{Level: "info", Format: "logfmt"},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{Level: "nope", Format: "json"})
	require.Error(t, err)
}

func TestLogger_DocumentContext(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithDocument(context.Background(), "report.pdf")

	tl.Info(ctx, "ingested document")

	entries := tl.FilterMessage("ingested document").All()
	require.Len(t, entries, 1)

	found := false
	for _, f := range entries[0].Context {
		if f.Key == "document" && f.String == "report.pdf" {
			found = true
		}
	}
	assert.True(t, found, "document field missing from log entry")
}

func TestFromContext_Default(t *testing.T) {
	logger := FromContext(context.Background())
	require.NotNil(t, logger)

	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
}

func TestTestLogger_AssertLogged(t *testing.T) {
	tl := NewTestLogger()
	tl.Warn(context.Background(), "extraction produced no entities")
	tl.AssertLogged(t, zapcore.WarnLevel, "no entities")
}
