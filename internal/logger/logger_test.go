package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/Additional-Code/subext/internal/config"
)

func TestBuildLevels(t *testing.T) {
	tests := []struct {
		level    string
		encoding string
		enabled  zapcore.Level
		disabled zapcore.Level
	}{
		{level: "debug", encoding: "json", enabled: zapcore.DebugLevel, disabled: zapcore.DebugLevel - 1},
		{level: "warn", encoding: "console", enabled: zapcore.WarnLevel, disabled: zapcore.InfoLevel},
		{level: "bogus", encoding: "json", enabled: zapcore.InfoLevel, disabled: zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.encoding, func(t *testing.T) {
			logger, err := Build(config.Observability{
				ServiceName: "subext",
				Environment: "test",
				LogLevel:    tt.level,
				LogEncoding: tt.encoding,
			})
			require.NoError(t, err)

			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.disabled))
		})
	}
}
