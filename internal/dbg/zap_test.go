package dbg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name        string
		level       string
		development bool
		enabled     zap.AtomicLevel
	}{
		{"debug development", "debug", true, zap.NewAtomicLevelAt(zap.DebugLevel)},
		{"warn production", "warn", false, zap.NewAtomicLevelAt(zap.WarnLevel)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.level, tt.development)
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled.Level()))
			assert.False(t, logger.Core().Enabled(tt.enabled.Level()-1))
		})
	}

	_, err := NewLogger("loud", false)
	assert.Error(t, err)
}
