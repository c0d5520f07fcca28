package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel_KnownLevels(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLevel(tt.in))
	}
}

func TestParseLevel_UnknownDefaultsToInfo(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, parseLevel("nonsense"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
}

func TestSetup_AppliesGlobalLevel(t *testing.T) {
	Setup("warn")
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	Setup("debug")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestSetup_ReturnsUsableLogger(t *testing.T) {
	l := Setup("info")
	assert.Equal(t, zerolog.InfoLevel, l.GetLevel())
}
