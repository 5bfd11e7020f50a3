package log_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alpacahq/streamspy/utils/log"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := map[string]log.Level{
		"debug":   log.DEBUG,
		"INFO":    log.INFO,
		"warn":    log.WARNING,
		"warning": log.WARNING,
		"error":   log.ERROR,
		"fatal":   log.FATAL,
		"":        log.INFO,
		"bogus":   log.INFO,
	}
	for in, want := range tests {
		assert.Equal(t, want, log.ParseLevel(in), in)
	}
}

func TestLevelString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "warning", log.WARNING.String())
	assert.Equal(t, "unknown", log.Level(42).String())
}
