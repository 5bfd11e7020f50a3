package io_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alpacahq/streamspy/utils/io"
)

func TestGetCallerFileContext(t *testing.T) {
	t.Parallel()
	ctx := io.GetCallerFileContext(0)
	assert.True(t, strings.Contains(ctx, "misc_test.go:"), ctx)
}
