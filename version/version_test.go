package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfo(t *testing.T) {
	info := Info{CommitHash: "0123456789abcdef", BuildTime: "today", Version: "dev"}
	assert.Equal(t, "vgate dev (commit 0123456789abcdef, built today)", info.String())
	assert.Equal(t, "0123456", info.Short())

	info.Version = "v0.3.0"
	assert.Contains(t, info.String(), "vgate v0.3.0")

	assert.Equal(t, "abc", Info{CommitHash: "abc"}.Short())
	assert.NotEmpty(t, Get().Platform)
}
