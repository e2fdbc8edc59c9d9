package coverage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveModuleBaseFindsOwnExecutable(t *testing.T) {
	self := filepath.Base(os.Args[0])

	base, err := ResolveModuleBase(int32(os.Getpid()), self)
	require.NoError(t, err)
	assert.NotZero(t, base)
}

func TestResolveModuleBaseUnknownNameErrors(t *testing.T) {
	_, err := ResolveModuleBase(int32(os.Getpid()), "definitely-not-a-mapped-module.so")
	assert.Error(t, err)
}
