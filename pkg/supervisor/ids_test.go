package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRunIDIsUnique(t *testing.T) {
	assert.NotEqual(t, newRunID(), newRunID())
}

func TestWallClockIsPositive(t *testing.T) {
	assert.Greater(t, wallClock(), int64(0))
}
