package ddrescue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSkipControllerDoublesOnError(t *testing.T) {
	sc := NewSkipController(64*1024, 0)
	assert.Equal(t, int64(128*1024), sc.OnError())
	assert.Equal(t, int64(256*1024), sc.OnError())
}

func TestSkipControllerCapsAtMax(t *testing.T) {
	sc := NewSkipController(64*1024, 128*1024)
	sc.OnError()
	assert.Equal(t, int64(128*1024), sc.OnError())
}

func TestSkipControllerHalvesOnSuccess(t *testing.T) {
	sc := NewSkipController(64*1024, 0)
	sc.OnError()
	sc.OnError()
	assert.Equal(t, int64(256*1024), sc.Current())
	sc.OnSuccess()
	assert.Equal(t, int64(128*1024), sc.Current())
	sc.OnSuccess()
	assert.Equal(t, int64(64*1024), sc.Current())
	sc.OnSuccess()
	assert.Equal(t, int64(64*1024), sc.Current(), "should not go below skipbs floor")
}

func TestSkipControllerDisabledWhenZero(t *testing.T) {
	sc := NewSkipController(0, 0)
	assert.False(t, sc.Enabled())
	assert.Equal(t, int64(0), sc.OnError())
}

func TestSkipControllerDisabledAfterFullScan(t *testing.T) {
	sc := NewSkipController(64*1024, 0)
	assert.True(t, sc.Enabled())
	sc.MarkFullyScanned()
	assert.False(t, sc.Enabled())
}
