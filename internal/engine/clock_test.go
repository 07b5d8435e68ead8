package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemClock_Now(t *testing.T) {
	before := uint64(time.Now().Unix())
	got := SystemClock{}.Now()
	after := uint64(time.Now().Unix())

	assert.GreaterOrEqual(t, got, before)
	assert.LessOrEqual(t, got, after)
}

func TestFixedClock(t *testing.T) {
	c := FixedClock(1234)
	assert.Equal(t, uint64(1234), c.Now())
	assert.Equal(t, uint64(1234), c.Now(), "fixed clock never advances")
}
