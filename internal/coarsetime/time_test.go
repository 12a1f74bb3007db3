package coarsetime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNow_Bounded(t *testing.T) {
	before := time.Now()
	got := Now()

	assert.False(t, got.After(time.Now()))
	assert.WithinDuration(t, before, got, 4*Resolution)
}

func TestNow_Advances(t *testing.T) {
	start := Now()
	assert.Eventually(t, func() bool {
		return Now().After(start)
	}, 10*Resolution, Resolution/5)
}

func BenchmarkTimeNow(b *testing.B) {
	var t time.Time

	b.Run("time", func(b *testing.B) {
		for b.Loop() {
			t = time.Now()
		}
	})

	b.Run("coarsetime", func(b *testing.B) {
		for b.Loop() {
			t = Now()
		}
	})

	_ = t
}
