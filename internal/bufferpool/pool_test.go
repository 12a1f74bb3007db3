package bufferpool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_GetReturnsEmptyBuffer(t *testing.T) {
	p := New(64)

	buf := p.Get()
	buf.WriteString("frame")
	p.Put(buf)

	again := p.Get()
	assert.Equal(t, 0, again.Len())
}

func TestPool_DropsOversizedBuffers(t *testing.T) {
	p := New(64)

	big := bytes.NewBuffer(make([]byte, 0, maxRetained+1))
	p.Put(big)

	got := p.Get()
	assert.NotSame(t, big, got)
}
