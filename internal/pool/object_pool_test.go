package pool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_Stats(t *testing.T) {
	p := NewPool(func() []int { return make([]int, 0, 4) }, func(s *[]int) bool {
		*s = (*s)[:0]
		return true
	})

	s := p.Get()
	s = append(s, 1, 2)
	p.Put(s)

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Gets)
	assert.Equal(t, int64(1), stats.Puts)
	assert.Equal(t, int64(0), stats.Discarded)
	assert.GreaterOrEqual(t, stats.News, int64(1))
}

func TestPool_DiscardsRejected(t *testing.T) {
	p := NewPool(func() int { return 0 }, func(*int) bool { return false })
	p.Put(p.Get())
	assert.Equal(t, int64(1), p.Stats().Discarded)
}

func TestByteBufferPool_ResetsAndDropsOversize(t *testing.T) {
	buf := ByteBufferPool.Get()
	buf.WriteString("payload")
	ByteBufferPool.Put(buf)

	before := ByteBufferPool.Stats().Discarded
	big := bytes.NewBuffer(make([]byte, 0, maxPooledBuffer+1))
	ByteBufferPool.Put(big)
	assert.Equal(t, before+1, ByteBufferPool.Stats().Discarded)

	again := ByteBufferPool.Get()
	assert.Equal(t, 0, again.Len())
	ByteBufferPool.Put(again)
}

func TestPoolStats_HitRate(t *testing.T) {
	assert.Equal(t, 0.0, PoolStats{}.HitRate())
	assert.InDelta(t, 0.75, PoolStats{Gets: 4, News: 1}.HitRate(), 1e-9)
}
