package concurrency

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeGoRecoversPanic(t *testing.T) {
	recovered := make(chan interface{}, 1)
	SafeGo(func() { panic("boom") }, func(r interface{}) { recovered <- r })

	select {
	case r := <-recovered:
		assert.Equal(t, "boom", r)
	case <-time.After(2 * time.Second):
		t.Fatal("panic handler was not called")
	}
}

func TestGroupWait(t *testing.T) {
	var g Group
	var n atomic.Int32
	for i := 0; i < 5; i++ {
		g.Go(func() { n.Add(1) }, nil)
	}
	g.Go(func() { panic("ignored") }, nil)
	g.Wait()
	require.Equal(t, int32(5), n.Load())
}
