package worker

import (
	"sync/atomic"
	"testing"
)

func TestPoolRunsEverySubmittedTask(t *testing.T) {
	p := NewPool(4)
	var count int32
	for i := 0; i < 50; i++ {
		p.Submit(func() { atomic.AddInt32(&count, 1) })
	}
	p.Close()

	if got := atomic.LoadInt32(&count); got != 50 {
		t.Fatalf("count = %d, want 50", got)
	}
}

func TestPoolDefaultsToOneWorker(t *testing.T) {
	p := NewPool(0)
	done := make(chan struct{})
	p.Submit(func() { close(done) })
	<-done
	p.Close()
}
