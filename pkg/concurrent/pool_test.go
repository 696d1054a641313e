package concurrent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestProcessBatchBestEffort(t *testing.T) {
	p := NewBatchProcessor(3)
	boom := errors.New("boom")
	var ran atomic.Int32
	errs := p.ProcessBatch(context.Background(), 5, func(_ context.Context, i int) error {
		ran.Add(1)
		if i == 1 || i == 3 {
			return boom
		}
		return nil
	})
	if ran.Load() != 5 {
		t.Fatalf("ran %d jobs, want 5", ran.Load())
	}
	for i, err := range errs {
		want := i == 1 || i == 3
		if (err != nil) != want {
			t.Fatalf("errs[%d] = %v", i, err)
		}
	}
	if Failed(errs) != 2 {
		t.Fatalf("Failed = %d", Failed(errs))
	}
}

func TestProcessBatchBound(t *testing.T) {
	p := NewBatchProcessor(2)
	var active, peak atomic.Int32
	p.ProcessBatch(context.Background(), 8, func(context.Context, int) error {
		n := active.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return nil
	})
	if peak.Load() > 2 {
		t.Fatalf("peak concurrency %d exceeds bound", peak.Load())
	}
}

func TestProcessBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	errs := NewBatchProcessor(1).ProcessBatch(ctx, 3, func(context.Context, int) error { return nil })
	for i, err := range errs {
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("errs[%d] = %v", i, err)
		}
	}
}
