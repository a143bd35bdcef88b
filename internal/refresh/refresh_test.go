package refresh

import (
	"context"
	"sync"
	"testing"
	"time"
)

type batchCollector struct {
	mu      sync.Mutex
	batches [][]Delta
}

func (c *batchCollector) collect(deltas []Delta) {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := append([]Delta(nil), deltas...)
	c.batches = append(c.batches, copied)
}

func (c *batchCollector) snapshot() [][]Delta {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]Delta(nil), c.batches...)
}

func TestMarkDirtyDeduplicatesPendingDeltas(testContext *testing.T) {
	refresher := New(Config{})

	if !refresher.MarkDirty(Delta{Group: "group-a", Kind: KindAdded}) {
		testContext.Fatalf("first delta should queue")
	}
	if refresher.MarkDirty(Delta{Group: "group-a", Kind: KindAdded}) {
		testContext.Fatalf("duplicate delta should be dropped")
	}
	if !refresher.MarkDirty(Delta{Group: "group-a", Kind: KindRemoved}) {
		testContext.Fatalf("same group with a different kind is a distinct delta")
	}
}

func TestFlushOrdersRemovedFirst(testContext *testing.T) {
	collector := &batchCollector{}
	refresher := New(Config{Flush: collector.collect})

	refresher.MarkDirty(Delta{Group: "group-a", Kind: KindAdded})
	refresher.MarkDirty(Delta{Group: "group-b", Kind: KindRemoved})
	refresher.MarkDirty(Delta{Group: "group-c", Kind: KindAdded})
	refresher.flushPending()

	batches := collector.snapshot()
	if len(batches) != 1 {
		testContext.Fatalf("expected one batch, got %d", len(batches))
	}
	batch := batches[0]
	if len(batch) != 3 {
		testContext.Fatalf("expected three deltas, got %d", len(batch))
	}
	if batch[0].Kind != KindRemoved || batch[0].Group != "group-b" {
		testContext.Fatalf("removed deltas must flush first, got %+v", batch)
	}
	if batch[1].Group != "group-a" || batch[2].Group != "group-c" {
		testContext.Fatalf("added deltas must keep their order, got %+v", batch)
	}
}

func TestRunDrainsPendingOnShutdown(testContext *testing.T) {
	collector := &batchCollector{}
	refresher := New(Config{Interval: time.Hour, Flush: collector.collect})

	refresher.MarkDirty(Delta{Group: "group-a", Kind: KindAdded})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		refresher.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		testContext.Fatalf("refresher did not stop after cancellation")
	}

	batches := collector.snapshot()
	if len(batches) != 1 || len(batches[0]) != 1 || batches[0][0].Group != "group-a" {
		testContext.Fatalf("expected a final drain flush, got %+v", batches)
	}
}

func TestFlushSkipsEmptyBatches(testContext *testing.T) {
	collector := &batchCollector{}
	refresher := New(Config{Flush: collector.collect})

	refresher.flushPending()
	if len(collector.snapshot()) != 0 {
		testContext.Fatalf("empty pending set must not invoke the callback")
	}
}
