package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type capture struct {
	mu      sync.Mutex
	batches [][]AggregatedLogEntry
}

func (c *capture) PublishMessage(_ context.Context, _ string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestCollectorAggregatesRepeats(t *testing.T) {
	pub := &capture{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "logs", Publisher: pub})

	for i := 0; i < 3; i++ {
		l.Error("fetch failed", String("ticker", "AAPL"), Error(errors.New("timeout")))
	}
	l.Error("fetch failed", String("ticker", "MSFT"))
	l.RemoveCollector()

	if len(pub.batches) != 1 {
		t.Fatalf("expected one flushed batch, got %d", len(pub.batches))
	}
	batch := pub.batches[0]
	if len(batch) != 2 {
		t.Fatalf("expected 2 distinct entries, got %d", len(batch))
	}
	if batch[0].Count != 3 || batch[0].Fields["ticker"] != "AAPL" || batch[0].Fields["error"] != "timeout" {
		t.Fatalf("unexpected first entry %+v", batch[0])
	}
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &capture{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Publisher: pub})
	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")
	c.Close()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.batches) != 1 || len(pub.batches[0]) != 2 {
		t.Fatalf("unexpected batches %+v", pub.batches)
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud"}); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := New(&Config{Level: "info", Format: "json", Output: "stdout"}); err != nil {
		t.Fatalf("new: %v", err)
	}
}
