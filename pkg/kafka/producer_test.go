package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestPublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, &ProducerConfig{Topic: "events", Compression: "gzip"})

	if err := p.Publish(context.Background(), "events", []byte("AAPL"), map[string]int{"n": 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := p.PublishMessage(context.Background(), "", "raw"); err != nil {
		t.Fatalf("publish message: %v", err)
	}
	if len(w.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(w.msgs))
	}
	var got map[string]int
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil || got["n"] != 1 {
		t.Fatalf("unexpected payload %s", w.msgs[0].Value)
	}
	if string(w.msgs[0].Key) != "AAPL" || w.msgs[1].Topic != "events" || string(w.msgs[1].Value) != "raw" {
		t.Fatalf("unexpected messages %+v", w.msgs)
	}
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("boom")
	p := newProducer(&fakeWriter{err: boom}, &ProducerConfig{Topic: "events"})
	if err := p.PublishMessage(context.Background(), "", "x"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if err := p.PublishBatch(context.Background(), "", []Message{{Value: "x"}}); err == nil {
		t.Fatalf("expected missing topic error")
	}
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatalf("expected error without brokers")
	}
}

func TestNewProducerAppliesWriterOptions(t *testing.T) {
	p, err := NewProducer(
		WithBrokers([]string{"localhost:9092"}),
		WithTopic("events"),
		WithBatch(25, 50*time.Millisecond),
		WithAutoCreateTopic(true),
	)
	if err != nil {
		t.Fatalf("new producer: %v", err)
	}
	w, ok := p.writer.(*kafka.Writer)
	if !ok {
		t.Fatalf("unexpected writer %T", p.writer)
	}
	if w.BatchSize != 25 || w.BatchTimeout != 50*time.Millisecond || !w.AllowAutoTopicCreation {
		t.Fatalf("options not applied: size=%d timeout=%v auto=%v", w.BatchSize, w.BatchTimeout, w.AllowAutoTopicCreation)
	}
}
