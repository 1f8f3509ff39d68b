package server

import (
	"context"
	"testing"
	"time"

	xhttp "PriceCast/pkg/http"
	"PriceCast/pkg/logger"
)

func TestRunRequiresComponent(t *testing.T) {
	if err := New(logger.Nop(), nil, nil, 0).Run(context.Background()); err == nil {
		t.Fatalf("expected error for empty app")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	srv := xhttp.NewServer(nil, logger.Nop(), xhttp.WithHost("127.0.0.1"), xhttp.WithPort(0))
	app := New(logger.Nop(), srv, nil, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("app did not stop")
	}
}
