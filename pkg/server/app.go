// Package server runs the long-lived processes: the HTTP API and the
// training job workers.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	xhttp "PriceCast/pkg/http"
	"PriceCast/pkg/logger"
	"PriceCast/pkg/queue"
)

// App owns the process lifecycle. Either component may be nil: the API
// server runs without workers, a worker runs without the API.
type App struct {
	http            *xhttp.Server
	queue           *queue.RedisQueue
	log             *logger.Logger
	shutdownTimeout time.Duration
}

// New builds an App. Jobs are registered on q before it is returned.
func New(log *logger.Logger, srv *xhttp.Server, q *queue.RedisQueue, shutdownTimeout time.Duration, jobs ...queue.Job) *App {
	if log == nil {
		log = logger.Nop()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	if q != nil {
		for _, j := range jobs {
			q.RegisterJob(j)
		}
	}
	return &App{http: srv, queue: q, log: log, shutdownTimeout: shutdownTimeout}
}

// Run starts every component and blocks until ctx is done or the process
// receives SIGINT or SIGTERM.
func (a *App) Run(ctx context.Context) error {
	if a.http == nil && a.queue == nil {
		return errors.New("server: nothing to run")
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return fmt.Errorf("start queue: %w", err)
		}
	}
	if a.http != nil {
		if err := a.http.Start(); err != nil {
			a.stopQueue()
			return fmt.Errorf("start http: %w", err)
		}
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()

	var errs []error
	if a.http != nil {
		if err := a.http.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", logger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.queue != nil {
		if err := a.queue.Stop(ctx); err != nil {
			a.log.Warn("queue stop error", logger.Error(err))
			errs = append(errs, err)
		}
	}
	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) stopQueue() {
	if a.queue == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	if err := a.queue.Stop(ctx); err != nil {
		a.log.Warn("queue stop error", logger.Error(err))
	}
}
