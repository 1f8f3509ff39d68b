package repository

import (
	"context"
	"errors"
	"time"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/services/forecast"
)

// ErrNoMarketData is wrapped by MarketData implementations when the
// provider answers without any bars.
var ErrNoMarketData = errors.New("market data: no values")

// ErrNoBars is returned by a BarStore with no history for an identity.
var ErrNoBars = errors.New("bar store: no bars saved")

// SeriesQuery selects bars from the market data provider. Either a date
// range or OutputSize bounds the result.
type SeriesQuery struct {
	Symbol     string
	Interval   string
	Start      time.Time
	End        time.Time
	OutputSize int
}

// MarketData is the upstream price provider. Bars come back oldest first.
type MarketData interface {
	TimeSeries(ctx context.Context, q SeriesQuery) ([]models.Bar, error)
	Quote(ctx context.Context, symbol string) (models.Quote, error)
}

// Readiness is implemented by a MarketData that can report missing
// configuration before any request is made.
type Readiness interface {
	Ready() error
}

// ArtifactStore persists trained model/scaler pairs. Load returns
// forecast.ErrNotFound unless both halves exist.
type ArtifactStore interface {
	Save(ctx context.Context, art forecast.Artifact) error
	Load(ctx context.Context, id models.Identity) (forecast.Artifact, error)
	List(ctx context.Context) ([]models.Identity, error)
}

// BarStore keeps fetched history between the fetch and train steps.
type BarStore interface {
	SaveBars(ctx context.Context, id models.Identity, bars []models.Bar) error
	LoadBars(ctx context.Context, id models.Identity) ([]models.Bar, error)
	Close() error
}

// EventPublisher emits domain events. Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev models.Event) error
	Close() error
}
