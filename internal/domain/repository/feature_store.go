package repository

import (
	"context"
	"time"

	"Ares/internal/domain/models"
)

// BarStore provides read-only access to daily bars written by the ingestion side.
// Implementations return models.ErrNotFound when a symbol has no bars in range.
type BarStore interface {
	GetBars(ctx context.Context, symbol string, from, to time.Time) (models.PriceSeries, error)
	// GetLatestNBars returns up to n bars ending at asOf (inclusive), oldest first.
	// A zero asOf means "now".
	GetLatestNBars(ctx context.Context, symbol string, n int, asOf time.Time) (models.PriceSeries, error)
}

// FundamentalsStore reads the latest fundamentals/sentiment snapshot for a symbol.
// Implementations return models.ErrNotFound when no snapshot exists.
type FundamentalsStore interface {
	GetFundamentals(ctx context.Context, symbol string) (models.Fundamentals, error)
	GetFundamentalsBatch(ctx context.Context, symbols []string) (map[string]models.Fundamentals, error)
}
