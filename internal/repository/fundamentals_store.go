package repository

import (
	"context"
	"errors"
	"fmt"

	"Ares/internal/domain/models"
	"Ares/pkg/cache"
)

const fundamentalsPrefix = "fundamentals"

// CacheFundamentalsStore reads the JSON snapshots the research job keeps under
// "fundamentals:<SYMBOL>". The cache adds its own namespace prefix.
type CacheFundamentalsStore struct {
	c cache.Service
}

func NewCacheFundamentalsStore(c cache.Service) *CacheFundamentalsStore {
	return &CacheFundamentalsStore{c: c}
}

// FundamentalsKey returns the cache key of a symbol's snapshot.
func FundamentalsKey(symbol string) string {
	return cache.GenerateKey(fundamentalsPrefix, symbol)
}

func (s *CacheFundamentalsStore) GetFundamentals(ctx context.Context, symbol string) (models.Fundamentals, error) {
	var f models.Fundamentals
	if err := s.c.Get(ctx, FundamentalsKey(symbol), &f); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return models.Fundamentals{}, fmt.Errorf("%w: fundamentals for %s", models.ErrNotFound, symbol)
		}
		return models.Fundamentals{}, fmt.Errorf("get fundamentals %s: %w", symbol, err)
	}
	return f, nil
}

// GetFundamentalsBatch returns the snapshots that exist; missing symbols are
// absent from the map.
func (s *CacheFundamentalsStore) GetFundamentalsBatch(ctx context.Context, symbols []string) (map[string]models.Fundamentals, error) {
	keys := make([]string, len(symbols))
	for i, sym := range symbols {
		keys[i] = FundamentalsKey(sym)
	}
	byKey, err := cache.MGetTyped[models.Fundamentals](ctx, s.c, keys...)
	if err != nil {
		return nil, fmt.Errorf("get fundamentals batch: %w", err)
	}
	out := make(map[string]models.Fundamentals, len(byKey))
	for i, sym := range symbols {
		if f, ok := byKey[keys[i]]; ok {
			out[sym] = f
		}
	}
	return out, nil
}
