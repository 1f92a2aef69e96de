// Package catalog lists the products offered by the loyalty backend.
package catalog

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/noah-isme/loyalty-shop/internal/loyalty"
)

// ProductsKey is the cache key holding the product listing.
const ProductsKey = "catalog:products"

// ProductSource fetches the listing from the backend.
type ProductSource interface {
	Products(ctx context.Context) ([]loyalty.Product, error)
}

// Service serves the product listing, reading through an optional cache.
type Service struct {
	source ProductSource
	cache  *Cache
	logger zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Source ProductSource
	Cache  *Cache
	Logger zerolog.Logger
}

// NewService constructs a catalog service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{source: cfg.Source, cache: cfg.Cache, logger: cfg.Logger}
}

// List returns the products. Cache failures are logged and the backend is
// queried instead; backend errors are returned unchanged.
func (s *Service) List(ctx context.Context) ([]loyalty.Product, error) {
	var cached []loyalty.Product
	hit, err := s.cache.GetJSON(ctx, ProductsKey, &cached)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", ProductsKey).Msg("catalog_cache_read_failed")
	}
	if hit {
		return cached, nil
	}

	products, err := s.source.Products(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, ProductsKey, products); err != nil {
		s.logger.Warn().Err(err).Str("key", ProductsKey).Msg("catalog_cache_write_failed")
	}
	return products, nil
}

// Invalidate drops the cached listing.
func (s *Service) Invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, ProductsKey); err != nil {
		s.logger.Warn().Err(err).Str("key", ProductsKey).Msg("catalog_cache_invalidate_failed")
	}
}
