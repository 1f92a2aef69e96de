package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/loyalty-shop/internal/catalog"
	"github.com/noah-isme/loyalty-shop/internal/loyalty"
)

type countingSource struct {
	calls    int
	products []loyalty.Product
	err      error
}

func (s *countingSource) Products(context.Context) ([]loyalty.Product, error) {
	s.calls++
	return s.products, s.err
}

func sampleProducts() []loyalty.Product {
	return []loyalty.Product{
		{ID: 1, Name: "Laptop", Price: "1200", ImageURL: "https://example.com/laptop.jpg"},
		{ID: 2, Name: "Science Fiction Book", Price: "15.99"},
	}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestListWithoutCacheHitsSource(t *testing.T) {
	src := &countingSource{products: sampleProducts()}
	svc := catalog.NewService(catalog.ServiceConfig{Source: src})

	for i := 0; i < 2; i++ {
		got, err := svc.List(context.Background())
		require.NoError(t, err)
		require.Equal(t, sampleProducts(), got)
	}
	require.Equal(t, 2, src.calls)
}

func TestListServesFromRedis(t *testing.T) {
	mr, rdb := newRedis(t)
	src := &countingSource{products: sampleProducts()}
	svc := catalog.NewService(catalog.ServiceConfig{Source: src, Cache: catalog.NewCache(rdb, time.Minute)})
	ctx := context.Background()

	first, err := svc.List(ctx)
	require.NoError(t, err)
	second, err := svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, src.calls)
	require.True(t, mr.Exists(catalog.ProductsKey))

	mr.FastForward(2 * time.Minute)
	_, err = svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, src.calls)
}

func TestInvalidateDropsListing(t *testing.T) {
	mr, rdb := newRedis(t)
	src := &countingSource{products: sampleProducts()}
	svc := catalog.NewService(catalog.ServiceConfig{Source: src, Cache: catalog.NewCache(rdb, time.Minute)})
	ctx := context.Background()

	_, err := svc.List(ctx)
	require.NoError(t, err)
	svc.Invalidate(ctx)
	require.False(t, mr.Exists(catalog.ProductsKey))

	_, err = svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, src.calls)
}

func TestCacheFailureFallsBackToSource(t *testing.T) {
	mr, rdb := newRedis(t)
	src := &countingSource{products: sampleProducts()}
	svc := catalog.NewService(catalog.ServiceConfig{Source: src, Cache: catalog.NewCache(rdb, time.Minute)})
	mr.Close()

	got, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestSourceErrorNotCached(t *testing.T) {
	mr, rdb := newRedis(t)
	src := &countingSource{err: errors.New("service unavailable")}
	svc := catalog.NewService(catalog.ServiceConfig{Source: src, Cache: catalog.NewCache(rdb, time.Minute)})

	_, err := svc.List(context.Background())
	require.EqualError(t, err, "service unavailable")
	require.False(t, mr.Exists(catalog.ProductsKey))
}
