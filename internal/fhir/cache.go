package fhir

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
)

var (
	bundleCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shl_fhir_cache_hits_total",
		Help: "Количество попаданий в кэш FHIR-бандлов.",
	})
	bundleCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shl_fhir_cache_misses_total",
		Help: "Количество промахов кэша FHIR-бандлов.",
	})
)

// CachedFetcher — LRU-кэш бандлов с TTL поверх другого Fetcher.
// Ошибки не кэшируются.
type CachedFetcher struct {
	next  Fetcher
	cache *expirable.LRU[string, []byte]
}

func NewCachedFetcher(next Fetcher, size int, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{
		next:  next,
		cache: expirable.NewLRU[string, []byte](size, nil, ttl),
	}
}

func (c *CachedFetcher) FetchBundle(ctx context.Context, patientID string, category Category) ([]byte, error) {
	key := patientID + "|" + string(category)
	if b, ok := c.cache.Get(key); ok {
		bundleCacheHits.Inc()
		return b, nil
	}
	bundleCacheMisses.Inc()

	b, err := c.next.FetchBundle(ctx, patientID, category)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, b)
	return b, nil
}

// maxParallelFetches ограничивает число одновременных запросов к datastore.
const maxParallelFetches = 4

// FetchBundles параллельно получает бандлы по всем категориям.
// Результат в порядке categories; первая ошибка отменяет остальные запросы.
func FetchBundles(ctx context.Context, f Fetcher, patientID string, categories []Category) ([][]byte, error) {
	out := make([][]byte, len(categories))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetches)
	for i, cat := range categories {
		g.Go(func() error {
			b, err := f.FetchBundle(ctx, patientID, cat)
			if err != nil {
				return err
			}
			out[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
