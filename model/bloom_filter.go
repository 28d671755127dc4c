package model

import (
	"context"
	"sync"
	"time"

	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"github.com/cespare/xxhash"
	"github.com/greatroar/blobloom"
)

// CoinBloomFilter sits in front of the coin store's fast-path lookup. A
// negative answer proves the coin has never been committed locally, so the
// store read can be skipped entirely.
type CoinBloomFilter struct {
	mu      sync.RWMutex
	filter  *blobloom.Filter
	stats   *BloomStats
	created time.Time
}

func NewCoinBloomFilter(capacity int, falsePositiveRate float64, stats *BloomStats) *CoinBloomFilter {
	return &CoinBloomFilter{
		filter: blobloom.NewOptimized(blobloom.Config{
			Capacity: uint64(capacity),
			FPRate:   falsePositiveRate,
		}),
		stats:   stats,
		created: time.Now(),
	}
}

func (f *CoinBloomFilter) Add(coinID chainhash.Hash) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.filter.Add(xxhash.Sum64(coinID.CloneBytes()))
}

// Has reports whether the coin ID may have been added. False positives are
// possible; false negatives are not.
func (f *CoinBloomFilter) Has(coinID chainhash.Hash) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	positive := f.filter.Has(xxhash.Sum64(coinID.CloneBytes()))

	if f.stats != nil {
		f.stats.recordQuery(positive)
	}

	return positive
}

type BloomStats struct {
	QueryCounter         uint64
	PositiveCounter      uint64
	FalsePositiveCounter uint64
	mu                   sync.Mutex
}

func NewBloomStats() *BloomStats {
	initPrometheusMetrics()

	return &BloomStats{}
}

func (bs *BloomStats) recordQuery(positive bool) {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	bs.QueryCounter++
	if positive {
		bs.PositiveCounter++
	}
}

// RecordFalsePositive is called by the store when a bloom-positive lookup
// finds no row.
func (bs *BloomStats) RecordFalsePositive() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	bs.FalsePositiveCounter++
}

// BloomFilterStatsProcessor periodically exports the counters to prometheus.
func (bs *BloomStats) BloomFilterStatsProcessor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if prometheusBloomQueryCounter != nil {
					bs.mu.Lock()
					prometheusBloomQueryCounter.Set(float64(bs.QueryCounter))
					prometheusBloomPositiveCounter.Set(float64(bs.PositiveCounter))
					prometheusBloomFalsePositiveCounter.Set(float64(bs.FalsePositiveCounter))
					bs.mu.Unlock()
				}
			}
		}
	}()
}
