package engine

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wesleyorama2/kvlunge/internal/keyspace"
	"github.com/wesleyorama2/kvlunge/internal/kv"
)

// WarmupValue is stored under every key during warmup.
const WarmupValue = "warmup"

// Warmup writes every key of a namespace of the given size with at most
// concurrency requests in flight. Failed writes are counted, not returned;
// the only error is ctx's.
//
// client should not record into the run metrics.
func Warmup(ctx context.Context, client *kv.Client, keys, concurrency int, logger *zap.Logger) (*WarmupResult, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	start := time.Now()
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for ordinal := 1; ordinal <= keys; ordinal++ {
		if gctx.Err() != nil {
			break
		}

		key := keyspace.Format(ordinal)
		g.Go(func() error {
			resp, err := client.Put(gctx, key, WarmupValue, 0)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				logger.Debug("warmup write failed", zap.String("key", key), zap.Error(err))
				return nil
			}
			if resp.StatusCode != 204 {
				failed.Add(1)
				logger.Debug("warmup write rejected", zap.String("key", key), zap.Int("status", resp.StatusCode))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &WarmupResult{
		Keys:     keys,
		Failed:   failed.Load(),
		Duration: time.Since(start),
	}, nil
}
