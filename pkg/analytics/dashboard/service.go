package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/claimtrack/platform/pkg/claims"
	"github.com/claimtrack/platform/pkg/common/logger"
	"github.com/claimtrack/platform/pkg/observability/metrics"
	"github.com/redis/go-redis/v9"
)

// Service computes dashboard snapshots over the claim store. When a Redis
// client is configured, snapshots are cached under the dataset version,
// so a cached entry can never serve stale aggregates: any committed
// import bumps the version and changes the key.
type Service struct {
	store       claims.Store
	cache       *redis.Client
	cacheTTL    time.Duration
	recentLimit int
}

func NewService(store claims.Store, cache *redis.Client, cacheTTL time.Duration, recentLimit int) *Service {
	if recentLimit <= 0 {
		recentLimit = defaultRecentLimit
	}
	return &Service{store: store, cache: cache, cacheTTL: cacheTTL, recentLimit: recentLimit}
}

func (s *Service) Snapshot(ctx context.Context, opts Options) (*Snapshot, error) {
	ds, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	metrics.ObserveDataset(ds.Version, len(ds.Claims))

	if opts.RecentLimit <= 0 {
		opts.RecentLimit = s.recentLimit
	}

	key := cacheKey(ds.Version, opts)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var snapshot Snapshot
			if err := json.Unmarshal(cached, &snapshot); err == nil {
				return &snapshot, nil
			}
		}
	}

	snapshot := Compute(ds, opts)

	if s.cache != nil {
		if data, err := json.Marshal(snapshot); err == nil {
			if err := s.cache.Set(ctx, key, data, s.cacheTTL).Err(); err != nil {
				logger.Log.WithError(err).Warn("failed to cache dashboard snapshot")
			}
		}
	}
	return snapshot, nil
}

func cacheKey(version uint64, opts Options) string {
	from, to := "", ""
	if opts.From != nil {
		from = opts.From.Format(claims.DateLayout)
	}
	if opts.To != nil {
		to = opts.To.Format(claims.DateLayout)
	}
	return fmt.Sprintf("dashboard:v%d:%s:%s:%d", version, from, to, opts.RecentLimit)
}
