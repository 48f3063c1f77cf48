package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sakif/linkbio/internal/cache"
	"github.com/sakif/linkbio/internal/metrics"
	"github.com/sakif/linkbio/internal/model"
	"github.com/sakif/linkbio/internal/repository"
)

// ReadPath serves profile projections to anonymous visitors.
//
// Projections are cached for a short TTL so click counters shown to
// visitors lag storage by at most that long. Concurrent misses for the same
// handle share one storage read. Unknown handles are never cached, so a
// handle claimed a moment ago renders on the next request.
type ReadPath struct {
	profiles repository.ProfileRepository
	cache    cache.ProjectionCache
	ttl      time.Duration
	group    singleflight.Group
	logger   *slog.Logger
}

var _ Invalidator = (*ReadPath)(nil)

func NewReadPath(profiles repository.ProfileRepository, c cache.ProjectionCache, ttl time.Duration, logger *slog.Logger) *ReadPath {
	return &ReadPath{
		profiles: profiles,
		cache:    c,
		ttl:      ttl,
		logger:   logger,
	}
}

// Render returns the projection for handle. An unknown or malformed handle
// is (nil, false, nil): a normal outcome, not an error. The returned
// projection may be shared with other callers and must not be modified.
func (r *ReadPath) Render(ctx context.Context, rawHandle string) (*model.Projection, bool, error) {
	handle, err := model.NormalizeHandle(rawHandle)
	if err != nil {
		metrics.ProjectionLookups.WithLabelValues(metrics.LookupNotFound).Inc()
		return nil, false, nil
	}

	if proj, ok := r.cached(ctx, handle); ok {
		metrics.ProjectionLookups.WithLabelValues(metrics.LookupHit).Inc()
		return proj, true, nil
	}

	// The shared load must not be cut short by whichever caller happened
	// to arrive first and then went away.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(handle, func() (any, error) {
		return r.load(loadCtx, handle)
	})
	if err != nil {
		return nil, false, fmt.Errorf("service/public: rendering %s: %w", handle, err)
	}

	proj, _ := v.(*model.Projection)
	if proj == nil {
		metrics.ProjectionLookups.WithLabelValues(metrics.LookupNotFound).Inc()
		return nil, false, nil
	}
	metrics.ProjectionLookups.WithLabelValues(metrics.LookupMiss).Inc()
	return proj, true, nil
}

func (r *ReadPath) cached(ctx context.Context, handle string) (*model.Projection, bool) {
	if r.ttl <= 0 {
		return nil, false
	}
	proj, ok, err := r.cache.Get(ctx, handle)
	if err != nil {
		r.logger.Warn("projection cache read failed",
			slog.String("handle", handle),
			slog.String("error", err.Error()),
		)
		return nil, false
	}
	return proj, ok
}

// load returns a nil projection, not an error, for an unknown handle.
func (r *ReadPath) load(ctx context.Context, handle string) (*model.Projection, error) {
	p, err := r.profiles.GetProfileByHandle(ctx, handle)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	proj := model.NewProjection(p)
	if err := r.cache.Set(ctx, handle, proj, r.ttl); err != nil {
		r.logger.Warn("projection cache write failed",
			slog.String("handle", handle),
			slog.String("error", err.Error()),
		)
	}
	return proj, nil
}

// Invalidate drops the cached projection so the next visitor sees a save
// immediately. Failures are logged; the entry still expires on its TTL.
func (r *ReadPath) Invalidate(ctx context.Context, handle string) {
	if err := r.cache.Delete(ctx, handle); err != nil {
		r.logger.Warn("projection cache invalidation failed",
			slog.String("handle", handle),
			slog.String("error", err.Error()),
		)
	}
}
