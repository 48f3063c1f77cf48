// Package cache holds short-lived copies of rendered profile projections so
// a burst of visitors to one page does not turn into a burst of queries.
//
// Two implementations share the ProjectionCache interface: Redis, for
// deployments running several server processes, and an in-process map for
// single-instance runs and tests. New picks one based on configuration.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/linkbio/internal/model"
)

// ProjectionCache stores projections keyed by handle.
//
// A miss is (nil, false, nil). Errors are reserved for backend failures and
// callers treat them as a miss.
type ProjectionCache interface {
	Get(ctx context.Context, handle string) (*model.Projection, bool, error)
	Set(ctx context.Context, handle string, p *model.Projection, ttl time.Duration) error
	Delete(ctx context.Context, handle string) error
	Close() error
}

// Options selects and configures the backend.
type Options struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// AllowInMemoryFallback lets New return an in-process cache when Redis
	// is configured but unreachable.
	AllowInMemoryFallback bool
}

// New returns a Redis cache when RedisAddr is set, otherwise an in-memory
// one.
func New(opts Options, logger *slog.Logger) (ProjectionCache, error) {
	if opts.RedisAddr == "" {
		logger.Info("projection cache: using in-memory backend")
		return NewInMemory(), nil
	}

	rc, err := NewRedis(opts.RedisAddr, opts.RedisPassword, opts.RedisDB, logger)
	if err == nil {
		logger.Info("projection cache: using redis", slog.String("addr", opts.RedisAddr))
		return rc, nil
	}
	if !opts.AllowInMemoryFallback {
		return nil, fmt.Errorf("cache: %w", err)
	}

	logger.Warn("projection cache: redis unavailable, falling back to in-memory",
		slog.String("addr", opts.RedisAddr),
		slog.String("error", err.Error()),
	)
	return NewInMemory(), nil
}

func key(handle string) string {
	return "linkbio:projection:" + handle
}
