package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/orbitapp/orbit-server/internal/config"
	"github.com/orbitapp/orbit-server/internal/logger"
	"github.com/orbitapp/orbit-server/internal/ratelimit"
	"github.com/orbitapp/orbit-server/internal/tagging"
)

// TagReconcileJob periodically repairs drifted tag usage counts.
type TagReconcileJob struct {
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (j *TagReconcileJob) Shutdown() error {
	j.cancel()
	return nil
}

// ProvideTagReconcileJob provides the periodic tag reconcile job.
// With no interval configured the job does nothing and reconcile stays
// an admin request.
func ProvideTagReconcileJob(i do.Injector) (*TagReconcileJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	registry := do.MustInvoke[*tagging.Registry](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())
	interval := cfg.Jobs.TagReconcileInterval
	if interval <= 0 {
		log.Info("Tag reconcile job disabled")
		return &TagReconcileJob{cancel: cancel}, nil
	}

	run := func() {
		report, err := registry.Reconcile(ctx)
		if err != nil {
			log.Warn("Tag reconcile failed", "error", err)
			return
		}
		if len(report.Drifts) > 0 {
			log.Info("Tag reconcile repaired drift", "entities", report.Entities, "tags", report.Tags, "drifts", len(report.Drifts))
		}
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				run()
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Tag reconcile job started", "interval", interval)

	return &TagReconcileJob{cancel: cancel}, nil
}

// RateLimiterHandle wraps the per-client limiter. Limiter is nil when
// rate limiting is disabled.
type RateLimiterHandle struct {
	Limiter *ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	if h.Limiter != nil {
		h.Limiter.Stop()
	}
	return nil
}

// ProvideRateLimiter provides the per-client request limiter.
func ProvideRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.RateLimit.Enabled {
		log.Info("Rate limiting disabled")
		return &RateLimiterHandle{}, nil
	}

	limiter := ratelimit.PerInterval(cfg.RateLimit.RequestsPerMinute, time.Minute, cfg.RateLimit.Burst)
	return &RateLimiterHandle{Limiter: limiter}, nil
}
