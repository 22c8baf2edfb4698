package job

import (
	"context"
	"time"

	"github.com/xxxsen/quill/internal/middleware"
)

// RateLimiterSweepJob evicts idle rate-limit buckets so a long-running
// process's bucket map doesn't grow with every distinct caller it has ever
// seen.
type RateLimiterSweepJob struct {
	limiter *middleware.BucketLimiter
	ttl     time.Duration
}

func NewRateLimiterSweepJob(limiter *middleware.BucketLimiter, ttl time.Duration) *RateLimiterSweepJob {
	return &RateLimiterSweepJob{limiter: limiter, ttl: ttl}
}

func (j *RateLimiterSweepJob) Name() string {
	return "ratelimit_bucket_sweep"
}

func (j *RateLimiterSweepJob) Run(ctx context.Context) error {
	j.limiter.Sweep(j.ttl)
	return nil
}
