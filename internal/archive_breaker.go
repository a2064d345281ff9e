package internal

import (
	"slices"
	"sync"
	"time"

	"github.com/lychee-technology/apischema"
	"go.uber.org/zap"
)

// archiveBreaker pauses uploads to one bucket once BreakerThreshold uploads
// have failed within BreakerWindow. Uploads resume after BreakerCooldown or
// after the next successful upload. A nil breaker never pauses.
type archiveBreaker struct {
	bucket    string
	threshold int
	window    time.Duration
	cooldown  time.Duration
	now       func() time.Time

	mu          sync.Mutex
	failures    []time.Time
	pausedUntil time.Time
}

// newArchiveBreaker returns nil when cfg.BreakerThreshold is zero.
func newArchiveBreaker(cfg apischema.ArchiveConfig) *archiveBreaker {
	if cfg.BreakerThreshold <= 0 {
		return nil
	}
	return &archiveBreaker{
		bucket:    cfg.Bucket,
		threshold: cfg.BreakerThreshold,
		window:    cfg.BreakerWindow,
		cooldown:  cfg.BreakerCooldown,
		now:       time.Now,
	}
}

// allow returns an archive error while uploads are paused.
func (b *archiveBreaker) allow() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if until := b.pausedUntil; b.now().Before(until) {
		return apischema.NewArchiveError("archive uploads are paused after repeated failures", nil).
			WithDetail("bucket", b.bucket).
			WithDetail("retryAfter", until.Format(time.RFC3339))
	}
	return nil
}

// uploadFailed records a failed upload and pauses uploads when the
// failures inside the window reach the threshold.
func (b *archiveBreaker) uploadFailed() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	cutoff := now.Add(-b.window)
	b.failures = slices.DeleteFunc(b.failures, func(at time.Time) bool {
		return !at.After(cutoff)
	})
	b.failures = append(b.failures, now)

	if len(b.failures) >= b.threshold {
		b.pausedUntil = now.Add(b.cooldown)
		zap.S().Warnw("pausing archive uploads",
			"bucket", b.bucket,
			"failures", len(b.failures),
			"window", b.window.String(),
			"until", b.pausedUntil)
	}
}

// uploadSucceeded forgets the failure history.
func (b *archiveBreaker) uploadSucceeded() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.failures) > 0 {
		zap.S().Infow("archive uploads recovered", "bucket", b.bucket, "failures", len(b.failures))
	}
	b.failures = b.failures[:0]
	b.pausedUntil = time.Time{}
}
