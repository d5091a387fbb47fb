package privacy

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/veilhq/veil-backend/internal/logger"
)

// Notification jitter defaults. Wide enough that an observer watching the
// notification channel cannot line deliveries up with submission times.
const (
	DefaultMinJitter = 5 * time.Second
	DefaultMaxJitter = 30 * time.Second
)

// JitterScheduler runs tasks after a fresh uniform random delay. The delay
// decorrelates a submission from its observable side effects, so the draw
// must be new on every call; a fixed offset would defeat the point.
type JitterScheduler struct {
	log *logger.Logger

	// baseCtx bounds the lifetime of detached tasks; canceled on shutdown.
	baseCtx context.Context
}

func NewJitterScheduler(baseCtx context.Context, log *logger.Logger) *JitterScheduler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &JitterScheduler{
		log:     log.With("component", "JitterScheduler"),
		baseCtx: baseCtx,
	}
}

// Schedule runs task after the jitter delay on a detached goroutine and
// returns immediately. Failures are logged by task name only (never task
// content) and are not retried; if the process dies before the delay
// elapses the task is lost, which is acceptable for notification traffic.
func (s *JitterScheduler) Schedule(name string, minDelay, maxDelay time.Duration, task func(ctx context.Context) error) {
	delay := jitterDelay(minDelay, maxDelay)
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-s.baseCtx.Done():
			return
		case <-timer.C:
		}
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("jittered task panicked", "task", name)
			}
		}()
		if err := task(s.baseCtx); err != nil {
			s.log.Warn("jittered task failed", "task", name, "error", err)
		}
	}()
}

// Await runs task after the jitter delay and waits for it, honoring ctx
// cancellation during the delay.
func (s *JitterScheduler) Await(ctx context.Context, minDelay, maxDelay time.Duration, task func(ctx context.Context) error) error {
	delay := jitterDelay(minDelay, maxDelay)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}
	return task(ctx)
}

func jitterDelay(minDelay, maxDelay time.Duration) time.Duration {
	if minDelay <= 0 {
		minDelay = DefaultMinJitter
	}
	if maxDelay <= minDelay {
		maxDelay = minDelay + DefaultMaxJitter
	}
	span := uint64(maxDelay - minDelay)
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("privacy: crypto/rand unavailable: " + err.Error())
	}
	return minDelay + time.Duration(binary.BigEndian.Uint64(buf[:])%span)
}
