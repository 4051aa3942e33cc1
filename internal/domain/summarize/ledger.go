package summarize

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRateLimitDeferred is returned when the throttle wait ceiling is reached
// without the token window clearing. The task is deferred, not failed
// permanently; callers may retry on a later run.
var ErrRateLimitDeferred = errors.New("rate limit window did not clear, task deferred")

const ledgerWindow = 60 * time.Second

type usageEntry struct {
	at     time.Time
	tokens int
}

// TokenLedger tracks LLM token consumption over a trailing 60 second window.
// It is process-local: running multiple worker processes multiplies the
// effective rate limit and is not supported.
type TokenLedger struct {
	mu      sync.Mutex
	entries []usageEntry
	now     func() time.Time
}

func NewTokenLedger() *TokenLedger {
	return &TokenLedger{now: time.Now}
}

// NewTokenLedgerWithClock injects a clock, for tests.
func NewTokenLedgerWithClock(now func() time.Time) *TokenLedger {
	return &TokenLedger{now: now}
}

// Record adds a usage entry at the current clock time.
func (l *TokenLedger) Record(tokens int) {
	if tokens <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, usageEntry{at: l.now(), tokens: tokens})
}

// WindowTotal prunes entries older than the window and returns the sum of
// the remainder.
func (l *TokenLedger) WindowTotal() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-ledgerWindow)
	kept := l.entries[:0]
	total := 0
	for _, e := range l.entries {
		if e.at.After(cutoff) {
			kept = append(kept, e)
			total += e.tokens
		}
	}
	l.entries = kept
	return total
}

// Snapshot returns a copy of the live entries, for tests.
func (l *TokenLedger) Snapshot() []usageEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]usageEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Throttler gates new LLM work on the ledger. The check is cooperative
// check-then-act: concurrent callers that pass the check simultaneously can
// overshoot the nominal limit by up to one call each. That slack is accepted
// for this workload.
type Throttler struct {
	ledger      *TokenLedger
	limit       int
	buffer      int
	baseWait    time.Duration
	maxWait     time.Duration
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewThrottler(ledger *TokenLedger, limitPerMinute, buffer int, baseWait, maxWait time.Duration) *Throttler {
	if baseWait <= 0 {
		baseWait = 2 * time.Second
	}
	if maxWait < baseWait {
		maxWait = baseWait
	}
	return &Throttler{
		ledger:      ledger,
		limit:       limitPerMinute,
		buffer:      buffer,
		baseWait:    baseWait,
		maxWait:     maxWait,
		maxAttempts: 8,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// threshold is the usage level at which new work stops starting.
func (t *Throttler) threshold() int {
	return t.limit - t.buffer
}

// Wait blocks until trailing-window usage drops below limit-buffer. Waits
// grow exponentially from baseWait up to maxWait; after maxAttempts checks
// the task is deferred with ErrRateLimitDeferred instead of stalling forever.
func (t *Throttler) Wait(ctx context.Context) error {
	wait := t.baseWait
	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		if t.ledger.WindowTotal() < t.threshold() {
			return nil
		}
		if err := t.sleep(ctx, wait); err != nil {
			return err
		}
		wait *= 2
		if wait > t.maxWait {
			wait = t.maxWait
		}
	}
	if t.ledger.WindowTotal() < t.threshold() {
		return nil
	}
	return ErrRateLimitDeferred
}

// Report feeds completed usage back into the ledger.
func (t *Throttler) Report(tokens int) {
	t.ledger.Record(tokens)
}
