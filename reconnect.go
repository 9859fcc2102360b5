package realtime

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = 30 * time.Second
	defaultMaxAttempts    = 10
	defaultJitter         = 500 * time.Millisecond
)

// ReconnectPolicy tunes the Reconnector. The zero value picks the
// defaults: 1s initial backoff doubling to a 30s cap, up to 500ms of
// jitter per attempt, 10 attempts per outage. A negative Jitter
// disables jitter entirely.
type ReconnectPolicy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxAttempts    int
	Jitter         time.Duration
}

func (p ReconnectPolicy) withDefaults() ReconnectPolicy {
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaultInitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = defaultMaxBackoff
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.Jitter == 0 {
		p.Jitter = defaultJitter
	} else if p.Jitter < 0 {
		p.Jitter = 0
	}
	return p
}

// Reconnector watches a Client's state stream and re-establishes the
// connection after unintentional disconnects. At most one retry loop
// runs at a time; a connection success or an intentional disconnect
// resets everything.
type Reconnector struct {
	client *Client
	policy ReconnectPolicy
	logger zerolog.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) bool

	mu           sync.Mutex
	intentional  bool
	markSeq      uint64 // state sequence at the moment of the mark
	reconnecting bool
	cancel       context.CancelFunc

	unwatch  func()
	done     chan struct{}
	stopOnce sync.Once
}

// NewReconnector creates a Reconnector and starts watching the client's
// state stream. Call Stop to detach it.
func NewReconnector(c *Client, policy ReconnectPolicy) *Reconnector {
	r := &Reconnector{
		client: c,
		policy: policy.withDefaults(),
		logger: c.logger.With().Str("component", "reconnector").Logger(),
		sleep:  sleepCtx,
		done:   make(chan struct{}),
	}

	states, unwatch := c.states.subscribe(c.opts.StreamBuffer)
	r.unwatch = unwatch
	go r.watch(states)
	return r
}

// Stop detaches the reconnector from the client and cancels any running
// retry loop. The client itself is left untouched.
func (r *Reconnector) Stop() {
	r.stopOnce.Do(func() {
		r.unwatch()
		close(r.done)
		r.cancelLoop()
	})
}

// MarkIntentionalDisconnect tells the reconnector the next disconnect
// is deliberate: any running retry loop is cancelled and new ones are
// suppressed until the client connects again. Only a connection
// established after this call re-arms the reconnector; a stale
// connected event still queued in the state stream does not.
func (r *Reconnector) MarkIntentionalDisconnect() {
	seq := r.client.states.lastSeq()
	r.mu.Lock()
	r.intentional = true
	r.markSeq = seq
	r.mu.Unlock()
	r.cancelLoop()
}

// Reconnecting reports whether a retry loop is currently running.
func (r *Reconnector) Reconnecting() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reconnecting
}

// watch reacts to state transitions. Only the loss of an established
// connection starts a retry loop: a failed connect attempt also ends in
// disconnected, but retrying those is the loop's own job.
func (r *Reconnector) watch(states <-chan stateChange) {
	prev := r.client.State()
	for {
		select {
		case <-r.done:
			return
		case sc, ok := <-states:
			if !ok {
				return
			}
			switch {
			case sc.state == StateConnected:
				r.connected(sc.seq)
			case sc.state == StateDisconnected && prev == StateConnected:
				r.maybeStartLoop()
			}
			prev = sc.state
		}
	}
}

// connected resets the reconnector for an established session. The
// intentional flag only clears for a connection newer than the mark;
// any retry loop still parked in its backoff is cancelled so
// Reconnecting() goes false while the session is live.
func (r *Reconnector) connected(seq uint64) {
	r.mu.Lock()
	if seq > r.markSeq {
		r.intentional = false
	}
	r.mu.Unlock()
	r.cancelLoop()
}

func (r *Reconnector) maybeStartLoop() {
	r.mu.Lock()
	if r.intentional || r.reconnecting {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.reconnecting = true
	r.cancel = cancel
	r.mu.Unlock()

	go r.loop(ctx)
}

func (r *Reconnector) cancelLoop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// loop retries Connect with doubling backoff until it succeeds, the
// attempt budget runs out, or the context is cancelled.
func (r *Reconnector) loop(ctx context.Context) {
	defer func() {
		r.mu.Lock()
		r.reconnecting = false
		r.cancel = nil
		r.mu.Unlock()
	}()

	backoff := r.policy.InitialBackoff
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		delay := backoff
		if r.policy.Jitter > 0 {
			delay += time.Duration(rand.Int63n(int64(r.policy.Jitter)))
		}

		r.logger.Info().
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("scheduling reconnect")

		if !r.sleep(ctx, delay) {
			r.logger.Debug().Msg("reconnect cancelled")
			return
		}

		if r.client.IsConnected() {
			return
		}

		if err := r.client.Connect(ctx); err != nil {
			r.logger.Warn().Err(err).Int("attempt", attempt).Msg("reconnect failed")
			backoff *= 2
			if backoff > r.policy.MaxBackoff {
				backoff = r.policy.MaxBackoff
			}
			continue
		}

		if r.client.IsConnected() {
			r.logger.Info().Int("attempt", attempt).Msg("reconnected")
			return
		}
	}

	r.logger.Warn().Int("attempts", r.policy.MaxAttempts).Msg("reconnect attempts exhausted")
}

// sleepCtx waits for d or until ctx is cancelled. Reports whether the
// full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
