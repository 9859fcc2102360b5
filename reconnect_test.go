package realtime

import (
	"context"
	"sync"
	"testing"
	"time"
)

// delayRecorder replaces the reconnector's sleep and records each delay.
type delayRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *delayRecorder) sleep(ctx context.Context, d time.Duration) bool {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	select {
	case <-ctx.Done():
		return false
	default:
		return true
	}
}

func (r *delayRecorder) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

// dropSession connects the client through a short-lived server, then
// kills both the session and the server so every retry fails.
func dropSession(t *testing.T, c *Client, ts *testServer) {
	t.Helper()
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return ts.connCount() == 1 })
	ts.lastConn().Close()
	ts.Close()
}

func TestReconnectBackoffSequence(t *testing.T) {
	ts := newTestServer(t)
	c, err := NewClient(Options{
		URL:              ts.wsURL(),
		Token:            staticToken("tok"),
		HandshakeTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := &delayRecorder{}
	r := NewReconnector(c, ReconnectPolicy{Jitter: -1})
	defer r.Stop()
	r.sleep = rec.sleep

	dropSession(t, c, ts)

	waitFor(t, func() bool { return len(rec.recorded()) > 0 })
	waitFor(t, func() bool { return len(rec.recorded()) == defaultMaxAttempts && !r.Reconnecting() })

	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
		30 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}
	got := rec.recorded()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delay[%d] = %v, want %v (all: %v)", i, got[i], want[i], got)
		}
	}

	// Exhaustion is final: no further attempts without a new session.
	time.Sleep(100 * time.Millisecond)
	if len(rec.recorded()) != defaultMaxAttempts {
		t.Fatalf("attempts after exhaustion: %d", len(rec.recorded()))
	}
}

func TestReconnectJitterBounds(t *testing.T) {
	ts := newTestServer(t)
	c, err := NewClient(Options{
		URL:              ts.wsURL(),
		Token:            staticToken("tok"),
		HandshakeTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := &delayRecorder{}
	r := NewReconnector(c, ReconnectPolicy{MaxAttempts: 3})
	defer r.Stop()
	r.sleep = rec.sleep

	dropSession(t, c, ts)
	waitFor(t, func() bool { return len(rec.recorded()) == 3 && !r.Reconnecting() })

	base := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for i, d := range rec.recorded() {
		jitter := d - base[i]
		if jitter < 0 || jitter >= defaultJitter {
			t.Fatalf("delay[%d] = %v, jitter %v outside [0, %v)", i, d, jitter, defaultJitter)
		}
	}
}

func TestFailedConnectDoesNotStartLoop(t *testing.T) {
	c, err := NewClient(Options{
		URL:              "ws://127.0.0.1:1/hubs/chat",
		Token:            staticToken("tok"),
		HandshakeTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := &delayRecorder{}
	r := NewReconnector(c, ReconnectPolicy{})
	defer r.Stop()
	r.sleep = rec.sleep

	// A connect that never establishes is the caller's problem, not an
	// outage to chase.
	c.Connect(context.Background())

	time.Sleep(100 * time.Millisecond)
	if len(rec.recorded()) != 0 {
		t.Fatalf("loop started after a failed initial connect: %v", rec.recorded())
	}
}

func TestMarkIntentionalDisconnectSuppressesLoop(t *testing.T) {
	ts := newTestServer(t)
	c, err := NewClient(Options{URL: ts.wsURL(), Token: staticToken("tok")})
	if err != nil {
		t.Fatal(err)
	}

	rec := &delayRecorder{}
	r := NewReconnector(c, ReconnectPolicy{})
	defer r.Stop()
	r.sleep = rec.sleep

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return c.IsConnected() })

	r.MarkIntentionalDisconnect()
	c.Disconnect()

	time.Sleep(100 * time.Millisecond)
	if len(rec.recorded()) != 0 {
		t.Fatalf("reconnect attempted after intentional disconnect: %v", rec.recorded())
	}
	if r.Reconnecting() {
		t.Fatal("reconnector should stay idle")
	}
}

func TestMarkIntentionalIgnoresQueuedConnectedEvent(t *testing.T) {
	c, err := NewClient(Options{
		URL:              "ws://127.0.0.1:1/hubs/chat",
		Token:            staticToken("tok"),
		HandshakeTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := &delayRecorder{}
	r := NewReconnector(c, ReconnectPolicy{})
	defer r.Stop()
	r.sleep = rec.sleep

	// A connected transition still queued in the state stream must not
	// undo a mark that comes after it.
	c.states.publish(StateConnected)
	r.MarkIntentionalDisconnect()
	c.states.publish(StateDisconnected)

	time.Sleep(100 * time.Millisecond)
	if len(rec.recorded()) != 0 {
		t.Fatalf("reconnect attempted after intentional disconnect: %v", rec.recorded())
	}
}

func TestConnectedCancelsParkedLoop(t *testing.T) {
	ts := newTestServer(t)
	c, err := NewClient(Options{
		URL:              ts.wsURL(),
		Token:            staticToken("tok"),
		HandshakeTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	r := NewReconnector(c, ReconnectPolicy{
		InitialBackoff: time.Hour, // the loop parks in its first sleep
	})
	defer r.Stop()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return ts.connCount() == 1 })
	ts.lastConn().Close()
	waitFor(t, func() bool { return r.Reconnecting() })

	// An externally driven reconnect must not leave the loop parked and
	// Reconnecting() reporting true while the session is live.
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Disconnect)

	waitFor(t, func() bool { return c.IsConnected() && !r.Reconnecting() })
}

func TestMarkIntentionalCancelsRunningLoop(t *testing.T) {
	ts := newTestServer(t)
	c, err := NewClient(Options{
		URL:              ts.wsURL(),
		Token:            staticToken("tok"),
		HandshakeTimeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	r := NewReconnector(c, ReconnectPolicy{
		InitialBackoff: time.Hour, // the loop parks in its first sleep
	})
	defer r.Stop()

	dropSession(t, c, ts)
	waitFor(t, func() bool { return r.Reconnecting() })

	r.MarkIntentionalDisconnect()
	waitFor(t, func() bool { return !r.Reconnecting() })
}

func TestReconnectRecoversAfterServerDrop(t *testing.T) {
	ts := newTestServer(t)
	c, err := NewClient(Options{
		URL:   ts.wsURL(),
		Token: staticToken("tok"),
	})
	if err != nil {
		t.Fatal(err)
	}

	r := NewReconnector(c, ReconnectPolicy{
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
		Jitter:         -1,
	})
	defer r.Stop()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Disconnect)

	// Kill the session server-side; the reconnector should restore it.
	waitFor(t, func() bool { return ts.connCount() == 1 })
	ts.lastConn().Close()
	waitFor(t, func() bool { return ts.connCount() == 2 && c.IsConnected() })
	waitFor(t, func() bool { return !r.Reconnecting() })
}

func TestConnectedResetsIntentionalFlag(t *testing.T) {
	ts := newTestServer(t)
	c, err := NewClient(Options{URL: ts.wsURL(), Token: staticToken("tok")})
	if err != nil {
		t.Fatal(err)
	}

	r := NewReconnector(c, ReconnectPolicy{
		InitialBackoff: 10 * time.Millisecond,
		Jitter:         -1,
	})
	defer r.Stop()

	r.MarkIntentionalDisconnect()
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Disconnect)

	// The successful connect cleared the flag, so the next drop is
	// chased again.
	waitFor(t, func() bool { return c.IsConnected() && ts.connCount() == 1 })
	ts.lastConn().Close()
	waitFor(t, func() bool { return ts.connCount() == 2 && c.IsConnected() })
}
