package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rhayalcantara/proyectos-sub001/internal/config"
	"github.com/rhayalcantara/proyectos-sub001/internal/domain"
	"github.com/rhayalcantara/proyectos-sub001/internal/hub"
	"github.com/rhayalcantara/proyectos-sub001/internal/presence"
	"github.com/rhayalcantara/proyectos-sub001/internal/push"
	"github.com/rhayalcantara/proyectos-sub001/internal/repository"
)

// fakeStore is an in-memory ChatStore.
type fakeStore struct {
	mu       sync.Mutex
	chats    map[string][]string // userID -> chat ids
	users    map[string]*domain.User
	blocked  map[string]map[string]bool // blocker -> blocked -> true
	presence map[string]bool            // userID -> last persisted online flag
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chats:    make(map[string][]string),
		users:    make(map[string]*domain.User),
		blocked:  make(map[string]map[string]bool),
		presence: make(map[string]bool),
	}
}

func (f *fakeStore) ChatIDsForUser(ctx context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chats[userID], nil
}

func (f *fakeStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		return u, nil
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeStore) IsBlocked(ctx context.Context, userID, blockedID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blocked[userID][blockedID], nil
}

func (f *fakeStore) SetPresence(ctx context.Context, userID string, online bool, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.presence[userID] = online
	return nil
}

func (f *fakeStore) block(blocker, blocked string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blocked[blocker] == nil {
		f.blocked[blocker] = make(map[string]bool)
	}
	f.blocked[blocker][blocked] = true
}

func (f *fakeStore) lastPresence(userID string) (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	online, ok := f.presence[userID]
	return online, ok
}

// fakePush records dispatched payloads.
type fakePush struct {
	mu    sync.Mutex
	sends []pushRecord
}

type pushRecord struct {
	TargetUserID string
	Payload      push.Payload
}

func (f *fakePush) Send(ctx context.Context, targetUserID string, payload *push.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, pushRecord{TargetUserID: targetUserID, Payload: *payload})
	return nil
}

func (f *fakePush) Close() error { return nil }

func (f *fakePush) records() []pushRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pushRecord(nil), f.sends...)
}

// fakePresence records cache updates.
type fakePresence struct {
	mu     sync.Mutex
	online map[string]bool
}

func newFakePresence() *fakePresence {
	return &fakePresence{online: make(map[string]bool)}
}

func (f *fakePresence) MarkOnline(ctx context.Context, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[userID] = true
	return nil
}

func (f *fakePresence) MarkOffline(ctx context.Context, userID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[userID] = false
	return nil
}

func (f *fakePresence) Get(ctx context.Context, userID string) (*presence.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	online, ok := f.online[userID]
	if !ok {
		return nil, nil
	}
	return &presence.Status{UserID: userID, IsOnline: online}, nil
}

func (f *fakePresence) Close() error { return nil }

func (f *fakePresence) isOnline(userID string) (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	online, ok := f.online[userID]
	return online, ok
}

func newTestHub() *hub.Hub {
	h := hub.NewHub(config.WebSocketConfig{SendBuffer: 16})
	go h.Run()
	return h
}

// connectClient registers a client with the hub and waits for the slot.
func connectClient(t *testing.T, h *hub.Hub, userID, userName string) *hub.Client {
	t.Helper()
	c := hub.NewClient("conn-"+userID, userID, userName, h, nil, config.WebSocketConfig{SendBuffer: 16})
	h.Register(c)
	waitFor(t, func() bool { return h.IsUserOnline(userID) })
	return c
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func readFrame(t *testing.T, c *hub.Client) domain.Frame {
	t.Helper()
	select {
	case data := <-c.Send:
		var frame domain.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		return frame
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for frame")
		return domain.Frame{}
	}
}

func assertNoFrame(t *testing.T, c *hub.Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("unexpected frame: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func decodeFrame[T any](t *testing.T, frame domain.Frame) T {
	t.Helper()
	var v T
	if err := frame.DecodeData(&v); err != nil {
		t.Fatalf("decode %s payload: %v", frame.Type, err)
	}
	return v
}
