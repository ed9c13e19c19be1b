// Package presence tracks whether users are online and when they were last active.
package presence

import (
	"context"
	"sync"
	"time"

	"github.com/example/dm-chat-server/pkg/keylock"
	"github.com/go-monolith/mono/pkg/types"
	"golang.org/x/sync/singleflight"
)

// Snapshot is the presence state of one user.
type Snapshot struct {
	UserID     string    `json:"user_id"`
	Online     bool      `json:"online"`
	LastActive time.Time `json:"last_active"`
}

// Writer persists presence to the user directory.
type Writer interface {
	UpdatePresence(ctx context.Context, userID string, online bool, lastActive time.Time) error
}

// Mirror publishes snapshots for readers in other processes.
type Mirror interface {
	Publish(ctx context.Context, s Snapshot) error
	Get(ctx context.Context, userID string) (Snapshot, bool, error)
}

// Listener is called after every presence change.
type Listener func(Snapshot)

// Option configures a Tracker.
type Option func(*Tracker)

// WithMirror attaches a mirror.
func WithMirror(m Mirror) Option {
	return func(t *Tracker) { t.mirror = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithListener registers a change listener.
func WithListener(l Listener) Option {
	return func(t *Tracker) { t.listeners = append(t.listeners, l) }
}

// Tracker keeps one presence snapshot per user. Writes for the same user
// are serialized; writes for different users run concurrently.
type Tracker struct {
	locks     *keylock.Locker
	mu        sync.RWMutex
	snapshots map[string]Snapshot
	writer    Writer
	mirror    Mirror
	lookups   singleflight.Group // collapses concurrent mirror reads per user
	listeners []Listener
	now       func() time.Time
	logger    types.Logger
}

// NewTracker creates a Tracker. writer may be nil until SetWriter is called.
func NewTracker(writer Writer, logger types.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		locks:     keylock.New(),
		snapshots: make(map[string]Snapshot),
		writer:    writer,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetWriter sets the directory writer.
func (t *Tracker) SetWriter(w Writer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writer = w
}

// SetMirror sets or clears the mirror.
func (t *Tracker) SetMirror(m Mirror) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mirror = m
}

// AddListener registers a change listener.
func (t *Tracker) AddListener(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// MarkOnline records that userID connected.
func (t *Tracker) MarkOnline(ctx context.Context, userID string) (Snapshot, error) {
	return t.set(ctx, userID, true)
}

// MarkOffline records that userID disconnected.
func (t *Tracker) MarkOffline(ctx context.Context, userID string) (Snapshot, error) {
	return t.set(ctx, userID, false)
}

// set updates the local snapshot even when the directory write fails; the
// returned error reports the write failure only.
func (t *Tracker) set(ctx context.Context, userID string, online bool) (Snapshot, error) {
	unlock := t.locks.Lock(userID)
	defer unlock()

	snap := Snapshot{
		UserID:     userID,
		Online:     online,
		LastActive: t.now().UTC(),
	}

	t.mu.Lock()
	t.snapshots[userID] = snap
	writer, mirror := t.writer, t.mirror
	listeners := append([]Listener(nil), t.listeners...)
	t.mu.Unlock()

	var writeErr error
	if writer != nil {
		writeErr = writer.UpdatePresence(ctx, userID, online, snap.LastActive)
	}
	if mirror != nil {
		if err := mirror.Publish(ctx, snap); err != nil {
			t.logger.Warn("Failed to mirror presence", "user_id", userID, "error", err)
		}
	}
	for _, l := range listeners {
		l(snap)
	}
	return snap, writeErr
}

// Get returns the snapshot known to this process.
func (t *Tracker) Get(userID string) (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.snapshots[userID]
	return s, ok
}

// Lookup returns the local snapshot, falling back to the mirror.
func (t *Tracker) Lookup(ctx context.Context, userID string) (Snapshot, bool, error) {
	if s, ok := t.Get(userID); ok {
		return s, true, nil
	}
	t.mu.RLock()
	mirror := t.mirror
	t.mu.RUnlock()
	if mirror == nil {
		return Snapshot{}, false, nil
	}

	val, err, _ := t.lookups.Do(userID, func() (any, error) {
		s, ok, err := mirror.Get(ctx, userID)
		if err != nil || !ok {
			return nil, err
		}
		return s, nil
	})
	if err != nil {
		return Snapshot{}, false, err
	}
	s, ok := val.(Snapshot)
	return s, ok, nil
}

// OnlineCount returns the number of users this process sees online.
func (t *Tracker) OnlineCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, s := range t.snapshots {
		if s.Online {
			n++
		}
	}
	return n
}
