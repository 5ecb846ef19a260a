package antispam

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"plugbot/internal/modules/audit"
	"plugbot/internal/platform/platformtest"
	"plugbot/internal/settings"
	"plugbot/internal/storage"
)

type fakeTimer struct {
	stopped bool
	fn      func()
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) AfterFunc(_ time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	timer := &fakeTimer{fn: fn}
	f.timers = append(f.timers, timer)
	return timer
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	pending := append([]*fakeTimer{}, f.timers...)
	f.timers = nil
	f.mu.Unlock()
	for _, timer := range pending {
		if !timer.stopped {
			timer.fn()
		}
	}
}

func newTestModule(t *testing.T) (*Module, *platformtest.Fake, *fakeClock) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	logger := zap.NewNop()
	client := platformtest.New()
	sink := audit.NewSink(store, settings.New(store, logger), client, logger)
	module := New(Config{Messages: 5, Window: 5 * time.Second, WarningTTL: 5 * time.Second}, client, sink, logger)
	clock := &fakeClock{now: time.Unix(1000, 0)}
	module.WithClock(clock)
	return module, client, clock
}

func TestBurstWithinWindowTriggersOnce(t *testing.T) {
	module, client, clock := newTestModule(t)
	ctx := context.Background()

	triggered := 0
	for i := 0; i < 5; i++ {
		if i > 0 {
			clock.Advance(time.Second - time.Millisecond)
		}
		if module.HandleMessage(ctx, "g1", "c1", "m", "u1") {
			triggered++
		}
	}
	if triggered != 1 {
		t.Fatalf("triggered %d times, want 1", triggered)
	}
	if len(client.Deleted) != 1 {
		t.Fatalf("deleted %d messages, want the triggering one", len(client.Deleted))
	}
	if !client.SentContaining("Spam detected") {
		t.Fatal("expected a warning message")
	}
}

func TestSlowMessagesNeverTrigger(t *testing.T) {
	module, client, clock := newTestModule(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if module.HandleMessage(ctx, "g1", "c1", "m", "u1") {
			t.Fatal("spread-out messages should not trigger")
		}
		clock.Advance(1500 * time.Millisecond)
	}
	if len(client.Deleted) != 0 {
		t.Fatalf("deleted %d messages, want 0", len(client.Deleted))
	}
}

func TestWindowResetsAfterTrigger(t *testing.T) {
	module, _, clock := newTestModule(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		module.HandleMessage(ctx, "g1", "c1", "m", "u1")
	}
	// The burst was consumed; four quick follow-ups must not re-trigger.
	for i := 0; i < 4; i++ {
		if module.HandleMessage(ctx, "g1", "c1", "m", "u1") {
			t.Fatal("window should restart from zero after a trigger")
		}
	}
	clock.Advance(10 * time.Second)
}

func TestMembersAreCountedSeparately(t *testing.T) {
	module, _, _ := newTestModule(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		module.HandleMessage(ctx, "g1", "c1", "m", "u1")
		module.HandleMessage(ctx, "g1", "c1", "m", "u2")
	}
	if module.HandleMessage(ctx, "g1", "c1", "m", "u3") {
		t.Fatal("a fresh member must not inherit another member's count")
	}
}

func TestWarningRetractedAfterTTL(t *testing.T) {
	module, client, clock := newTestModule(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		module.HandleMessage(ctx, "g1", "c1", "m", "u1")
	}
	deletedBefore := len(client.Deleted)
	clock.Advance(5 * time.Second)
	if len(client.Deleted) != deletedBefore+1 {
		t.Fatalf("warning was not retracted: %d deletions", len(client.Deleted))
	}
}
