package watch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"apexwatch/internal/apex"
	"apexwatch/internal/registry"
	kit "apexwatch/internal/transport"
	logx "apexwatch/pkg/logx"
)

type fakeAdapter struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(ctx context.Context) error                         { return nil }
func (f *fakeAdapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	return nil
}
func (f *fakeAdapter) AnswerCallback(ctx context.Context, id, text string) error { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeFetcher struct {
	mu  sync.Mutex
	st  map[string]apex.Status
	err map[string]error
}

func (f *fakeFetcher) Fetch(ctx context.Context, player, platform string) (apex.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err[player]; err != nil {
		return apex.Status{}, err
	}
	return f.st[player], nil
}

func newTestWatcher(t *testing.T) (*Watcher, *fakeAdapter, *registry.Registry, *fakeFetcher) {
	t.Helper()
	ad := &fakeAdapter{}
	reg := registry.New(registry.NewMemStore(), logx.Nop())
	fetch := &fakeFetcher{st: map[string]apex.Status{}, err: map[string]error{}}
	w := New(Config{RatePerSec: 1000}, reg, fetch, ad, nil, logx.Nop())
	return w, ad, reg, fetch
}

func TestPassNotifiesOnStateChange(t *testing.T) {
	t.Parallel()
	w, ad, reg, fetch := newTestWatcher(t)
	ctx := context.Background()

	if _, err := reg.Add("Wraith", "PC"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := reg.RecordState("wraith", "offline"); err != nil {
		t.Fatalf("RecordState: %v", err)
	}
	fetch.st["Wraith"] = apex.Status{State: "inMatch", SinceUnix: time.Now().Unix() - 10}

	w.pass(ctx, 42)
	if got := ad.sentCount(); got != 1 {
		t.Fatalf("sent %d messages, want 1", got)
	}
	ad.mu.Lock()
	text := ad.sent[0]
	ad.mu.Unlock()
	if !strings.Contains(text, "Wraith 状态更新:") || !strings.Contains(text, "游戏中") {
		t.Fatalf("notification text = %q", text)
	}
	if p, _ := reg.Get("wraith"); p.Last() != "inMatch" {
		t.Fatalf("state not persisted: %q", p.Last())
	}

	// Second pass with an unchanged state sends nothing.
	w.pass(ctx, 42)
	if got := ad.sentCount(); got != 1 {
		t.Fatalf("unchanged state produced %d extra sends", got-1)
	}
}

func TestPassSkipsDisabledAndFailed(t *testing.T) {
	t.Parallel()
	w, ad, reg, fetch := newTestWatcher(t)
	ctx := context.Background()

	// Player order: broken, muted, healthy.
	for _, name := range []string{"Broken", "Muted", "Healthy"} {
		if _, err := reg.Add(name, "PC"); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := reg.SetNotify("muted", false); err != nil {
		t.Fatalf("SetNotify: %v", err)
	}
	fetch.err["Broken"] = &apex.FetchError{Kind: apex.KindTransport, Err: errors.New("down")}
	fetch.st["Muted"] = apex.Status{State: "inLobby"}
	fetch.st["Healthy"] = apex.Status{State: "inLobby", SinceUnix: time.Now().Unix()}

	w.pass(ctx, 42)

	// Only the healthy player notifies; the failed fetch must not block it.
	if got := ad.sentCount(); got != 1 {
		t.Fatalf("sent %d messages, want 1", got)
	}
	ad.mu.Lock()
	text := ad.sent[0]
	ad.mu.Unlock()
	if !strings.Contains(text, "Healthy") {
		t.Fatalf("wrong player notified: %q", text)
	}
	// Failed fetch leaves state untouched for the next pass.
	if p, _ := reg.Get("broken"); p.LastState != nil {
		t.Fatalf("failed fetch recorded state %q", p.Last())
	}
}

func TestRunIdlesWithoutBoundChat(t *testing.T) {
	t.Parallel()
	w, ad, reg, fetch := newTestWatcher(t)
	w.Reconfigure(Config{PollInterval: 10 * time.Millisecond, IdleInterval: 5 * time.Millisecond, RatePerSec: 1000})

	if _, err := reg.Add("Wraith", "PC"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	fetch.st["Wraith"] = apex.Status{State: "inMatch"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()

	// Unbound chat: the loop idles and never fetches or sends.
	time.Sleep(40 * time.Millisecond)
	if got := ad.sentCount(); got != 0 {
		t.Fatalf("unbound watcher sent %d messages", got)
	}

	// Binding the chat lets the next pass notify.
	if err := reg.BindChat(9); err != nil {
		t.Fatalf("BindChat: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for ad.sentCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if ad.sentCount() == 0 {
		t.Fatalf("no notification after chat bind")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop on cancellation")
	}
}
