package registry

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	logx "apexwatch/pkg/logx"
)

func TestAddRemoveOrder(t *testing.T) {
	t.Parallel()

	r := New(NewMemStore(), logx.Nop())

	for _, name := range []string{"Charlie", "alpha", "Bravo"} {
		if _, err := r.Add(name, "PC"); err != nil {
			t.Fatalf("Add(%q): %v", name, err)
		}
	}

	list := r.List()
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	wantOrder := []string{"charlie", "alpha", "bravo"}
	for i, e := range list {
		if e.Key != wantOrder[i] {
			t.Fatalf("order[%d] = %q, want %q", i, e.Key, wantOrder[i])
		}
	}
	if list[0].Player.OriginalName != "Charlie" {
		t.Fatalf("original name not preserved: %q", list[0].Player.OriginalName)
	}

	if err := r.Remove("ALPHA"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	list = r.List()
	if len(list) != 2 || list[0].Key != "charlie" || list[1].Key != "bravo" {
		t.Fatalf("unexpected order after remove: %+v", list)
	}

	if err := r.Remove("alpha"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second remove: want ErrNotFound, got %v", err)
	}
}

func TestAddOverwriteResetsState(t *testing.T) {
	t.Parallel()

	r := New(NewMemStore(), logx.Nop())
	if _, err := r.Add("Wraith", "PC"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.SetNotify("wraith", false); err != nil {
		t.Fatalf("SetNotify: %v", err)
	}
	if err := r.RecordState("wraith", "inMatch"); err != nil {
		t.Fatalf("RecordState: %v", err)
	}

	// Re-adding the same name overwrites the record.
	if _, err := r.Add("WRAITH", "X1"); err != nil {
		t.Fatalf("re-Add: %v", err)
	}
	p, ok := r.Get("wraith")
	if !ok {
		t.Fatalf("player missing after re-add")
	}
	if p.Platform != "X1" || !p.Notify || p.LastState != nil {
		t.Fatalf("re-add did not reset record: %+v", p)
	}
	if r.Len() != 1 {
		t.Fatalf("re-add duplicated the player: len = %d", r.Len())
	}
}

func TestNotifyAndStateUnknownPlayer(t *testing.T) {
	t.Parallel()

	r := New(NewMemStore(), logx.Nop())
	if err := r.SetNotify("ghost", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SetNotify: want ErrNotFound, got %v", err)
	}
	if err := r.RecordState("ghost", "offline"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("RecordState: want ErrNotFound, got %v", err)
	}
}

func TestPendingLifecycle(t *testing.T) {
	t.Parallel()

	r := New(NewMemStore(), logx.Nop())
	const chat = int64(42)

	if _, _, pending := r.Pending(chat); pending {
		t.Fatalf("fresh registry should have no pending addition")
	}
	if err := r.BeginAdd(chat); err != nil {
		t.Fatalf("BeginAdd: %v", err)
	}
	if name, hasName, pending := r.Pending(chat); !pending || hasName || name != "" {
		t.Fatalf("after BeginAdd: name=%q hasName=%v pending=%v", name, hasName, pending)
	}
	if err := r.SetPendingName(chat, " Wraith "); err != nil {
		t.Fatalf("SetPendingName: %v", err)
	}
	if name, hasName, pending := r.Pending(chat); !pending || !hasName || name != "Wraith" {
		t.Fatalf("after SetPendingName: name=%q hasName=%v pending=%v", name, hasName, pending)
	}
	if err := r.ClearPending(chat); err != nil {
		t.Fatalf("ClearPending: %v", err)
	}
	if _, _, pending := r.Pending(chat); pending {
		t.Fatalf("pending addition not cleared")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "players.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	// Missing file is a clean first run.
	if _, ok, err := store.Load(); err != nil || ok {
		t.Fatalf("Load empty: ok=%v err=%v", ok, err)
	}

	r := New(store, logx.Nop())
	if err := r.Load(); err != nil {
		t.Fatalf("registry Load: %v", err)
	}
	if _, err := r.Add("Wraith", "PC"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.BindChat(7); err != nil {
		t.Fatalf("BindChat: %v", err)
	}
	if err := r.BeginAdd(7); err != nil {
		t.Fatalf("BeginAdd: %v", err)
	}

	// Reload into a fresh registry.
	store2, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	r2 := New(store2, logx.Nop())
	if err := r2.Load(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	p, ok := r2.Get("Wraith")
	if !ok || p.Platform != "PC" || p.OriginalName != "Wraith" {
		t.Fatalf("player did not survive reload: %+v ok=%v", p, ok)
	}
	if chat, ok := r2.ActiveChat(); !ok || chat != 7 {
		t.Fatalf("chat binding did not survive reload: %d ok=%v", chat, ok)
	}
	if _, _, pending := r2.Pending(7); !pending {
		t.Fatalf("pending addition did not survive reload")
	}

	// Atomic write: no stale tmp file left behind.
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("tmp file left behind: %v", err)
	}
}

func TestStateFileLastStateNull(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "players.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	r := New(store, logx.Nop())
	if _, err := r.Add("Wraith", "PC"); err != nil {
		t.Fatalf("Add: %v", err)
	}

	// An unpolled player carries a null last_state on disk.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read state file: %v", err)
	}
	if !strings.Contains(string(raw), `"last_state": null`) {
		t.Fatalf("want null last_state before first poll, got:\n%s", raw)
	}

	if err := r.RecordState("wraith", "inLobby"); err != nil {
		t.Fatalf("RecordState: %v", err)
	}
	raw, err = os.ReadFile(path)
	if err != nil {
		t.Fatalf("read state file: %v", err)
	}
	if !strings.Contains(string(raw), `"last_state": "inLobby"`) {
		t.Fatalf("recorded state missing from file:\n%s", raw)
	}
}

func TestLoadSortsKeys(t *testing.T) {
	t.Parallel()

	store := NewMemStore()
	if err := store.Save(Snapshot{Players: map[string]Player{
		"zeta":  {Platform: "PC", OriginalName: "Zeta"},
		"alpha": {Platform: "PC", OriginalName: "Alpha"},
		"mid":   {Platform: "PC", OriginalName: "Mid"},
	}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	r := New(store, logx.Nop())
	if err := r.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	list := r.List()
	want := []string{"alpha", "mid", "zeta"}
	for i, e := range list {
		if e.Key != want[i] {
			t.Fatalf("order[%d] = %q, want %q", i, e.Key, want[i])
		}
	}
}
