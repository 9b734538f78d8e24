package registry

import (
	"sort"
	"strconv"
	"strings"
	"sync"

	logx "apexwatch/pkg/logx"
)

// Registry is the in-memory tracked-player state, persisted through a Store
// after every mutation. All methods are safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	store Store
	log   logx.Logger

	players map[string]Player
	// order holds player keys in insertion order; notification passes and
	// listings iterate in this order.
	order []string

	chatID  int64
	hasChat bool

	// adding tracks in-progress menu additions per chat. nil value means
	// awaiting player name; non-nil holds the name while awaiting platform.
	adding map[int64]*string
}

func New(store Store, log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{
		store:   store,
		log:     log,
		players: map[string]Player{},
		adding:  map[int64]*string{},
	}
}

// Key normalizes a player name into its registry key.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Load reads persisted state. A missing state file leaves the registry empty.
// JSON objects carry no order, so keys are sorted to give passes a stable
// iteration order across restarts.
func (r *Registry) Load() error {
	snap, ok, err := r.store.Load()
	if err != nil {
		return err
	}
	if !ok {
		r.log.Info("no prior state, starting empty")
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.players = snap.Players
	if r.players == nil {
		r.players = map[string]Player{}
	}
	r.order = r.order[:0]
	for k := range r.players {
		r.order = append(r.order, k)
	}
	sort.Strings(r.order)

	if snap.ChatID != nil {
		r.chatID = *snap.ChatID
		r.hasChat = true
	}

	r.adding = map[int64]*string{}
	for k, v := range snap.Adding {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		r.adding[id] = v
	}

	r.log.Info("state loaded",
		logx.Int("players", len(r.players)),
		logx.Bool("chat_bound", r.hasChat))
	return nil
}

func (r *Registry) snapshotLocked() Snapshot {
	snap := Snapshot{Players: map[string]Player{}}
	for k, v := range r.players {
		snap.Players[k] = v
	}
	if r.hasChat {
		id := r.chatID
		snap.ChatID = &id
	}
	if len(r.adding) > 0 {
		snap.Adding = map[string]*string{}
		for id, v := range r.adding {
			var cp *string
			if v != nil {
				s := *v
				cp = &s
			}
			snap.Adding[strconv.FormatInt(id, 10)] = cp
		}
	}
	return snap
}

func (r *Registry) saveLocked() error {
	if err := r.store.Save(r.snapshotLocked()); err != nil {
		r.log.Error("state save failed", logx.Err(err))
		return err
	}
	return nil
}

// Add registers or overwrites a player. Re-adding an existing name keeps its
// position in iteration order but resets notify and the observed state.
func (r *Registry) Add(name, platform string) (string, error) {
	key := Key(name)
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.players[key]; !exists {
		r.order = append(r.order, key)
	}
	r.players[key] = Player{
		Platform:     platform,
		Notify:       true,
		OriginalName: strings.TrimSpace(name),
	}
	return key, r.saveLocked()
}

// Remove deletes a player by name or key.
func (r *Registry) Remove(name string) error {
	key := Key(name)
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[key]; !ok {
		return ErrNotFound
	}
	delete(r.players, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return r.saveLocked()
}

// SetNotify toggles change notifications for a player.
func (r *Registry) SetNotify(name string, on bool) error {
	key := Key(name)
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[key]
	if !ok {
		return ErrNotFound
	}
	p.Notify = on
	r.players[key] = p
	return r.saveLocked()
}

// RecordState persists a newly observed state code for a player.
func (r *Registry) RecordState(name, state string) error {
	key := Key(name)
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[key]
	if !ok {
		return ErrNotFound
	}
	p.LastState = &state
	r.players[key] = p
	return r.saveLocked()
}

// Get looks up a player by name or key.
func (r *Registry) Get(name string) (Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[Key(name)]
	return p, ok
}

// List returns all tracked players in insertion order.
func (r *Registry) List() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0, len(r.order))
	for _, k := range r.order {
		if p, ok := r.players[k]; ok {
			out = append(out, Entry{Key: k, Player: p})
		}
	}
	return out
}

// Len reports the number of tracked players.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// BindChat records the chat that receives notifications.
func (r *Registry) BindChat(chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chatID = chatID
	r.hasChat = true
	return r.saveLocked()
}

// ActiveChat returns the bound notification chat, if any.
func (r *Registry) ActiveChat() (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chatID, r.hasChat
}

// BeginAdd marks a chat as awaiting a player name from the menu flow.
func (r *Registry) BeginAdd(chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adding[chatID] = nil
	return r.saveLocked()
}

// SetPendingName stores the entered name; the chat now awaits a platform.
func (r *Registry) SetPendingName(chatID int64, name string) error {
	name = strings.TrimSpace(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adding[chatID] = &name
	return r.saveLocked()
}

// Pending reports the menu-addition state for a chat: whether an addition is
// in progress, and the entered name if one has been captured.
func (r *Registry) Pending(chatID int64) (name string, hasName bool, pending bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.adding[chatID]
	if !ok {
		return "", false, false
	}
	if v == nil {
		return "", false, true
	}
	return *v, true, true
}

// ClearPending removes any in-progress menu addition for a chat.
func (r *Registry) ClearPending(chatID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.adding[chatID]; !ok {
		return nil
	}
	delete(r.adding, chatID)
	return r.saveLocked()
}
