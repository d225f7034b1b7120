package state

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Applied describes one successfully applied message, as passed to the
// SetOnApplied hook.
type Applied struct {
	// Kind is the message shape ("state_change" or "register").
	Kind string

	// NodeID is the store's "id" value after the message was applied.
	NodeID string

	// Values holds the keys actually written and their new values.
	Values map[string]string

	// Missing lists state-change keys that were skipped as unknown.
	Missing []string
}

// Store is the shared node state.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - The value map and the dirty flag have independent locks; neither is
//     held while the other is taken, while notifying, or while running
//     the OnApplied hook.
type Store struct {
	values   map[string]string
	valuesMu sync.RWMutex

	dirty   bool
	dirtyMu sync.Mutex

	wake *Signal

	onApplied   func(Applied)
	onAppliedMu sync.RWMutex

	logger Logger
}

// NewStore creates an empty store. wake is notified once per applied
// message; it may be nil when nobody waits.
func NewStore(wake *Signal) *Store {
	return &Store{
		values: make(map[string]string),
		wake:   wake,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.logger = logger
}

// SetOnApplied sets a hook called after every applied message.
// It runs on the delivering goroutine, outside the store's locks.
func (s *Store) SetOnApplied(fn func(Applied)) {
	s.onAppliedMu.Lock()
	s.onApplied = fn
	s.onAppliedMu.Unlock()
}

// ApplyChange overwrites every key of change that already exists. Keys the
// store does not hold are skipped and logged one by one; they are never
// inserted. The message counts as applied even if every key was missing.
//
// Returns the keys that were skipped, sorted.
func (s *Store) ApplyChange(change *StateChange) []string {
	written := make(map[string]string, len(change.Values))
	var missing []string

	s.valuesMu.Lock()
	for k, v := range change.Values {
		if _, ok := s.values[k]; !ok {
			missing = append(missing, k)
			continue
		}
		s.values[k] = v
		written[k] = v
	}
	nodeID := s.values[KeyID]
	s.valuesMu.Unlock()

	slices.Sort(missing)
	for _, k := range missing {
		s.logger.Error("state change key not found", "key", k, "error", ErrKeyNotFound)
	}

	s.finish(Applied{Kind: change.Kind(), NodeID: nodeID, Values: written, Missing: missing})
	return missing
}

// ApplyRegister inserts or overwrites id, position_type, position and every
// state entry of reg.
func (s *Store) ApplyRegister(reg *Register) {
	values := reg.Values()

	s.valuesMu.Lock()
	maps.Copy(s.values, values)
	nodeID := s.values[KeyID]
	s.valuesMu.Unlock()

	s.finish(Applied{Kind: reg.Kind(), NodeID: nodeID, Values: values})
}

// Apply dispatches a decoded message to ApplyChange or ApplyRegister.
func (s *Store) Apply(msg Message) error {
	switch m := msg.(type) {
	case *StateChange:
		s.ApplyChange(m)
	case *Register:
		s.ApplyRegister(m)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
	}
	return nil
}

// finish marks the store dirty, wakes waiters once and runs the hook.
func (s *Store) finish(applied Applied) {
	s.dirtyMu.Lock()
	s.dirty = true
	s.dirtyMu.Unlock()

	if s.wake != nil {
		s.wake.Notify()
	}

	s.onAppliedMu.RLock()
	hook := s.onApplied
	s.onAppliedMu.RUnlock()
	if hook != nil {
		hook(applied)
	}
}

// Snapshot returns a point-in-time copy of every key and value.
func (s *Store) Snapshot() map[string]string {
	s.valuesMu.RLock()
	defer s.valuesMu.RUnlock()
	return maps.Clone(s.values)
}

// Get returns the value for key.
func (s *Store) Get(key string) (string, bool) {
	s.valuesMu.RLock()
	defer s.valuesMu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Len returns the number of keys.
func (s *Store) Len() int {
	s.valuesMu.RLock()
	defer s.valuesMu.RUnlock()
	return len(s.values)
}

// Dirty reports whether the store changed since the flag was last cleared.
func (s *Store) Dirty() bool {
	s.dirtyMu.Lock()
	defer s.dirtyMu.Unlock()
	return s.dirty
}

// ClearDirty resets the dirty flag and returns its previous value.
func (s *Store) ClearDirty() bool {
	s.dirtyMu.Lock()
	defer s.dirtyMu.Unlock()
	was := s.dirty
	s.dirty = false
	return was
}
