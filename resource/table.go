package resource

import (
	"sync"
)

// UnifiedTable is a token table with type checks and lifecycle observers,
// stored in a LocalBackend.
type UnifiedTable struct {
	backend   *LocalBackend
	observers []Observer
	obsMu     sync.RWMutex
	closed    bool
	closeMu   sync.RWMutex
}

// NewTable creates a new unified table with a LocalBackend.
func NewTable() *UnifiedTable {
	return &UnifiedTable{
		backend: NewLocalBackend(),
	}
}

// Acquire adds a reference to value and returns its token, or 0 if the
// table is closed or value is nil. A pointer already in the table is
// retained under its existing token and reported as EventRetained.
func (t *UnifiedTable) Acquire(typeID uint32, value any) Token {
	t.closeMu.RLock()
	if t.closed {
		t.closeMu.RUnlock()
		return 0
	}
	t.closeMu.RUnlock()

	token, err := t.backend.Acquire(typeID, value)
	if err != nil {
		return 0
	}

	refs := t.backend.Refs(token)
	typ := EventAcquired
	if refs > 1 {
		typ = EventRetained
	}
	t.notify(Event{
		Type:   typ,
		Token:  token,
		TypeID: typeID,
		Value:  value,
		Refs:   refs,
	})

	return token
}

// Retain adds a reference to an existing token.
func (t *UnifiedTable) Retain(token Token) bool {
	if !t.backend.Retain(token) {
		return false
	}
	typeID, _ := t.backend.TypeID(token)
	value, _ := t.backend.Get(token)
	t.notify(Event{
		Type:   EventRetained,
		Token:  token,
		TypeID: typeID,
		Value:  value,
		Refs:   t.backend.Refs(token),
	})
	return true
}

// Get retrieves a value by token.
func (t *UnifiedTable) Get(token Token) (any, bool) {
	return t.backend.Get(token)
}

// GetTyped retrieves a value only if it matches the expected type.
func (t *UnifiedTable) GetTyped(token Token, typeID uint32) (any, bool) {
	actualTypeID, ok := t.backend.TypeID(token)
	if !ok || actualTypeID != typeID {
		return nil, false
	}
	return t.backend.Get(token)
}

// Release drops one reference. Releasing an unknown or already dropped
// token reports false and has no effect.
func (t *UnifiedTable) Release(token Token) bool {
	typeID, _ := t.backend.TypeID(token)
	value, remaining, ok := t.backend.Release(token)
	if !ok {
		return false
	}

	if remaining > 0 {
		t.notify(Event{
			Type:   EventReleased,
			Token:  token,
			TypeID: typeID,
			Value:  value,
			Refs:   remaining,
		})
		return true
	}

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}

	t.notify(Event{
		Type:   EventDropped,
		Token:  token,
		TypeID: typeID,
		Value:  value,
	})

	return true
}

// Refs returns the current reference count of a token.
func (t *UnifiedTable) Refs(token Token) int32 {
	return t.backend.Refs(token)
}

// Subscribe adds an observer for lifecycle events.
func (t *UnifiedTable) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Len returns the number of live tokens.
func (t *UnifiedTable) Len() int {
	return t.backend.Len()
}

// Clear drops every token regardless of its count.
func (t *UnifiedTable) Clear() {
	// Collect tokens first to avoid holding the lock during Release
	var tokens []Token
	t.backend.Each(func(tok Token, typeID uint32, value any) bool {
		tokens = append(tokens, tok)
		return true
	})
	for _, tok := range tokens {
		for t.backend.Refs(tok) > 0 {
			t.Release(tok)
		}
	}
}

// Close releases all values and stops accepting operations.
func (t *UnifiedTable) Close() error {
	t.closeMu.Lock()
	t.closed = true
	t.closeMu.Unlock()

	return t.backend.Close()
}

func (t *UnifiedTable) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
