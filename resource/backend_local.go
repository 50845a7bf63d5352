package resource

import (
	"errors"
	"reflect"
	"sync"
)

var (
	ErrClosed       = errors.New("resource backend closed")
	ErrNilValue     = errors.New("cannot acquire a token for nil")
	ErrRefsOverflow = errors.New("token reference count overflow")
)

// LocalBackend is an in-memory token backend with reference counting and
// an identity index for pointer values.
type LocalBackend struct {
	entries  []entry
	freeList []Token
	index    map[identity]Token
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value  any
	typeID uint32
	refs   int32
	valid  bool
}

type identity struct {
	value  any
	typeID uint32
}

// NewLocalBackend creates a new in-memory backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{
		entries:  make([]entry, 0, 64),
		freeList: make([]Token, 0, 16),
		index:    make(map[identity]Token),
	}
}

// identityOf returns the index key for values that have reference
// identity. Other values always get a fresh token.
func identityOf(typeID uint32, value any) (identity, bool) {
	switch reflect.TypeOf(value).Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Chan:
		if reflect.ValueOf(value).IsNil() {
			return identity{}, false
		}
		return identity{typeID: typeID, value: value}, true
	}
	return identity{}, false
}

// Acquire stores a value and returns a token holding one reference.
func (b *LocalBackend) Acquire(typeID uint32, value any) (Token, error) {
	if value == nil {
		return 0, ErrNilValue
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	key, indexed := identityOf(typeID, value)
	if indexed {
		if token, ok := b.index[key]; ok {
			e := &b.entries[token-1]
			if e.refs == maxRefs {
				return 0, ErrRefsOverflow
			}
			e.refs++
			return token, nil
		}
	}

	e := entry{
		typeID: typeID,
		value:  value,
		refs:   1,
		valid:  true,
	}

	var token Token
	if len(b.freeList) > 0 {
		token = b.freeList[len(b.freeList)-1]
		b.freeList = b.freeList[:len(b.freeList)-1]
		b.entries[token-1] = e
	} else {
		b.entries = append(b.entries, e)
		token = Token(len(b.entries))
	}

	if indexed {
		b.index[key] = token
	}
	return token, nil
}

const maxRefs = int32(^uint32(0) >> 1)

// lookup returns the live entry for a token. Callers hold the lock.
func (b *LocalBackend) lookup(token Token) *entry {
	if token == 0 {
		return nil
	}
	idx := token - 1
	if int(idx) >= len(b.entries) {
		return nil
	}
	e := &b.entries[idx]
	if !e.valid {
		return nil
	}
	return e
}

// Get retrieves a value by token.
func (b *LocalBackend) Get(token Token) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(token)
	if e == nil {
		return nil, false
	}
	return e.value, true
}

// Retain adds a reference to a live token.
func (b *LocalBackend) Retain(token Token) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(token)
	if e == nil || e.refs == maxRefs {
		return false
	}
	e.refs++
	return true
}

// Release removes one reference and frees the entry at zero.
func (b *LocalBackend) Release(token Token) (any, int32, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(token)
	if e == nil {
		return nil, 0, false
	}

	e.refs--
	if e.refs > 0 {
		return e.value, e.refs, true
	}

	value := e.value
	if key, ok := identityOf(e.typeID, value); ok {
		delete(b.index, key)
	}
	e.valid = false
	e.value = nil
	e.refs = 0
	b.freeList = append(b.freeList, token)

	return value, 0, true
}

// Refs returns the reference count of a token, or 0 if it is not live.
func (b *LocalBackend) Refs(token Token) int32 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if e := b.lookup(token); e != nil {
		return e.refs
	}
	return 0
}

// TypeID returns the type ID for a token.
func (b *LocalBackend) TypeID(token Token) (uint32, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(token)
	if e == nil {
		return 0, false
	}
	return e.typeID, true
}

// Close releases all values, dropping each Dropper once.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for i := range b.entries {
		if b.entries[i].valid {
			if d, ok := b.entries[i].value.(Dropper); ok {
				d.Drop()
			}
			b.entries[i].valid = false
			b.entries[i].value = nil
		}
	}

	b.entries = nil
	b.freeList = nil
	b.index = nil
	return nil
}

// Len returns the number of live tokens.
func (b *LocalBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, e := range b.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over all live tokens.
func (b *LocalBackend) Each(fn func(Token, uint32, any) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i, e := range b.entries {
		if e.valid {
			if !fn(Token(i+1), e.typeID, e.value) {
				break
			}
		}
	}
}
