package resource

import (
	"errors"
	"sync"
	"testing"
)

type vec2 struct{ x, y float32 }

func TestLocalBackend_Basic(t *testing.T) {
	b := NewLocalBackend()

	token, err := b.Acquire(1, "test value")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if token == 0 {
		t.Fatal("Expected non-zero token")
	}

	val, ok := b.Get(token)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "test value" {
		t.Fatalf("Expected 'test value', got %v", val)
	}

	val, remaining, ok := b.Release(token)
	if !ok {
		t.Fatal("Release failed")
	}
	if remaining != 0 {
		t.Fatalf("Expected 0 remaining, got %d", remaining)
	}
	if val != "test value" {
		t.Fatalf("Expected 'test value', got %v", val)
	}

	if _, ok := b.Get(token); ok {
		t.Fatal("Expected Get to fail after last Release")
	}
}

func TestLocalBackend_PointerIdentity(t *testing.T) {
	b := NewLocalBackend()
	v := &vec2{12, 15}

	t1, _ := b.Acquire(1, v)
	t2, _ := b.Acquire(1, v)
	if t1 != t2 {
		t.Fatalf("same pointer produced tokens %d and %d", t1, t2)
	}
	if refs := b.Refs(t1); refs != 2 {
		t.Fatalf("Expected refs 2, got %d", refs)
	}

	got, _ := b.Get(t1)
	if got.(*vec2) != v {
		t.Fatal("Get returned a different pointer")
	}

	// Same pointer under another type ID is a separate entry
	t3, _ := b.Acquire(2, v)
	if t3 == t1 {
		t.Fatal("type IDs should not share tokens")
	}

	// A distinct pointer with equal contents is a separate entry
	t4, _ := b.Acquire(1, &vec2{12, 15})
	if t4 == t1 {
		t.Fatal("distinct pointers should not share tokens")
	}
}

func TestLocalBackend_ValuesAreNotShared(t *testing.T) {
	b := NewLocalBackend()

	t1, _ := b.Acquire(1, vec2{1, 2})
	t2, _ := b.Acquire(1, vec2{1, 2})
	if t1 == t2 {
		t.Fatal("non-pointer values should get fresh tokens")
	}
}

func TestLocalBackend_RetainRelease(t *testing.T) {
	b := NewLocalBackend()
	v := &vec2{}

	token, _ := b.Acquire(1, v)
	if !b.Retain(token) {
		t.Fatal("Retain failed")
	}
	if refs := b.Refs(token); refs != 2 {
		t.Fatalf("Expected refs 2, got %d", refs)
	}

	if _, remaining, _ := b.Release(token); remaining != 1 {
		t.Fatalf("Expected 1 remaining, got %d", remaining)
	}
	if _, ok := b.Get(token); !ok {
		t.Fatal("token should stay live while referenced")
	}

	if _, remaining, _ := b.Release(token); remaining != 0 {
		t.Fatalf("Expected 0 remaining, got %d", remaining)
	}

	// Released twice past zero is rejected
	if _, _, ok := b.Release(token); ok {
		t.Fatal("Release of a dropped token should fail")
	}

	// Identity index was cleared, reacquiring starts a new entry at 1
	again, _ := b.Acquire(1, v)
	if refs := b.Refs(again); refs != 1 {
		t.Fatalf("Expected refs 1 after reacquire, got %d", refs)
	}
}

func TestLocalBackend_FreeListReuse(t *testing.T) {
	b := NewLocalBackend()

	h1, _ := b.Acquire(1, "a")
	b.Acquire(1, "b")
	b.Release(h1)

	h3, _ := b.Acquire(1, "c")
	if h3 != h1 {
		t.Fatalf("Expected token %d to be reused, got %d", h1, h3)
	}
	val, _ := b.Get(h3)
	if val != "c" {
		t.Fatalf("Expected 'c', got %v", val)
	}
}

func TestLocalBackend_Nil(t *testing.T) {
	b := NewLocalBackend()

	if _, err := b.Acquire(1, nil); !errors.Is(err, ErrNilValue) {
		t.Fatalf("Expected ErrNilValue, got %v", err)
	}

	var p *vec2
	token, err := b.Acquire(1, p)
	if err != nil {
		t.Fatalf("typed nil pointer should be storable: %v", err)
	}
	if token == 0 {
		t.Fatal("Expected non-zero token")
	}
}

func TestLocalBackend_Close(t *testing.T) {
	b := NewLocalBackend()
	d := &dropCounter{}

	b.Acquire(1, d)
	b.Acquire(1, d)

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if d.count != 1 {
		t.Fatalf("Expected one Drop on Close, got %d", d.count)
	}

	if _, err := b.Acquire(1, "x"); !errors.Is(err, ErrClosed) {
		t.Fatalf("Expected ErrClosed, got %v", err)
	}

	// Second close is a no-op
	if err := b.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestLocalBackend_Concurrent(t *testing.T) {
	b := NewLocalBackend()
	shared := &vec2{}
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			h, _ := b.Acquire(1, id)
			b.Retain(h)
			b.Release(h)
			b.Release(h)

			s, _ := b.Acquire(2, shared)
			b.Release(s)
		}(i)
	}

	wg.Wait()

	if b.Len() != 0 {
		t.Fatalf("Expected empty backend, got %d live tokens", b.Len())
	}
}

func TestLocalBackend_Each(t *testing.T) {
	b := NewLocalBackend()

	b.Acquire(1, "a")
	b.Acquire(2, "b")
	b.Acquire(1, "c")

	count := 0
	b.Each(func(tok Token, typeID uint32, value any) bool {
		count++
		return true
	})
	if count != 3 {
		t.Fatalf("Expected to iterate over 3 items, got %d", count)
	}

	count = 0
	b.Each(func(tok Token, typeID uint32, value any) bool {
		count++
		return false
	})
	if count != 1 {
		t.Fatalf("Expected to iterate over 1 item (early term), got %d", count)
	}
}

func TestLocalBackend_InvalidToken(t *testing.T) {
	b := NewLocalBackend()

	// Token 0 is always invalid
	if _, ok := b.Get(0); ok {
		t.Fatal("Token 0 should be invalid")
	}
	if b.Retain(0) {
		t.Fatal("Token 0 should fail Retain")
	}
	if _, _, ok := b.Release(0); ok {
		t.Fatal("Token 0 should fail Release")
	}
	if _, ok := b.TypeID(0); ok {
		t.Fatal("Token 0 should fail TypeID")
	}

	if _, ok := b.Get(999); ok {
		t.Fatal("Non-existent token should be invalid")
	}
	if b.Refs(999) != 0 {
		t.Fatal("Non-existent token should have no refs")
	}
}
