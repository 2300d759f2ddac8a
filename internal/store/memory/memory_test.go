package memory_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/qirat-ai/qirat/internal/store"
	"github.com/qirat-ai/qirat/internal/store/memory"
)

func TestSetGetDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.New()

	if err := s.Set(ctx, "session:a", []byte(`{"x":1}`), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "session:a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"x":1}` {
		t.Errorf("Get=%q, want %q", got, `{"x":1}`)
	}

	ok, err := s.Exists(ctx, "session:a")
	if err != nil || !ok {
		t.Errorf("Exists=(%v, %v), want (true, nil)", ok, err)
	}

	deleted, err := s.Delete(ctx, "session:a")
	if err != nil || !deleted {
		t.Errorf("Delete=(%v, %v), want (true, nil)", deleted, err)
	}
	deleted, err = s.Delete(ctx, "session:a")
	if err != nil || deleted {
		t.Errorf("second Delete=(%v, %v), want (false, nil)", deleted, err)
	}

	if _, err := s.Get(ctx, "session:a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get after delete: err=%v, want ErrNotFound", err)
	}
}

func TestTTLExpiry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.New()

	if err := s.Set(ctx, "session:ttl", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := s.Get(ctx, "session:ttl"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	if _, err := s.Get(ctx, "session:ttl"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Get after expiry: err=%v, want ErrNotFound", err)
	}
	ok, err := s.Exists(ctx, "session:ttl")
	if err != nil || ok {
		t.Errorf("Exists after expiry=(%v, %v), want (false, nil)", ok, err)
	}
}

func TestKeysPattern(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.New()

	for _, k := range []string{"session:a", "session:b", "other:c"} {
		if err := s.Set(ctx, k, []byte("v"), 0); err != nil {
			t.Fatalf("Set %s: %v", k, err)
		}
	}

	keys, err := s.Keys(ctx, "session:*")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	sort.Strings(keys)
	want := []string{"session:a", "session:b"}
	if len(keys) != len(want) || keys[0] != want[0] || keys[1] != want[1] {
		t.Errorf("Keys=%v, want %v", keys, want)
	}
}

func TestValueIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := memory.New()

	original := []byte("abc")
	if err := s.Set(ctx, "k", original, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	original[0] = 'x'

	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "abc" {
		t.Errorf("Get=%q, want %q (stored value must not alias caller slice)", got, "abc")
	}
}
