package securestore

import (
	"bytes"
	"context"
	"testing"
)

func TestMemory_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewMemory()

	if _, ok, err := m.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = (%v, %v), want (false, nil)", ok, err)
	}
	if err := m.Put(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := m.Get(ctx, "k")
	if err != nil || !ok || !bytes.Equal(got, []byte("v1")) {
		t.Fatalf("Get = (%q, %v, %v), want (v1, true, nil)", got, ok, err)
	}

	// stored value is isolated from caller mutation
	got[0] = 'X'
	again, _, _ := m.Get(ctx, "k")
	if !bytes.Equal(again, []byte("v1")) {
		t.Fatalf("stored value mutated through returned slice")
	}
}

func TestFS_RoundTripAndReload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if err := s.Put(ctx, "snapshot/permissions", []byte(`[{"id":"p1"}]`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = (%v, %v), want (false, nil)", ok, err)
	}

	// a fresh store over the same directory sees the data
	s2, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS reload: %v", err)
	}
	got, ok, err := s2.Get(ctx, "snapshot/permissions")
	if err != nil || !ok {
		t.Fatalf("Get after reload = (%v, %v), want (true, nil)", ok, err)
	}
	if !bytes.Equal(got, []byte(`[{"id":"p1"}]`)) {
		t.Fatalf("reloaded value = %q", got)
	}
}

func TestFS_OverwriteKey(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	if err := s.Put(ctx, "k", []byte("a")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "k", []byte("b")); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, _, _ := s.Get(ctx, "k")
	if !bytes.Equal(got, []byte("b")) {
		t.Fatalf("Get after overwrite = %q, want b", got)
	}
}
