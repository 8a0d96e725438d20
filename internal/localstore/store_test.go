package localstore

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	if err := s.Set("auth-storage", []byte(`{"token":"abc"}`)); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	got, err := s.Get("auth-storage")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got) != `{"token":"abc"}` {
		t.Fatalf("unexpected value: %s", got)
	}
}

func TestStoreOverwrite(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	if err := s.Set("theme-storage", []byte("light")); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := s.Set("theme-storage", []byte("dark")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	got, err := s.Get("theme-storage")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got) != "dark" {
		t.Fatalf("unexpected value: %s", got)
	}
}

func TestStoreMissingKey(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	if _, err := s.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreDelete(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	if err := s.Set("auth-storage", []byte("x")); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := s.Delete("auth-storage"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.Get("auth-storage"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting an absent key is not an error.
	if err := s.Delete("auth-storage"); err != nil {
		t.Fatalf("second delete failed: %v", err)
	}
}
