package store

import (
	"path/filepath"
	"testing"
)

func tempSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_SetGetRemove(t *testing.T) {
	s := tempSQLite(t)

	if _, ok, err := s.Get("missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v err %v, want not found", ok, err)
	}

	if err := s.Set("accessToken", "abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set("accessToken", "def"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, ok, err := s.Get("accessToken")
	if err != nil || !ok {
		t.Fatalf("Get = ok %v err %v", ok, err)
	}
	if got != "def" {
		t.Errorf("value = %q, want 'def'", got)
	}

	if err := s.Remove("accessToken"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := s.Get("accessToken"); ok {
		t.Error("key still present after Remove")
	}
}

func TestSQLiteStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	_ = s.Set("notebook-selected-sources-n1", `["a"]`)
	s.Close()

	s2, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, ok, _ := s2.Get("notebook-selected-sources-n1")
	if !ok || got != `["a"]` {
		t.Errorf("after reopen got %q ok=%v", got, ok)
	}
}

func TestSQLiteStore_Keys(t *testing.T) {
	s := tempSQLite(t)
	_ = s.Set("notebook-selected-sources-a", "[]")
	_ = s.Set("notebook-selected-sources-b", "[]")
	_ = s.Set("accessToken", "x")

	keys, err := s.Keys("notebook-selected-sources-")
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("keys = %v, want 2 selection keys", keys)
	}
}

func TestMemoryStoreAndNop(t *testing.T) {
	m := NewMemoryStore()
	_ = m.Set("k", "v")
	if v, ok, _ := m.Get("k"); !ok || v != "v" {
		t.Errorf("MemoryStore Get = %q %v", v, ok)
	}
	_ = m.Remove("k")
	if _, ok, _ := m.Get("k"); ok {
		t.Error("MemoryStore key survived Remove")
	}

	var n Nop
	_ = n.Set("k", "v")
	if _, ok, _ := n.Get("k"); ok {
		t.Error("Nop should never report a stored key")
	}
}
