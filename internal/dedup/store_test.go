package dedup_test

import (
	"path/filepath"
	"testing"

	"github.com/outloud-dev/outloud/internal/dedup"
)

func openStore(t *testing.T) *dedup.Store {
	t.Helper()
	s, err := dedup.Open(filepath.Join(t.TempDir(), "spoken.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_GetMissingSession(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	_, ok, err := s.Get("unknown")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("unknown session should have no fingerprint")
	}
}

func TestStore_PutOverwrites(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	if err := s.Put("sess-1", dedup.Fingerprint("first")); err != nil {
		t.Fatal(err)
	}
	if err := s.Put("sess-1", dedup.Fingerprint("second")); err != nil {
		t.Fatal(err)
	}

	fp, ok, err := s.Get("sess-1")
	if err != nil || !ok {
		t.Fatalf("Get = (%v, %v)", ok, err)
	}
	if fp != dedup.Fingerprint("second") {
		t.Error("Put should overwrite the previous fingerprint")
	}
}

func TestStore_SessionsAreIndependent(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	if err := s.Put("a", dedup.Fingerprint("text a")); err != nil {
		t.Fatal(err)
	}
	if err := s.Put("b", dedup.Fingerprint("text b")); err != nil {
		t.Fatal(err)
	}

	fpA, _, _ := s.Get("a")
	fpB, _, _ := s.Get("b")
	if fpA == fpB {
		t.Error("different sessions must not share fingerprints")
	}
}

func TestStore_SurvivesReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "spoken.db")

	s, err := dedup.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put("sess", dedup.Fingerprint("hello")); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s2, err := dedup.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	fp, ok, err := s2.Get("sess")
	if err != nil || !ok {
		t.Fatalf("Get after reopen = (%v, %v)", ok, err)
	}
	if fp != dedup.Fingerprint("hello") {
		t.Error("fingerprint should survive reopen; recent rows must not be evicted")
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	t.Parallel()
	if dedup.Fingerprint("same") != dedup.Fingerprint("same") {
		t.Error("Fingerprint must be deterministic")
	}
	if dedup.Fingerprint("one") == dedup.Fingerprint("two") {
		t.Error("different texts should not collide")
	}
}
