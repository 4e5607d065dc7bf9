package pidfile_test

import (
	"os"
	"testing"

	"github.com/outloud-dev/outloud/internal/pidfile"
)

func TestWriteAndClear(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	pidfile.Write("speech", 4242)
	b, err := os.ReadFile(pidfile.Path("speech"))
	if err != nil {
		t.Fatalf("record not written: %v", err)
	}
	if string(b) != "4242" {
		t.Errorf("record = %q, want 4242", b)
	}

	pidfile.Clear("speech", 4242)
	if _, err := os.Stat(pidfile.Path("speech")); !os.IsNotExist(err) {
		t.Error("matching Clear should remove the record")
	}
}

func TestClear_LeavesNewerRecord(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	pidfile.Write("speech", 100)
	pidfile.Write("speech", 200)

	// The first writer exits and clears with its own pid; the newer record
	// must survive.
	pidfile.Clear("speech", 100)

	b, err := os.ReadFile(pidfile.Path("speech"))
	if err != nil || string(b) != "200" {
		t.Errorf("record = %q (err %v), want 200 to survive", b, err)
	}
}

func TestKill_MissingRecord(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	pidfile.Kill("speech") // must be a safe no-op
}

func TestKill_NeverKillsCurrentProcess(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	pidfile.Write("speech", os.Getpid())
	pidfile.Kill("speech")

	// Still running, and the stale self-record is gone.
	if _, err := os.Stat(pidfile.Path("speech")); !os.IsNotExist(err) {
		t.Error("self-record should be dropped")
	}
}

func TestKill_GarbageRecordIgnored(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	pidfile.Write("speech", 77)
	if err := os.WriteFile(pidfile.Path("speech"), []byte("not a pid"), 0o644); err != nil {
		t.Fatal(err)
	}
	pidfile.Kill("speech") // must not panic or kill anything
}
