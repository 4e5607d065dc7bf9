// Package pidfile records playback process IDs under the outloud config
// directory. Every dispatch cycle runs as its own detached process, and
// `outloud stop` runs in yet another one, so an in-memory process handle
// never covers audio started elsewhere. A record on disk lets a newer cycle
// or a stop command kill speech it did not start.
//
// All operations are best-effort: a missing or stale record is never an
// error, and killing is as reliable as the recorded PID still naming the
// right process.
package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Path returns the record path for name, or "" when no home directory can
// be resolved.
func Path(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "outloud", name+".pid")
}

// Write records pid under name, replacing any previous record.
func Write(name string, pid int) {
	path := Path(name)
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	_ = os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644)
}

// Clear removes name's record if it still holds pid. A record written by a
// newer process is left alone.
func Clear(name string, pid int) {
	path := Path(name)
	if path == "" {
		return
	}
	if recorded, ok := read(path); ok && recorded == pid {
		_ = os.Remove(path)
	}
}

// Kill terminates the process recorded under name and removes the record.
// The current process is never killed: a record naming it means the audio
// belongs to this process, and in-process cancellation already covers that.
func Kill(name string) {
	path := Path(name)
	if path == "" {
		return
	}
	pid, ok := read(path)
	if !ok {
		return
	}
	_ = os.Remove(path)
	if pid == os.Getpid() {
		return
	}
	if proc, err := os.FindProcess(pid); err == nil {
		_ = proc.Kill()
	}
}

func read(path string) (int, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
