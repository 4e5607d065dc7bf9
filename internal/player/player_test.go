package player

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/outloud-dev/outloud/internal/pidfile"
)

func TestFilePlayer_StopWithoutPlayback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	p := NewFilePlayer()
	p.Stop() // must be a safe no-op
	p.Stop()
}

// fakePlaybackBinary installs a fake playback command on PATH that sleeps
// long enough to be killed, and isolates HOME for the process records.
func fakePlaybackBinary(t *testing.T, name string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture")
	}
	t.Setenv("HOME", t.TempDir())

	dir := t.TempDir()
	script := "#!/bin/sh\nsleep 10\n"
	if err := os.WriteFile(filepath.Join(dir, name), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

// waitForRecord blocks until the named process record appears.
func waitForRecord(t *testing.T, name string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(pidfile.Path(name)); err == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("record %q never appeared", name)
}

func TestFilePlayer_StopKillsPlaybackFromOtherInstance(t *testing.T) {
	fakePlaybackBinary(t, "afplay")

	first := NewFilePlayer()
	done := make(chan error, 1)
	go func() {
		done <- first.PlayFile(context.Background(), "audio.wav")
	}()
	waitForRecord(t, "playback")

	// A fresh instance has no in-memory handle on the subprocess; it must
	// stop it through the on-disk record, the way a later dispatch cycle or
	// a stop command would.
	NewFilePlayer().Stop()

	select {
	case err := <-done:
		if err == nil {
			t.Error("killed playback should surface an error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("playback kept running after Stop from another instance")
	}
}

func TestChanReader_DrainsChunks(t *testing.T) {
	t.Parallel()
	ch := make(chan []byte, 3)
	ch <- []byte("abc")
	ch <- []byte("defg")
	close(ch)

	data, err := io.ReadAll(chunkReader(context.Background(), ch))
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "abcdefg" {
		t.Errorf("data = %q, want %q", data, "abcdefg")
	}
}

func TestChanReader_ContextCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan []byte)

	done := make(chan error, 1)
	go func() {
		_, err := chunkReader(ctx, ch).Read(make([]byte, 8))
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Read did not return after cancel")
	}
}

func TestChanReader_ShortReads(t *testing.T) {
	t.Parallel()
	ch := make(chan []byte, 1)
	ch <- []byte("0123456789")
	close(ch)

	r := chunkReader(context.Background(), ch)
	buf := make([]byte, 4)
	n, err := r.Read(buf)
	if err != nil || n != 4 {
		t.Fatalf("Read = (%d, %v), want (4, nil)", n, err)
	}
	if string(buf) != "0123" {
		t.Errorf("buf = %q, want %q", buf, "0123")
	}
}
