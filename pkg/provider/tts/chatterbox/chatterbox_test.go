package chatterbox

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/outloud-dev/outloud/pkg/provider/tts"
)

// newTestServer starts an httptest server and returns a Provider pointed at
// its port.
func newTestServer(t *testing.T, handler http.Handler) *Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	_, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)
	return New(WithPort(port), WithServerCommand("outloud-test-no-such-server"), WithConfigDir(t.TempDir()))
}

func TestProbe_HealthyServer(t *testing.T) {
	t.Parallel()
	p := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "model_loaded": true})
	}))

	if err := p.Probe(context.Background()); err != nil {
		t.Errorf("Probe against healthy server failed: %v", err)
	}
}

func TestProbe_NoServerNoCommand(t *testing.T) {
	t.Parallel()
	p := New(WithPort(1), WithServerCommand("outloud-test-no-such-server"), WithConfigDir(t.TempDir()))
	if err := p.Probe(context.Background()); err == nil {
		t.Error("Probe should fail when the server is down and the command is missing")
	}
}

func TestSpeak_ServerError(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	p := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "model exploded"})
	}))

	err := p.Speak(context.Background(), "hello", tts.SpeakOptions{})
	if err == nil {
		t.Fatal("Speak should surface a server error")
	}
}

func TestSpeak_MissingAudioPath(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	p := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"sample_rate": 24000, "chunks": 1})
	}))

	if err := p.Speak(context.Background(), "hello", tts.SpeakOptions{}); err == nil {
		t.Fatal("Speak should fail when the server returns no audio path")
	}
}

func TestSpeak_SendsChunkedRequest(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	var got speakRequest
	p := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		// Missing audio path aborts Speak before playback, which keeps the
		// test independent of local audio tooling.
		json.NewEncoder(w).Encode(map[string]any{})
	}))

	_ = p.Speak(context.Background(), "some text", tts.SpeakOptions{})
	if got.Text != "some text" {
		t.Errorf("server received text %q, want %q", got.Text, "some text")
	}
	if got.MaxChunkSize != maxChunkSize {
		t.Errorf("server received max_chunk_size %d, want %d", got.MaxChunkSize, maxChunkSize)
	}
}

func TestShutdown_PostsEndpoint(t *testing.T) {
	t.Parallel()
	var path, method string
	p := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, method = r.URL.Path, r.Method
		json.NewEncoder(w).Encode(map[string]string{"status": "shutting down"})
	}))

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if path != "/shutdown" || method != http.MethodPost {
		t.Errorf("Shutdown hit %s %s, want POST /shutdown", method, path)
	}
}
