package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/outloud-dev/outloud/internal/config"
	"github.com/outloud-dev/outloud/internal/credentials"
	"github.com/outloud-dev/outloud/internal/dispatch"
	"github.com/outloud-dev/outloud/pkg/provider/tts"
	"github.com/outloud-dev/outloud/pkg/provider/tts/mock"
)

// memStore is an in-memory FingerprintStore.
type memStore struct {
	m map[string]string
}

func (s *memStore) Get(sessionID string) (string, bool, error) {
	v, ok := s.m[sessionID]
	return v, ok, nil
}

func (s *memStore) Put(sessionID, fingerprint string) error {
	if s.m == nil {
		s.m = make(map[string]string)
	}
	s.m[sessionID] = fingerprint
	return nil
}

func assistantText(text string) string {
	return fmt.Sprintf(`{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":%q}]}}`, text)
}

func writeTranscript(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// fixture wires a dispatcher over mock providers with delays disabled. The
// cloud provider is registered as "cloud"; the baseline under its real name.
type fixture struct {
	cfg      *config.Config
	cloud    *mock.Provider
	baseline *mock.Provider
	store    *memStore
}

func newFixture(cfg *config.Config) *fixture {
	return &fixture{
		cfg:      cfg,
		cloud:    &mock.Provider{ProviderName: "cloud"},
		baseline: &mock.Provider{ProviderName: tts.BaselineName},
		store:    &memStore{},
	}
}

func (f *fixture) dispatcher() *dispatch.Dispatcher {
	reg := config.NewRegistry()
	reg.Register(tts.BaselineName, func(config.ProviderEntry, credentials.Store) (tts.Provider, error) {
		return f.baseline, nil
	})
	reg.Register("cloud", func(config.ProviderEntry, credentials.Store) (tts.Provider, error) {
		return f.cloud, nil
	})
	return dispatch.New(f.cfg, reg, credentials.Static{}, f.store, dispatch.WithDelays(0, 0))
}

func (f *fixture) run(t *testing.T, path string) {
	t.Helper()
	f.dispatcher().Run(context.Background(), dispatch.Trigger{
		SessionID:      "sess-1",
		TranscriptPath: path,
	})
}

func TestRun_SpeaksLastAssistantText(t *testing.T) {
	t.Parallel()
	f := newFixture(&config.Config{Voice: "daniel", Rate: 1.2})
	path := writeTranscript(t,
		assistantText("Working on it."),
		assistantText("All done, the tests pass."),
	)

	f.run(t, path)

	spoken := f.baseline.Spoken()
	if len(spoken) != 1 || spoken[0] != "All done, the tests pass." {
		t.Fatalf("spoken = %q, want the last assistant text once", spoken)
	}
	opts := f.baseline.SpeakCalls[0].Opts
	if opts.Voice != "daniel" || opts.Rate != 1.2 {
		t.Errorf("opts = %+v, want configured voice and rate", opts)
	}
	if _, ok, _ := f.store.Get("sess-1"); !ok {
		t.Error("fingerprint should be persisted after speaking")
	}
}

func TestRun_DisabledDoesNothing(t *testing.T) {
	t.Parallel()
	off := false
	f := newFixture(&config.Config{Enabled: &off})
	path := writeTranscript(t, assistantText("hello"))

	f.run(t, path)

	if len(f.baseline.SpeakCalls) != 0 {
		t.Errorf("disabled config must not speak, got %q", f.baseline.Spoken())
	}
	if len(f.store.m) != 0 {
		t.Error("disabled cycle must not touch the dedup store")
	}
}

func TestRun_SecondCycleDeduped(t *testing.T) {
	t.Parallel()
	f := newFixture(&config.Config{})
	path := writeTranscript(t, assistantText("same thing"))

	f.run(t, path)
	f.run(t, path)

	if n := len(f.baseline.SpeakCalls); n != 1 {
		t.Errorf("identical content spoken %d times, want 1", n)
	}
}

func TestRun_ChangedContentSpeaksAgain(t *testing.T) {
	t.Parallel()
	f := newFixture(&config.Config{})

	f.run(t, writeTranscript(t, assistantText("first answer")))
	f.run(t, writeTranscript(t, assistantText("second answer")))

	want := []string{"first answer", "second answer"}
	got := f.baseline.Spoken()
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("spoken = %q, want %q", got, want)
	}
}

func TestRun_ToolUsePendingDefers(t *testing.T) {
	t.Parallel()
	f := newFixture(&config.Config{})
	path := writeTranscript(t,
		`{"type":"assistant","message":{"role":"assistant","content":[`+
			`{"type":"text","text":"Let me check."},`+
			`{"type":"tool_use","name":"read_file"}]}}`,
	)

	f.run(t, path)

	if len(f.baseline.SpeakCalls) != 0 {
		t.Errorf("pending tool use must defer speech, got %q", f.baseline.Spoken())
	}
	if len(f.store.m) != 0 {
		t.Error("deferred cycle must not persist a fingerprint")
	}
}

func TestRun_MissingTranscript(t *testing.T) {
	t.Parallel()
	f := newFixture(&config.Config{})

	f.run(t, filepath.Join(t.TempDir(), "absent.jsonl"))

	if len(f.baseline.SpeakCalls) != 0 {
		t.Errorf("missing transcript must not speak, got %q", f.baseline.Spoken())
	}
}

func TestRun_EmptyAfterNormalize(t *testing.T) {
	t.Parallel()
	f := newFixture(&config.Config{})
	path := writeTranscript(t, assistantText("   \n\t  "))

	f.run(t, path)

	if len(f.baseline.SpeakCalls) != 0 {
		t.Errorf("whitespace-only content must not speak, got %q", f.baseline.Spoken())
	}
}

func TestRun_ProbeFailureFallsBack(t *testing.T) {
	t.Parallel()
	f := newFixture(&config.Config{Provider: "cloud"})
	f.cloud.ProbeErr = errors.New("401 unauthorized")
	path := writeTranscript(t, assistantText("fallback please"))

	f.run(t, path)

	if len(f.cloud.SpeakCalls) != 0 {
		t.Errorf("unavailable provider must not speak, got %q", f.cloud.Spoken())
	}
	if spoken := f.baseline.Spoken(); len(spoken) != 1 || spoken[0] != "fallback please" {
		t.Errorf("baseline spoken = %q, want the text exactly once", spoken)
	}
}

func TestRun_SpeakFailureFallsBackOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(&config.Config{Provider: "cloud"})
	f.cloud.SpeakErr = errors.New("stream reset")
	path := writeTranscript(t, assistantText("try me"))

	f.run(t, path)

	if n := len(f.cloud.SpeakCalls); n != 1 {
		t.Errorf("selected provider spoken %d times, want exactly 1", n)
	}
	if n := len(f.baseline.SpeakCalls); n != 1 {
		t.Errorf("baseline spoken %d times, want exactly 1", n)
	}
}

func TestRun_BaselineFailureNotRetried(t *testing.T) {
	t.Parallel()
	f := newFixture(&config.Config{})
	f.baseline.SpeakErr = errors.New("espeak missing")
	path := writeTranscript(t, assistantText("no retry"))

	f.run(t, path)

	if n := len(f.baseline.SpeakCalls); n != 1 {
		t.Errorf("baseline spoken %d times after failure, want 1", n)
	}
	if _, ok, _ := f.store.Get("sess-1"); !ok {
		t.Error("fingerprint must be persisted before the speak attempt")
	}
}

func TestRun_FallbackFailureSwallowed(t *testing.T) {
	t.Parallel()
	f := newFixture(&config.Config{Provider: "cloud"})
	f.cloud.SpeakErr = errors.New("stream reset")
	f.baseline.SpeakErr = errors.New("espeak missing")
	path := writeTranscript(t, assistantText("both broken"))

	// Must complete without panicking; both failures are logged only.
	f.run(t, path)

	if n := len(f.baseline.SpeakCalls); n != 1 {
		t.Errorf("baseline spoken %d times, want exactly 1", n)
	}
}

func TestRun_UnknownProviderFallsBack(t *testing.T) {
	t.Parallel()
	f := newFixture(&config.Config{Provider: "clodu"})
	path := writeTranscript(t, assistantText("typo in config"))

	f.run(t, path)

	if spoken := f.baseline.Spoken(); len(spoken) != 1 {
		t.Errorf("baseline spoken = %q, want the text once", spoken)
	}
}

func TestRun_NormalizesMarkdown(t *testing.T) {
	t.Parallel()
	f := newFixture(&config.Config{})
	path := writeTranscript(t, assistantText("Here's the fix: ```go\nfmt.Println(1)\n```"))

	f.run(t, path)

	spoken := f.baseline.Spoken()
	if len(spoken) != 1 || spoken[0] != "Here's the fix: code block omitted" {
		t.Errorf("spoken = %q, want code replaced by placeholder", spoken)
	}
}

func TestSpeakText(t *testing.T) {
	t.Parallel()
	f := newFixture(&config.Config{})

	if err := f.dispatcher().SpeakText(context.Background(), "**hello** world"); err != nil {
		t.Fatal(err)
	}
	if spoken := f.baseline.Spoken(); len(spoken) != 1 || spoken[0] != "hello world" {
		t.Errorf("spoken = %q, want markdown stripped", spoken)
	}
}

func TestSpeakText_EmptyInput(t *testing.T) {
	t.Parallel()
	f := newFixture(&config.Config{})

	if err := f.dispatcher().SpeakText(context.Background(), "   "); err != nil {
		t.Fatal(err)
	}
	if len(f.baseline.SpeakCalls) != 0 {
		t.Errorf("empty input must not speak, got %q", f.baseline.Spoken())
	}
}
