// Command outloud speaks completed assistant responses out loud. Installed
// as a post-response hook, it hands each completed response to a detached
// dispatch process that reads the transcript, dedupes, and speaks through
// the configured TTS backend with a local-voice fallback.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/outloud-dev/outloud/internal/config"
	"github.com/outloud-dev/outloud/internal/credentials"
	"github.com/outloud-dev/outloud/internal/dedup"
	"github.com/outloud-dev/outloud/internal/dispatch"
	"github.com/outloud-dev/outloud/internal/health"
	"github.com/outloud-dev/outloud/internal/hook"
	"github.com/outloud-dev/outloud/internal/observe"
	"github.com/outloud-dev/outloud/pkg/provider/tts"
	"github.com/outloud-dev/outloud/pkg/provider/tts/chatterbox"
	"github.com/outloud-dev/outloud/pkg/provider/tts/elevenlabs"
	openaitts "github.com/outloud-dev/outloud/pkg/provider/tts/openai"
	"github.com/outloud-dev/outloud/pkg/provider/tts/say"
)

const version = "0.3.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}

	switch cmd, rest := args[0], args[1:]; cmd {
	case "hook":
		return runHook(rest)
	case "dispatch":
		return runDispatch(rest)
	case "speak":
		return runSpeak(rest)
	case "stop":
		return runStop(rest)
	case "status":
		return runStatus(rest)
	case "version", "-v", "--version":
		fmt.Println("outloud", version)
		return 0
	case "help", "-h", "--help":
		usage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "outloud: unknown command %q\n\n", cmd)
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: outloud <command> [flags]

commands:
  hook      read a hook payload from stdin and spawn a detached dispatch
  dispatch  run one speech cycle for a session transcript
  speak     speak the given text (or stdin with "-") through the pipeline
  stop      cancel any in-flight speech across all backends
  status    probe every registered backend and report availability
  version   print the version
`)
}

// ── Shared setup ──────────────────────────────────────────────────────────────

// env bundles the per-invocation collaborators built from configuration.
type env struct {
	cfg   *config.Config
	creds credentials.Store
	reg   *config.Registry
}

// setup loads the layered configuration, installs the logger, and wires the
// provider registry. It never fails: a broken config degrades to defaults.
func setup() *env {
	wd, _ := os.Getwd()
	cfg := config.Load(wd)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel.Level(),
	}))
	slog.SetDefault(logger)

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	return &env{
		cfg:   cfg,
		creds: credentials.NewEnvStore(cfg.APIKeyOverrides()),
		reg:   reg,
	}
}

// checkers builds one availability check per registered backend.
func (e *env) checkers() []health.Checker {
	var checkers []health.Checker
	for _, name := range e.reg.Names() {
		checkers = append(checkers, health.Checker{
			Name: name,
			Check: func(ctx context.Context) error {
				p, err := e.reg.Create(name, e.cfg, e.creds)
				if err != nil {
					return err
				}
				return p.Probe(ctx)
			},
		})
	}
	return checkers
}

// registerBuiltinProviders wires all built-in TTS factories into reg. Cloud
// factories resolve their API key through the credential store and fail
// construction without one; the dispatcher treats that as an unavailable
// provider and falls back.
func registerBuiltinProviders(reg *config.Registry) {
	reg.Register(tts.BaselineName, func(config.ProviderEntry, credentials.Store) (tts.Provider, error) {
		return say.New(), nil
	})

	reg.Register("openai", func(entry config.ProviderEntry, creds credentials.Store) (tts.Provider, error) {
		key, ok := creds.Get("openai")
		if !ok {
			return nil, errors.New("openai: no API key configured")
		}
		var opts []openaitts.Option
		if entry.Model != "" {
			opts = append(opts, openaitts.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, openaitts.WithBaseURL(entry.BaseURL))
		}
		return openaitts.New(key, opts...)
	})

	reg.Register("elevenlabs", func(entry config.ProviderEntry, creds credentials.Store) (tts.Provider, error) {
		key, ok := creds.Get("elevenlabs")
		if !ok {
			return nil, errors.New("elevenlabs: no API key configured")
		}
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		return elevenlabs.New(key, opts...)
	})

	reg.Register("chatterbox", func(entry config.ProviderEntry, _ credentials.Store) (tts.Provider, error) {
		var opts []chatterbox.Option
		if entry.Port != 0 {
			opts = append(opts, chatterbox.WithPort(entry.Port))
		}
		if entry.Command != "" {
			opts = append(opts, chatterbox.WithServerCommand(entry.Command))
		}
		return chatterbox.New(opts...), nil
	})
}

// openDedup opens the per-session fingerprint store. A failure degrades to a
// store that remembers nothing, so speech still works without dedupe.
func openDedup() (dispatch.FingerprintStore, func()) {
	store, err := dedup.Open(dedup.DefaultDBPath())
	if err != nil {
		slog.Warn("dedup store unavailable, duplicates may be spoken", "error", err)
		return nullStore{}, func() {}
	}
	return store, func() { _ = store.Close() }
}

// nullStore is the degraded FingerprintStore used when SQLite cannot open.
type nullStore struct{}

func (nullStore) Get(string) (string, bool, error) { return "", false, nil }
func (nullStore) Put(string, string) error         { return nil }

// ── hook ──────────────────────────────────────────────────────────────────────

// runHook parses the payload from stdin and spawns the detached dispatch.
// It always exits 0: a hook failure must never surface into the editor.
func runHook(args []string) int {
	fs := flag.NewFlagSet("hook", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 0
	}

	payload, err := hook.ReadPayload(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "outloud: %v\n", err)
		return 0
	}
	if err := hook.Detach(payload); err != nil {
		fmt.Fprintf(os.Stderr, "outloud: %v\n", err)
	}
	return 0
}

// ── dispatch ──────────────────────────────────────────────────────────────────

// runDispatch runs one full pipeline cycle. Like hook, it is fire-and-forget
// and always exits 0; failures end in the log and the metrics.
func runDispatch(args []string) int {
	fs := flag.NewFlagSet("dispatch", flag.ContinueOnError)
	session := fs.String("session", "", "session identifier for dedup scoping")
	transcript := fs.String("transcript", "", "path to the session transcript")
	if err := fs.Parse(args); err != nil {
		return 0
	}
	if *transcript == "" {
		fmt.Fprintln(os.Stderr, "outloud: dispatch requires --transcript")
		return 0
	}

	e := setup()
	ctx := context.Background()

	shutdownMetrics, err := observe.InitProvider(version)
	if err != nil {
		slog.Warn("metrics init failed", "error", err)
	}
	if addr := e.cfg.MetricsAddr; addr != "" {
		srv := observe.ServeMetrics(addr, health.NewHandler(e.checkers()...).Readyz)
		defer srv.Close()
	}
	if shutdownMetrics != nil {
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutCtx)
		}()
	}

	store, closeStore := openDedup()
	defer closeStore()

	d := dispatch.New(e.cfg, e.reg, e.creds, store,
		dispatch.WithMetrics(observe.DefaultMetrics()),
	)
	d.Run(ctx, dispatch.Trigger{
		SessionID:      *session,
		TranscriptPath: *transcript,
	})
	return 0
}

// ── speak ─────────────────────────────────────────────────────────────────────

func runSpeak(args []string) int {
	fs := flag.NewFlagSet("speak", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var text string
	switch rest := fs.Args(); {
	case len(rest) == 1 && rest[0] == "-":
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "outloud: read stdin: %v\n", err)
			return 1
		}
		text = string(b)
	case len(rest) > 0:
		text = strings.Join(rest, " ")
	default:
		fmt.Fprintln(os.Stderr, `usage: outloud speak <text> | outloud speak -`)
		return 2
	}

	e := setup()
	d := dispatch.New(e.cfg, e.reg, e.creds, nullStore{},
		dispatch.WithDelays(0, 0),
	)
	if err := d.SpeakText(context.Background(), text); err != nil {
		fmt.Fprintf(os.Stderr, "outloud: %v\n", err)
		return 1
	}
	return 0
}

// ── stop ──────────────────────────────────────────────────────────────────────

// runStop cancels in-flight audio on every registered backend concurrently.
// With -servers it also shuts down backends that manage a local server.
func runStop(args []string) int {
	fs := flag.NewFlagSet("stop", flag.ContinueOnError)
	servers := fs.Bool("servers", false, "also shut down locally managed TTS servers")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	e := setup()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	for _, name := range e.reg.Names() {
		g.Go(func() error {
			p, err := e.reg.Create(name, e.cfg, e.creds)
			if err != nil {
				// Unconfigured backends have nothing playing.
				return nil
			}
			if err := p.Cancel(ctx); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			if *servers {
				if s, ok := p.(interface{ Shutdown(context.Context) error }); ok {
					if err := s.Shutdown(ctx); err != nil {
						slog.Warn("server shutdown failed", "provider", name, "error", err)
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "outloud: %v\n", err)
		return 1
	}
	return 0
}

// ── status ────────────────────────────────────────────────────────────────────

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	e := setup()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	report := health.Run(ctx, e.checkers())

	names := make([]string, 0, len(report))
	for name := range report {
		names = append(names, name)
	}
	sort.Strings(names)

	active := e.cfg.Provider
	if active == "" {
		active = tts.BaselineName
	}
	for _, name := range names {
		state := "ok"
		if err := report[name]; err != nil {
			state = err.Error()
		}
		marker := " "
		if name == active {
			marker = "*"
		}
		fmt.Printf("%s %-12s %s\n", marker, name, state)
	}

	if !report.Ready() {
		return 1
	}
	return 0
}
