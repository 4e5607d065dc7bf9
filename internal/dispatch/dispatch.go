// Package dispatch runs a single speech cycle: transcript read, dedupe,
// normalization, provider selection, speak, and baseline fallback.
//
// A cycle is fire-and-forget. Every failure terminates locally in logging
// and a metric; Run never propagates errors back to the trigger.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/outloud-dev/outloud/internal/config"
	"github.com/outloud-dev/outloud/internal/credentials"
	"github.com/outloud-dev/outloud/internal/dedup"
	"github.com/outloud-dev/outloud/internal/observe"
	"github.com/outloud-dev/outloud/internal/speechtext"
	"github.com/outloud-dev/outloud/internal/transcript"
	"github.com/outloud-dev/outloud/pkg/provider/tts"
)

const (
	// defaultGraceDelay gives a concurrently-writing producer time to flush
	// the final transcript entry before the first read.
	defaultGraceDelay = 500 * time.Millisecond

	// defaultStabilityWait separates the two transcript reads. A changed
	// extraction between reads means the writer was still appending.
	defaultStabilityWait = 150 * time.Millisecond
)

// FingerprintStore persists at most one spoken-content fingerprint per
// session. *dedup.Store satisfies it.
type FingerprintStore interface {
	Get(sessionID string) (string, bool, error)
	Put(sessionID, fingerprint string) error
}

var _ FingerprintStore = (*dedup.Store)(nil)

// Trigger identifies the session whose transcript a cycle should consider.
type Trigger struct {
	SessionID      string
	TranscriptPath string
}

// Dispatcher ties the pipeline stages together. One Dispatcher serves one
// cycle; construct it from the configuration snapshot taken at trigger time.
type Dispatcher struct {
	cfg      *config.Config
	registry *config.Registry
	creds    credentials.Store
	store    FingerprintStore
	metrics  *observe.Metrics
	log      *slog.Logger

	graceDelay    time.Duration
	stabilityWait time.Duration
}

// Option customizes a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.log = log
	}
}

// WithMetrics sets the metric sink. Nil metrics record nothing.
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithDelays overrides the grace delay before the first transcript read and
// the wait before the stability re-read. Tests pass zero for both.
func WithDelays(grace, stability time.Duration) Option {
	return func(d *Dispatcher) {
		d.graceDelay = grace
		d.stabilityWait = stability
	}
}

// New creates a Dispatcher over the given collaborators.
func New(cfg *config.Config, registry *config.Registry, creds credentials.Store, store FingerprintStore, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:           cfg,
		registry:      registry,
		creds:         creds,
		store:         store,
		log:           slog.Default(),
		graceDelay:    defaultGraceDelay,
		stabilityWait: defaultStabilityWait,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes one dispatch cycle for the trigger. It blocks until speech
// finishes or the cycle terminates early, and never returns an error: the
// caller is a detached process with nobody to report to.
func (d *Dispatcher) Run(ctx context.Context, trig Trigger) {
	log := d.log.With("session", trig.SessionID)

	if !d.cfg.IsEnabled() {
		d.metrics.RecordCycle(ctx, "disabled")
		return
	}

	ext, ok, err := d.readStable(ctx, trig.TranscriptPath)
	if err != nil {
		log.Error("transcript read failed", "path", trig.TranscriptPath, "error", err)
		d.metrics.RecordCycle(ctx, "failed")
		return
	}
	if !ok || ext.Text == "" {
		log.Debug("no assistant text to speak", "path", trig.TranscriptPath)
		d.metrics.RecordCycle(ctx, "empty")
		return
	}
	if ext.ToolUsePending {
		log.Debug("tool use pending, deferring speech")
		d.metrics.RecordCycle(ctx, "deferred")
		return
	}

	fp := dedup.Fingerprint(ext.Text)
	if prev, found, err := d.store.Get(trig.SessionID); err != nil {
		log.Warn("dedup lookup failed, speaking anyway", "error", err)
	} else if found && prev == fp {
		log.Debug("content already spoken")
		d.metrics.RecordCycle(ctx, "deduped")
		return
	}
	// Persisted before speaking so a crash mid-speech cannot cause a repeat
	// on the next trigger.
	if err := d.store.Put(trig.SessionID, fp); err != nil {
		log.Warn("dedup write failed", "error", err)
	}

	text := d.normalize(ext.Text)
	if text == "" {
		log.Debug("nothing left after normalization")
		d.metrics.RecordCycle(ctx, "empty")
		return
	}

	if err := d.speak(ctx, log, text); err != nil {
		log.Error("speech failed", "error", err)
		d.metrics.RecordCycle(ctx, "failed")
		return
	}
	d.metrics.RecordCycle(ctx, "spoken")
}

// SpeakText pushes arbitrary text through normalization and the provider
// selection path, bypassing transcript reading and dedupe.
func (d *Dispatcher) SpeakText(ctx context.Context, text string) error {
	text = d.normalize(text)
	if text == "" {
		return nil
	}
	return d.speak(ctx, d.log, text)
}

func (d *Dispatcher) normalize(text string) string {
	out := speechtext.Normalize(text, speechtext.Options{
		ExcludeCodeBlocks: d.cfg.ExcludeCodeBlocks(),
		MaxLength:         d.cfg.Speech.MaxLength,
	})
	return strings.TrimSpace(out)
}

// readStable reads the transcript after the grace delay, then once more
// after a short wait. The second read wins: if the writer appended between
// reads, the later extraction is the one worth speaking.
func (d *Dispatcher) readStable(ctx context.Context, path string) (transcript.Extraction, bool, error) {
	wait(ctx, d.graceDelay)
	first, firstOK, err := transcript.ReadFile(path)
	if err != nil {
		return transcript.Extraction{}, false, err
	}

	wait(ctx, d.stabilityWait)
	second, secondOK, err := transcript.ReadFile(path)
	if err != nil {
		// The first read succeeded; use it rather than failing the cycle.
		d.log.Warn("transcript re-read failed", "path", path, "error", err)
		return first, firstOK, nil
	}
	if secondOK && second.Text != first.Text {
		d.log.Debug("transcript changed between reads, using later content")
	}
	if secondOK {
		return second, true, nil
	}
	return first, firstOK, nil
}

// speak selects the configured provider, probes it, and speaks. Probe or
// speak failures on a non-baseline provider fall back to the baseline voice;
// the baseline's own failure during fallback is logged and swallowed.
func (d *Dispatcher) speak(ctx context.Context, log *slog.Logger, text string) error {
	name := d.cfg.Provider
	if name == "" {
		name = tts.BaselineName
	}
	opts := tts.SpeakOptions{Voice: d.cfg.Voice, Rate: d.cfg.Rate}

	p, err := d.registry.Create(name, d.cfg, d.creds)
	if err == nil {
		err = p.Probe(ctx)
	}
	if err != nil {
		if name == tts.BaselineName {
			return fmt.Errorf("baseline provider unavailable: %w", err)
		}
		log.Warn("provider unavailable, using baseline", "provider", name, "error", err)
		d.metrics.RecordFallback(ctx, name)
		if err := d.speakBaseline(ctx, text, opts.Rate); err != nil {
			log.Error("baseline speech failed", "error", err)
		}
		return nil
	}

	start := time.Now()
	speakErr := p.Speak(ctx, text, opts)
	d.metrics.RecordSpeak(ctx, name, time.Since(start), speakErr)
	if speakErr == nil {
		return nil
	}
	if name == tts.BaselineName {
		return speakErr
	}

	log.Warn("speak failed, retrying via baseline", "provider", name, "error", speakErr)
	d.metrics.RecordFallback(ctx, name)
	if err := d.speakBaseline(ctx, text, opts.Rate); err != nil {
		log.Error("baseline speech failed", "error", err)
	}
	return nil
}

// speakBaseline speaks through the baseline provider. The configured voice
// targets the selected backend, so the baseline keeps its default voice and
// inherits only the rate.
func (d *Dispatcher) speakBaseline(ctx context.Context, text string, rate float64) error {
	p, err := d.registry.Create(tts.BaselineName, d.cfg, d.creds)
	if err != nil {
		return err
	}
	start := time.Now()
	err = p.Speak(ctx, text, tts.SpeakOptions{Rate: rate})
	d.metrics.RecordSpeak(ctx, tts.BaselineName, time.Since(start), err)
	return err
}

func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
