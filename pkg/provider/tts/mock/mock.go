// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to script probe/speak outcomes and to verify which text and
// options reach a backend during dispatch tests.
//
// Example:
//
//	p := &mock.Provider{ProviderName: "cloud", SpeakErr: errors.New("boom")}
//	err := p.Speak(ctx, "hello", tts.SpeakOptions{})
package mock

import (
	"context"
	"sync"

	"github.com/outloud-dev/outloud/pkg/provider/tts"
)

// SpeakCall records a single invocation of Speak.
type SpeakCall struct {
	// Text is the utterance passed to Speak.
	Text string
	// Opts are the options passed to Speak.
	Opts tts.SpeakOptions
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// ProviderName is returned by Name. Defaults to "mock" when empty.
	ProviderName string

	// ProbeErr, if non-nil, is returned by Probe.
	ProbeErr error

	// SpeakErr, if non-nil, is returned by Speak.
	SpeakErr error

	// CancelErr, if non-nil, is returned by Cancel.
	CancelErr error

	// --- Call records ---

	// SpeakCalls records every call to Speak in order.
	SpeakCalls []SpeakCall

	// ProbeCount is the number of Probe invocations.
	ProbeCount int

	// CancelCount is the number of Cancel invocations.
	CancelCount int
}

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Name implements tts.Provider.
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// Probe implements tts.Provider.
func (p *Provider) Probe(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ProbeCount++
	return p.ProbeErr
}

// Speak implements tts.Provider.
func (p *Provider) Speak(_ context.Context, text string, opts tts.SpeakOptions) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SpeakCalls = append(p.SpeakCalls, SpeakCall{Text: text, Opts: opts})
	return p.SpeakErr
}

// Cancel implements tts.Provider.
func (p *Provider) Cancel(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CancelCount++
	return p.CancelErr
}

// Spoken returns a copy of all texts passed to Speak so far.
func (p *Provider) Spoken() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.SpeakCalls))
	for i, c := range p.SpeakCalls {
		out[i] = c.Text
	}
	return out
}
