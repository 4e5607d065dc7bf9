package config_test

import (
	"strings"
	"testing"

	"github.com/outloud-dev/outloud/internal/config"
)

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	err := config.Validate(&config.Config{LogLevel: "loud"})
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_RateOutOfRange(t *testing.T) {
	t.Parallel()
	for _, rate := range []float64{0.1, 3.0, -1} {
		if err := config.Validate(&config.Config{Rate: rate}); err == nil {
			t.Errorf("rate %v should be rejected", rate)
		}
	}
	for _, rate := range []float64{0, 0.5, 1.0, 2.0} {
		if err := config.Validate(&config.Config{Rate: rate}); err != nil {
			t.Errorf("rate %v should be accepted, got: %v", rate, err)
		}
	}
}

func TestValidate_JoinsAllFailures(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		LogLevel: "nope",
		Rate:     9,
		Speech:   config.SpeechConfig{MaxLength: -1},
	}
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected joined validation errors")
	}
	for _, want := range []string{"log_level", "rate", "max_length"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %s, got: %v", want, err)
		}
	}
}

func TestConfig_Defaults(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	if !cfg.IsEnabled() {
		t.Error("dispatch should default to enabled")
	}
	if !cfg.ExcludeCodeBlocks() {
		t.Error("code exclusion should default to on")
	}
}

func TestConfig_ExplicitDisable(t *testing.T) {
	t.Parallel()
	off := false
	cfg := &config.Config{Enabled: &off, Speech: config.SpeechConfig{ExcludeCodeBlocks: &off}}
	if cfg.IsEnabled() {
		t.Error("explicit enabled:false must win")
	}
	if cfg.ExcludeCodeBlocks() {
		t.Error("explicit exclude_code_blocks:false must win")
	}
}

func TestConfig_APIKeyOverrides(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Providers: map[string]config.ProviderEntry{
		"openai":     {APIKey: "sk-test"},
		"elevenlabs": {},
	}}
	got := cfg.APIKeyOverrides()
	if got["openai"] != "sk-test" {
		t.Errorf("openai override missing: %v", got)
	}
	if _, ok := got["elevenlabs"]; ok {
		t.Error("empty api_key must not produce an override")
	}
}
