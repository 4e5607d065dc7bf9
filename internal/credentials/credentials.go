// Package credentials resolves provider API secrets. It is consulted only
// when a provider is constructed, never by the dispatch pipeline itself.
//
// Resolution order: an explicit override (from the loaded configuration),
// the provider's conventional environment variable, then the generic
// OUTLOUD_<PROVIDER>_API_KEY form. A .env file in the working directory is
// folded into the environment first, so project-local keys work without
// shell setup.
package credentials

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// providerEnvVars maps provider names to their conventional environment
// variables.
var providerEnvVars = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"elevenlabs": "ELEVENLABS_API_KEY",
}

// Store resolves a secret for a provider name. The second return is false
// when no secret is known.
type Store interface {
	Get(providerName string) (string, bool)
}

// EnvStore resolves secrets from the process environment, optionally
// seeded from a .env file and overridden per provider by configuration.
type EnvStore struct {
	overrides map[string]string
}

// NewEnvStore builds an EnvStore. overrides maps provider name → api key
// from the configuration file and wins over the environment. A .env file in
// the current directory is loaded best-effort; existing environment
// variables are never clobbered by it.
func NewEnvStore(overrides map[string]string) *EnvStore {
	_ = godotenv.Load()
	s := &EnvStore{overrides: make(map[string]string, len(overrides))}
	for name, key := range overrides {
		if key != "" {
			s.overrides[strings.ToLower(name)] = key
		}
	}
	return s
}

// Get implements Store.
func (s *EnvStore) Get(providerName string) (string, bool) {
	name := strings.ToLower(providerName)

	if key, ok := s.overrides[name]; ok {
		return key, true
	}
	if envVar, ok := providerEnvVars[name]; ok {
		if key := os.Getenv(envVar); key != "" {
			return key, true
		}
	}
	generic := "OUTLOUD_" + strings.ToUpper(name) + "_API_KEY"
	if key := os.Getenv(generic); key != "" {
		return key, true
	}
	return "", false
}

// Static is a fixed-map Store for tests and programmatic use.
type Static map[string]string

// Get implements Store.
func (s Static) Get(providerName string) (string, bool) {
	key, ok := s[strings.ToLower(providerName)]
	return key, ok && key != ""
}
