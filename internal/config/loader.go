package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidSpeechProviders lists known speech provider names.
// Used by [Validate] to warn about unrecognised names.
var ValidSpeechProviders = []string{"mock", "whisper", "azure"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Reading thresholds
	if t := cfg.Reading.ConfidenceThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("reading.confidence_threshold %.2f is out of range [0, 1]", t))
	}
	if t := cfg.Reading.SimilarityThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("reading.similarity_threshold %.2f is out of range [0, 1]", t))
	}
	if l := cfg.Reading.DefaultLanguage; l != "" && !l.IsValid() {
		errs = append(errs, fmt.Errorf("reading.default_language %q is invalid; valid values: en, ar", l))
	}

	// Session limits
	if cfg.Session.TTL < 0 {
		errs = append(errs, fmt.Errorf("session.ttl %s must not be negative", cfg.Session.TTL))
	}
	if cfg.Session.MaxSentences < 0 {
		errs = append(errs, fmt.Errorf("session.max_sentences %d must not be negative", cfg.Session.MaxSentences))
	}

	// Storage
	if b := cfg.Storage.Backend; b != "" && !b.IsValid() {
		errs = append(errs, fmt.Errorf("storage.backend %q is invalid; valid values: memory, redis, postgres", b))
	}
	switch cfg.Storage.Backend {
	case StorageRedis:
		if cfg.Storage.Redis.Addr == "" {
			errs = append(errs, errors.New("storage.redis.addr is required when backend is redis"))
		}
	case StoragePostgres:
		if cfg.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required when backend is postgres"))
		}
	case StorageMemory, "":
		// Memory sessions vanish on restart; worth a note in production logs.
		slog.Warn("storage.backend is memory; sessions will not survive restarts")
	}

	// Speech provider
	errs = append(errs, validateSpeech(cfg.Speech, "speech")...)
	for i, fb := range cfg.Speech.Fallbacks {
		prefix := fmt.Sprintf("speech.fallbacks[%d]", i)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if len(fb.Fallbacks) > 0 {
			errs = append(errs, fmt.Errorf("%s must not declare fallbacks of its own", prefix))
		}
		errs = append(errs, validateSpeech(fb, prefix)...)
	}
	if cfg.Speech.Name == "" {
		if len(cfg.Speech.Fallbacks) > 0 {
			errs = append(errs, errors.New("speech.name is required when fallbacks are configured"))
		}
		slog.Warn("no speech provider configured; audio uploads will be rejected, only transcripts are accepted")
	}

	return errors.Join(errs...)
}

// validateSpeech checks one provider entry. Unknown names are only warned
// about, they may be third-party registrations.
func validateSpeech(entry ProviderEntry, prefix string) []error {
	var errs []error

	if entry.Name != "" && !slices.Contains(ValidSpeechProviders, entry.Name) {
		slog.Warn("unknown speech provider name, may be a typo or a third-party provider",
			"name", entry.Name,
			"known", ValidSpeechProviders,
		)
	}
	if entry.Name == "whisper" && entry.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s.api_key is required for the whisper provider", prefix))
	}
	if entry.Name == "azure" {
		if entry.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s.api_key is required for the azure provider", prefix))
		}
		if entry.Region == "" && entry.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%s.region (or base_url) is required for the azure provider", prefix))
		}
	}

	return errs
}
