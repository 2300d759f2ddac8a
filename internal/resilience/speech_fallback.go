package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/qirat-ai/qirat/pkg/speech"
)

// ErrAllFailed is returned by [SpeechFallback.Transcribe] when every backend
// failed or had an open circuit breaker.
var ErrAllFailed = errors.New("all speech backends failed")

// FallbackConfig configures a [SpeechFallback]. Each backend gets its own
// breaker built from Breaker; the Name field is overridden with the backend's
// provider name.
type FallbackConfig struct {
	Breaker BreakerConfig
}

// backend pairs a transcription provider with its dedicated breaker.
type backend struct {
	name     string
	provider speech.Provider
	breaker  *CircuitBreaker
}

// SpeechFallback implements [speech.Provider] with automatic failover across
// multiple transcription backends. Backends are tried in registration order,
// primary first; a backend whose breaker is open is skipped without a call,
// so a recognizer that keeps timing out stops delaying reading checks until
// it recovers.
type SpeechFallback struct {
	backends []backend
	cfg      FallbackConfig
}

// Compile-time interface assertion.
var _ speech.Provider = (*SpeechFallback)(nil)

// NewSpeechFallback creates a [SpeechFallback] with primary as the preferred
// backend.
func NewSpeechFallback(primary speech.Provider, cfg FallbackConfig) *SpeechFallback {
	f := &SpeechFallback{cfg: cfg}
	f.add(primary)
	return f
}

// AddFallback registers an additional transcription provider. Fallbacks are
// tried in the order they are added, after the primary.
func (f *SpeechFallback) AddFallback(provider speech.Provider) {
	f.add(provider)
}

func (f *SpeechFallback) add(provider speech.Provider) {
	cbCfg := f.cfg.Breaker
	cbCfg.Name = provider.Name()
	f.backends = append(f.backends, backend{
		name:     provider.Name(),
		provider: provider,
		breaker:  NewCircuitBreaker(cbCfg),
	})
}

// Transcribe runs the request against the first healthy backend. If the
// primary fails or its circuit is open, subsequent fallbacks are tried in
// order; [ErrAllFailed] wraps the last error when none succeeds.
func (f *SpeechFallback) Transcribe(ctx context.Context, req speech.Request) (*speech.Transcription, error) {
	var lastErr error
	for i := range f.backends {
		b := &f.backends[i]
		var tr *speech.Transcription
		err := b.breaker.Execute(func() error {
			var innerErr error
			tr, innerErr = b.provider.Transcribe(ctx, req)
			return innerErr
		})
		if err == nil {
			return tr, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping speech backend, circuit open", "backend", b.name)
		} else {
			slog.Warn("speech backend failed, trying next",
				"backend", b.name, "error", err)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// Available reports whether at least one backend is ready. Availability
// checks bypass the circuit breakers so that a readiness probe never affects
// failover state.
func (f *SpeechFallback) Available(ctx context.Context) bool {
	for i := range f.backends {
		if f.backends[i].provider.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns the primary backend's name. The transcription's Provider field
// still reports which backend actually produced it.
func (f *SpeechFallback) Name() string {
	return f.backends[0].name
}
