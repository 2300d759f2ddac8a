// Package mock provides a test double for the speech package interfaces.
//
// Use Provider to feed controlled transcriptions to callers and inspect the
// requests they made. Canned transcripts can be keyed by the request prompt
// so that different expected sentences yield different "recognized" text.
package mock

import (
	"context"
	"sync"

	"github.com/qirat-ai/qirat/pkg/speech"
)

// DefaultConfidence is the confidence attached to canned transcriptions that
// do not declare one.
const DefaultConfidence = 0.85

// TranscribeCall records a single invocation of Provider.Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Req is the request passed to Transcribe.
	Req speech.Request
}

// Provider is a mock implementation of speech.Provider.
type Provider struct {
	mu sync.Mutex

	// Transcripts maps a request prompt to the text returned for it. When a
	// prompt has no entry, the prompt itself is echoed back, which simulates
	// a perfect reading.
	Transcripts map[string]string

	// Confidence overrides DefaultConfidence when non-nil.
	Confidence *float64

	// TranscribeErr, if non-nil, is returned by every Transcribe call.
	TranscribeErr error

	// Unavailable makes Available report false.
	Unavailable bool

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall
}

// Ensure Provider implements speech.Provider at compile time.
var _ speech.Provider = (*Provider)(nil)

// Transcribe records the call and returns the canned transcription for
// req.Prompt.
func (p *Provider) Transcribe(ctx context.Context, req speech.Request) (*speech.Transcription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Req: req})
	if p.TranscribeErr != nil {
		return nil, p.TranscribeErr
	}
	text := req.Prompt
	if t, ok := p.Transcripts[req.Prompt]; ok {
		text = t
	}
	conf := DefaultConfidence
	if p.Confidence != nil {
		conf = *p.Confidence
	}
	return &speech.Transcription{
		Text:       text,
		Confidence: &conf,
		Language:   req.Language,
		Provider:   p.Name(),
	}, nil
}

// Available reports the configured availability.
func (p *Provider) Available(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.Unavailable
}

// Name returns "mock".
func (p *Provider) Name() string { return "mock" }

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TranscribeCalls = nil
}
