// Package speech defines the speech-to-text provider abstraction used to
// turn recorded readings into transcripts. Implementations live in
// subpackages; the service can also accept ready-made transcripts and skip
// this layer entirely.
package speech

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by [Provider.Transcribe] when the backing
// service is not reachable or not configured.
var ErrUnavailable = errors.New("speech: provider unavailable")

// Request carries one audio clip to transcribe.
//
// Language is a BCP 47 code hint ("en", "ar"); empty lets the provider
// detect it. Prompt optionally carries the sentence the reader was expected
// to say, which providers may use to bias recognition toward the right
// vocabulary.
type Request struct {
	Audio    []byte
	MimeType string
	Language string
	Prompt   string
}

// Transcription is the result of transcribing one audio clip.
//
// Confidence is the recognizer's overall confidence in [0, 1] when the
// backend reports one; nil otherwise. WordConfidences, when present, align
// with the whitespace-separated words of Text.
type Transcription struct {
	Text            string
	Confidence      *float64
	WordConfidences []float64
	Language        string
	Provider        string
}

// Provider transcribes recorded audio. Implementations must be safe for
// concurrent use.
type Provider interface {
	// Transcribe converts audio into text.
	Transcribe(ctx context.Context, req Request) (*Transcription, error)
	// Available reports whether the provider is ready to serve requests.
	Available(ctx context.Context) bool
	// Name returns the provider's registry name.
	Name() string
}
