// Package whisper provides a speech provider backed by the OpenAI audio
// transcription API (Whisper and its successors).
package whisper

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/qirat-ai/qirat/pkg/speech"
)

// DefaultModel is the default OpenAI transcription model.
const DefaultModel = oai.AudioModelWhisper1

// Ensure Provider implements the speech.Provider interface.
var _ speech.Provider = (*Provider)(nil)

// Provider implements speech.Provider using the OpenAI audio API.
type Provider struct {
	client oai.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL, which also allows
// pointing the provider at a self-hosted Whisper server with an
// OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new Whisper Provider.
// If model is empty, DefaultModel (whisper-1) is used.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("whisper: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	client := oai.NewClient(reqOpts...)
	return &Provider{client: client, model: model}, nil
}

// Transcribe implements speech.Provider.
func (p *Provider) Transcribe(ctx context.Context, req speech.Request) (*speech.Transcription, error) {
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("whisper: empty audio")
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = "audio/wav"
	}

	params := oai.AudioTranscriptionNewParams{
		Model: p.model,
		File:  oai.File(bytes.NewReader(req.Audio), "audio"+extensionFor(mimeType), mimeType),
	}
	if req.Language != "" {
		params.Language = param.NewOpt(req.Language)
	}
	if req.Prompt != "" {
		params.Prompt = param.NewOpt(req.Prompt)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("whisper: transcribe: %w", err)
	}

	out := &speech.Transcription{
		Text:     resp.Text,
		Language: req.Language,
		Provider: p.Name(),
	}
	if conf, ok := confidenceFromLogprobs(resp.Logprobs); ok {
		out.Confidence = &conf
	}
	return out, nil
}

// Available probes the API by listing models. A failed probe means requests
// would not succeed either.
func (p *Provider) Available(ctx context.Context) bool {
	_, err := p.client.Models.List(ctx)
	return err == nil
}

// Name returns "whisper".
func (p *Provider) Name() string { return "whisper" }

// confidenceFromLogprobs derives an overall confidence as the geometric mean
// of the token probabilities. Models that do not emit logprobs yield no
// confidence at all, which downstream treats as "trust the transcript".
func confidenceFromLogprobs(logprobs []oai.TranscriptionLogprob) (float64, bool) {
	if len(logprobs) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, lp := range logprobs {
		sum += lp.Logprob
	}
	return math.Exp(sum / float64(len(logprobs))), true
}

// extensionFor maps common audio MIME types to a filename extension, which
// the API uses to sniff the container format.
func extensionFor(mimeType string) string {
	switch mimeType {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	case "audio/ogg":
		return ".ogg"
	case "audio/webm":
		return ".webm"
	case "audio/flac", "audio/x-flac":
		return ".flac"
	default:
		return ".wav"
	}
}
