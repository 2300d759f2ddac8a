// Package azure provides a speech provider backed by the Azure Speech
// short-audio REST API.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/qirat-ai/qirat/pkg/speech"
)

// defaultTimeout bounds a single recognition request. The short-audio API
// accepts clips up to 60 seconds, so recognition should comfortably finish
// within this.
const defaultTimeout = 30 * time.Second

// Ensure Provider implements the speech.Provider interface.
var _ speech.Provider = (*Provider)(nil)

// Provider implements speech.Provider using the Azure Speech REST API.
type Provider struct {
	key      string
	endpoint string
	client   *http.Client
}

// config holds optional configuration for the provider.
type config struct {
	endpoint string
	timeout  time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithEndpoint overrides the recognition endpoint derived from the region,
// for sovereign clouds or private endpoints.
func WithEndpoint(url string) Option {
	return func(c *config) {
		c.endpoint = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new Azure Provider for the given subscription key and
// service region (for example "westeurope").
func New(key, region string, opts ...Option) (*Provider, error) {
	if key == "" {
		return nil, fmt.Errorf("azure: key must not be empty")
	}
	if region == "" {
		return nil, fmt.Errorf("azure: region must not be empty")
	}

	cfg := &config{timeout: defaultTimeout}
	for _, o := range opts {
		o(cfg)
	}
	endpoint := cfg.endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf(
			"https://%s.stt.speech.microsoft.com/speech/recognition/conversation/cognitiveservices/v1",
			region,
		)
	}

	return &Provider{
		key:      key,
		endpoint: endpoint,
		client:   &http.Client{Timeout: cfg.timeout},
	}, nil
}

// recognitionResponse is the detailed-format response of the short-audio API.
type recognitionResponse struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	DisplayText       string `json:"DisplayText"`
	NBest             []struct {
		Confidence float64 `json:"Confidence"`
		Display    string  `json:"Display"`
		Words      []struct {
			Word       string  `json:"Word"`
			Confidence float64 `json:"Confidence"`
		} `json:"Words"`
	} `json:"NBest"`
}

// Transcribe implements speech.Provider.
func (p *Provider) Transcribe(ctx context.Context, req speech.Request) (*speech.Transcription, error) {
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("azure: empty audio")
	}

	lang := localeFor(req.Language)
	url := fmt.Sprintf("%s?language=%s&format=detailed", p.endpoint, lang)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(req.Audio))
	if err != nil {
		return nil, fmt.Errorf("azure: build request: %w", err)
	}
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	contentType := req.MimeType
	if contentType == "" {
		contentType = "audio/wav; codecs=audio/pcm; samplerate=16000"
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("azure: recognize: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("azure: recognize: status %d: %s", resp.StatusCode, body)
	}

	var rec recognitionResponse
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("azure: decode response: %w", err)
	}
	if rec.RecognitionStatus != "Success" {
		return nil, fmt.Errorf("azure: recognition status %q", rec.RecognitionStatus)
	}

	out := &speech.Transcription{
		Text:     rec.DisplayText,
		Language: req.Language,
		Provider: p.Name(),
	}
	if len(rec.NBest) > 0 {
		best := rec.NBest[0]
		out.Confidence = &best.Confidence
		if best.Display != "" {
			out.Text = best.Display
		}
		for _, w := range best.Words {
			out.WordConfidences = append(out.WordConfidences, w.Confidence)
		}
	}
	return out, nil
}

// Available reports whether the provider holds credentials. The REST API has
// no cheap unauthenticated probe, so reachability surfaces on first use.
func (p *Provider) Available(context.Context) bool {
	return p.key != ""
}

// Name returns "azure".
func (p *Provider) Name() string { return "azure" }

// localeFor widens the short language codes used elsewhere into the full
// locales the Azure API requires.
func localeFor(language string) string {
	switch language {
	case "ar":
		return "ar-SA"
	case "en", "":
		return "en-US"
	default:
		return language
	}
}
