package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/qirat-ai/qirat/internal/reading"
	"github.com/qirat-ai/qirat/pkg/speech"
)

// checkRequest is the body of POST /api/v1/reading/check. Exactly one of
// Transcript and Audio must carry the reading; Audio requires a configured
// speech provider and is transcribed with the expected sentence as prompt.
type checkRequest struct {
	ExpectedSentence    string    `json:"expected_sentence"`
	Transcript          string    `json:"transcript,omitempty"`
	Audio               []byte    `json:"audio,omitempty"`
	AudioMimeType       string    `json:"audio_mime_type,omitempty"`
	Confidence          *float64  `json:"confidence,omitempty"`
	WordConfidences     []float64 `json:"word_confidences,omitempty"`
	Language            string    `json:"language,omitempty"`
	StrictMode          *bool     `json:"strict_mode,omitempty"`
	ConfidenceThreshold *float64  `json:"confidence_threshold,omitempty"`
	IncludeMetadata     bool      `json:"include_metadata,omitempty"`
}

// validate checks field bounds. It does not resolve the audio path; that
// needs the server's provider and happens in the handler.
func (c *checkRequest) validate() error {
	var errs []error

	if strings.TrimSpace(c.ExpectedSentence) == "" {
		errs = append(errs, errors.New("expected_sentence must not be empty"))
	}
	if utf8.RuneCountInString(c.ExpectedSentence) > maxSentenceRunes {
		errs = append(errs, fmt.Errorf("expected_sentence exceeds %d characters", maxSentenceRunes))
	}
	if utf8.RuneCountInString(c.Transcript) > maxSentenceRunes {
		errs = append(errs, fmt.Errorf("transcript exceeds %d characters", maxSentenceRunes))
	}
	if c.Confidence != nil && (*c.Confidence < 0 || *c.Confidence > 1) {
		errs = append(errs, errors.New("confidence must be within [0, 1]"))
	}
	for i, wc := range c.WordConfidences {
		if wc < 0 || wc > 1 {
			errs = append(errs, fmt.Errorf("word_confidences[%d] must be within [0, 1]", i))
			break
		}
	}
	if c.ConfidenceThreshold != nil && (*c.ConfidenceThreshold < 0 || *c.ConfidenceThreshold > 1) {
		errs = append(errs, errors.New("confidence_threshold must be within [0, 1]"))
	}
	if c.Language != "" && !reading.Language(c.Language).IsValid() {
		errs = append(errs, fmt.Errorf("language must be one of %q, %q", reading.English, reading.Arabic))
	}

	return errors.Join(errs...)
}

// handleCheck classifies a single reading.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	if len(req.Audio) > 0 {
		if !s.resolveAudio(w, r, &req) {
			return
		}
	}

	res := s.evaluate(r, req)
	writeJSON(w, http.StatusOK, res)
}

// evaluate runs the engine on one validated request and records metrics.
func (s *Server) evaluate(r *http.Request, req checkRequest) reading.Result {
	if req.Language == "" {
		req.Language = string(s.defaultLang)
	}

	start := time.Now()
	res := s.engine.Evaluate(reading.Request{
		Expected:            req.ExpectedSentence,
		Transcript:          req.Transcript,
		Confidence:          req.Confidence,
		WordConfidences:     req.WordConfidences,
		Language:            reading.Language(req.Language),
		StrictMode:          req.StrictMode,
		ConfidenceThreshold: req.ConfidenceThreshold,
		IncludeMetadata:     req.IncludeMetadata,
	})

	ctx := r.Context()
	s.metrics.CheckDuration.Record(ctx, time.Since(start).Seconds())
	s.metrics.RecordReadingCheck(ctx, string(res.Language), string(res.Feedback))
	return res
}

// resolveAudio transcribes req.Audio in place, filling Transcript and any
// confidence values the recognizer reported. It writes the error response
// itself and reports whether the request may proceed.
func (s *Server) resolveAudio(w http.ResponseWriter, r *http.Request, req *checkRequest) bool {
	if s.speech == nil {
		writeError(w, http.StatusBadRequest, "audio supplied but no speech provider is configured")
		return false
	}
	if req.Transcript != "" {
		writeError(w, http.StatusBadRequest, "supply either transcript or audio, not both")
		return false
	}

	lang := req.Language
	if lang == "" {
		lang = string(s.defaultLang)
	}
	if lang == "" {
		lang = string(reading.DetectLanguage(req.ExpectedSentence))
	}

	tr, err := s.transcribe(r, speech.Request{
		Audio:    req.Audio,
		MimeType: req.AudioMimeType,
		Language: lang,
		Prompt:   req.ExpectedSentence,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, "transcription failed: %v", err)
		return false
	}

	req.Transcript = tr.Text
	if req.Confidence == nil {
		req.Confidence = tr.Confidence
	}
	if len(req.WordConfidences) == 0 {
		req.WordConfidences = tr.WordConfidences
	}
	return true
}

// transcribe runs the configured speech provider, recording latency and
// failure metrics.
func (s *Server) transcribe(r *http.Request, sreq speech.Request) (*speech.Transcription, error) {
	ctx := r.Context()
	start := time.Now()
	tr, err := s.speech.Transcribe(ctx, sreq)
	s.metrics.TranscribeDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordSpeechError(ctx, s.speech.Name())
		s.logger.LogAttrs(ctx, slog.LevelError, "transcription failed",
			slog.String("provider", s.speech.Name()),
			slog.String("err", err.Error()))
		return nil, err
	}
	return tr, nil
}

// batchCheckRequest is the body of POST /api/v1/reading/check-batch. Items
// must carry transcripts; the audio path is only available on the
// single-check route.
type batchCheckRequest struct {
	Items []checkRequest `json:"items"`
}

// batchCheckResponse aggregates the per-item results. Accuracy is the share
// of correct readings in percent.
type batchCheckResponse struct {
	Results  []reading.Result `json:"results"`
	Total    int              `json:"total"`
	Correct  int              `json:"correct"`
	Accuracy float64          `json:"accuracy"`
}

// handleCheckBatch classifies up to [maxBatchItems] readings concurrently.
func (s *Server) handleCheckBatch(w http.ResponseWriter, r *http.Request) {
	var req batchCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "items must not be empty")
		return
	}
	if len(req.Items) > maxBatchItems {
		writeError(w, http.StatusBadRequest, "items exceeds the limit of %d", maxBatchItems)
		return
	}
	for i, item := range req.Items {
		if len(item.Audio) > 0 {
			writeError(w, http.StatusBadRequest, "items[%d]: audio is not accepted in batch checks", i)
			return
		}
		if err := item.validate(); err != nil {
			writeError(w, http.StatusBadRequest, "items[%d]: %v", i, err)
			return
		}
	}

	results := make([]reading.Result, len(req.Items))
	g, _ := errgroup.WithContext(r.Context())
	g.SetLimit(maxBatchConcurrency)
	for i, item := range req.Items {
		g.Go(func() error {
			results[i] = s.evaluate(r, item)
			return nil
		})
	}
	// The workers only classify; no error can surface here.
	_ = g.Wait()

	resp := batchCheckResponse{Results: results, Total: len(results)}
	for _, res := range results {
		if res.IsCorrect {
			resp.Correct++
		}
	}
	resp.Accuracy = float64(resp.Correct) / float64(resp.Total) * 100

	writeJSON(w, http.StatusOK, resp)
}
