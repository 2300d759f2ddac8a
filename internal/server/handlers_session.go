package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/qirat-ai/qirat/internal/reading"
	"github.com/qirat-ai/qirat/internal/session"
	"github.com/qirat-ai/qirat/pkg/speech"
)

// startSessionRequest is the body of POST /api/v1/sessions/start.
type startSessionRequest struct {
	StoryText  string `json:"story_text"`
	Language   string `json:"language,omitempty"`
	StrictMode bool   `json:"strict_mode,omitempty"`
}

// startSessionResponse announces a fresh session and its first sentence.
type startSessionResponse struct {
	SessionID       string           `json:"session_id"`
	TotalSentences  int              `json:"total_sentences"`
	Language        reading.Language `json:"language"`
	StrictMode      bool             `json:"strict_mode,omitempty"`
	CurrentSentence string           `json:"current_sentence"`
}

// handleSessionStart splits a story into sentences and opens a session.
func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if strings.TrimSpace(req.StoryText) == "" {
		writeError(w, http.StatusBadRequest, "story_text must not be empty")
		return
	}
	if req.Language != "" && !reading.Language(req.Language).IsValid() {
		writeError(w, http.StatusBadRequest, "language must be one of %q, %q", reading.English, reading.Arabic)
		return
	}

	lang := reading.Language(req.Language)
	if lang == "" {
		lang = s.defaultLang
	}

	sess, err := s.sessions.Start(r.Context(), session.StartParams{
		StoryText:  req.StoryText,
		Language:   lang,
		StrictMode: req.StrictMode,
	})
	if err != nil {
		s.sessionError(w, r, err)
		return
	}

	s.metrics.RecordSessionStarted(r.Context(), string(sess.Language))
	s.metrics.ActiveSessions.Add(r.Context(), 1)

	writeJSON(w, http.StatusCreated, startSessionResponse{
		SessionID:       sess.ID,
		TotalSentences:  sess.TotalSentences,
		Language:        sess.Language,
		StrictMode:      sess.StrictMode,
		CurrentSentence: sess.Sentences[0],
	})
}

// sessionStateResponse is the body of GET /api/v1/sessions/{id}. It exposes
// the live position without the full story text.
type sessionStateResponse struct {
	SessionID       string                 `json:"session_id"`
	Language        reading.Language       `json:"language"`
	StrictMode      bool                   `json:"strict_mode,omitempty"`
	CurrentIndex    int                    `json:"current_index"`
	TotalSentences  int                    `json:"total_sentences"`
	CurrentSentence string                 `json:"current_sentence,omitempty"`
	Progress        float64                `json:"progress"`
	ErrorCount      int                    `json:"error_count"`
	IsComplete      bool                   `json:"is_complete"`
	Errors          []session.ReadingError `json:"errors,omitempty"`
}

// handleSessionGet reports the session's current position.
func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.sessionError(w, r, err)
		return
	}

	resp := sessionStateResponse{
		SessionID:      sess.ID,
		Language:       sess.Language,
		StrictMode:     sess.StrictMode,
		CurrentIndex:   sess.CurrentIndex,
		TotalSentences: sess.TotalSentences,
		Progress:       sess.Progress(),
		ErrorCount:     len(sess.Errors),
		IsComplete:     sess.Complete(),
		Errors:         sess.Errors,
	}
	if !sess.Complete() {
		resp.CurrentSentence = sess.Sentences[sess.CurrentIndex]
	}
	writeJSON(w, http.StatusOK, resp)
}

// checkSentenceRequest is the body of POST /api/v1/sessions/{id}/check-sentence.
// Like the single-check route, audio replaces the transcript when a speech
// provider is configured.
type checkSentenceRequest struct {
	Transcript      string    `json:"transcript,omitempty"`
	Audio           []byte    `json:"audio,omitempty"`
	AudioMimeType   string    `json:"audio_mime_type,omitempty"`
	Confidence      *float64  `json:"confidence,omitempty"`
	WordConfidences []float64 `json:"word_confidences,omitempty"`
	IncludeMetadata bool      `json:"include_metadata,omitempty"`
}

func (c *checkSentenceRequest) validate() error {
	var errs []error
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
	return errors.Join(errs...)
}

// handleSessionCheck evaluates one reading attempt against the session's
// current sentence.
func (s *Server) handleSessionCheck(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req checkSentenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	if len(req.Audio) > 0 {
		if s.speech == nil {
			writeError(w, http.StatusBadRequest, "audio supplied but no speech provider is configured")
			return
		}
		if req.Transcript != "" {
			writeError(w, http.StatusBadRequest, "supply either transcript or audio, not both")
			return
		}

		// The current sentence primes the recognizer.
		sess, err := s.sessions.Get(r.Context(), id)
		if err != nil {
			s.sessionError(w, r, err)
			return
		}
		if sess.Complete() {
			s.sessionError(w, r, session.ErrCompleted)
			return
		}

		tr, err := s.transcribe(r, speech.Request{
			Audio:    req.Audio,
			MimeType: req.AudioMimeType,
			Language: string(sess.Language),
			Prompt:   sess.Sentences[sess.CurrentIndex],
		})
		if err != nil {
			writeError(w, http.StatusBadGateway, "transcription failed: %v", err)
			return
		}
		req.Transcript = tr.Text
		if req.Confidence == nil {
			req.Confidence = tr.Confidence
		}
		if len(req.WordConfidences) == 0 {
			req.WordConfidences = tr.WordConfidences
		}
	}

	res, err := s.sessions.CheckSentence(r.Context(), id, session.CheckParams{
		Transcript:      req.Transcript,
		Confidence:      req.Confidence,
		WordConfidences: req.WordConfidences,
		IncludeMetadata: req.IncludeMetadata,
	})
	if err != nil {
		s.sessionError(w, r, err)
		return
	}

	s.metrics.RecordReadingCheck(r.Context(), string(res.Result.Language), string(res.Result.Feedback))
	if res.IsComplete {
		s.metrics.SessionsCompleted.Add(r.Context(), 1)
	}

	writeJSON(w, http.StatusOK, res)
}

// handleSessionSummary reports progress, accuracy and the recorded errors.
func (s *Server) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.sessions.Summarize(r.Context(), r.PathValue("id"))
	if err != nil {
		s.sessionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleSessionDelete removes a session.
func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.sessionError(w, r, err)
		return
	}
	s.metrics.ActiveSessions.Add(r.Context(), -1)
	w.WriteHeader(http.StatusNoContent)
}

// sessionError maps session manager errors onto HTTP statuses.
func (s *Server) sessionError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrCompleted):
		writeError(w, http.StatusConflict, "session is already complete")
	case errors.Is(err, session.ErrEmptyStory), errors.Is(err, session.ErrStoryTooLong):
		writeError(w, http.StatusBadRequest, "%v", err)
	default:
		s.logger.LogAttrs(r.Context(), slog.LevelError, "session operation failed",
			slog.String("err", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
