// Package session tracks a reader's progress through a multi-sentence story.
// A session splits the story into sentences, checks each reading in order,
// records the mistakes along the way and produces a final summary. State
// lives in a [store.Store], so sessions survive restarts when a persistent
// backend is configured.
package session

import (
	"errors"
	"time"

	"github.com/qirat-ai/qirat/internal/reading"
)

// ErrNotFound is returned when no session exists under the given ID, or its
// TTL has expired.
var ErrNotFound = errors.New("session: not found")

// ErrCompleted is returned by CheckSentence when every sentence of the
// session has already been read.
var ErrCompleted = errors.New("session: already completed")

// ErrStoryTooLong is returned by Start when the story splits into more
// sentences than the configured maximum.
var ErrStoryTooLong = errors.New("session: story has too many sentences")

// ErrEmptyStory is returned by Start when the story contains no sentences.
var ErrEmptyStory = errors.New("session: story has no sentences")

// Session is the persisted state of one reading exercise.
type Session struct {
	ID             string           `json:"session_id"`
	StoryText      string           `json:"story_text"`
	Sentences      []string         `json:"sentences"`
	CurrentIndex   int              `json:"current_index"`
	Language       reading.Language `json:"language"`
	StrictMode     bool             `json:"strict_mode"`
	Errors         []ReadingError   `json:"errors"`
	TotalSentences int              `json:"total_sentences"`
	CreatedAt      time.Time        `json:"created_at"`
}

// Complete reports whether every sentence has been read correctly.
func (s *Session) Complete() bool {
	return s.CurrentIndex >= s.TotalSentences
}

// Progress returns the share of completed sentences as a percentage.
func (s *Session) Progress() float64 {
	if s.TotalSentences == 0 {
		return 100
	}
	return float64(s.CurrentIndex) / float64(s.TotalSentences) * 100
}

// ReadingError records one failed reading attempt within a session.
//
// Similarity is the Jaro-Winkler closeness of the normalized transcript to
// the normalized expected sentence, which a summary can use to tell near
// misses from unrelated speech. SoundAlike is set for Latin-script readings
// whose error word shares a Double Metaphone code with one of the spoken
// words, a strong hint the reader said a homophone.
type ReadingError struct {
	SentenceIndex int              `json:"sentence_index"`
	Sentence      string           `json:"sentence"`
	Feedback      reading.Feedback `json:"feedback_type"`
	ErrorWord     string           `json:"error_word,omitempty"`
	Similarity    float64          `json:"similarity"`
	SoundAlike    bool             `json:"sound_alike,omitempty"`
}

// CheckResult is the outcome of checking one sentence within a session.
type CheckResult struct {
	SessionID     string         `json:"session_id"`
	SentenceIndex int            `json:"sentence_index"`
	Sentence      string         `json:"sentence"`
	Result        reading.Result `json:"result"`
	Progress      float64        `json:"progress"`
	IsComplete    bool           `json:"is_complete"`
	NextSentence  *string        `json:"next_sentence,omitempty"`
}

// Summary aggregates a session's outcome.
//
// Accuracy is the share of completed sentences that were read without any
// recorded error, in percent, never below zero.
type Summary struct {
	SessionID          string         `json:"session_id"`
	TotalSentences     int            `json:"total_sentences"`
	CompletedSentences int            `json:"completed_sentences"`
	ErrorCount         int            `json:"error_count"`
	Accuracy           float64        `json:"accuracy"`
	Errors             []ReadingError `json:"errors"`
	IsComplete         bool           `json:"is_complete"`
}
