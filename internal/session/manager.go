package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/qirat-ai/qirat/internal/reading"
	"github.com/qirat-ai/qirat/internal/store"
)

const (
	// DefaultTTL is how long an idle session is kept before expiring.
	DefaultTTL = time.Hour
	// DefaultMaxSentences caps how many sentences a single story may
	// contain.
	DefaultMaxSentences = 1000

	keyPrefix = "session:"
)

// Option is a functional option for configuring a [Manager].
type Option func(*Manager)

// WithTTL sets the session expiry. Every successful check refreshes it.
// Default: one hour.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithMaxSentences caps the number of sentences accepted per story.
// Default: 1000.
func WithMaxSentences(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxSentences = n
		}
	}
}

// WithLogger sets the logger. Default: [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Manager creates, advances and summarizes reading sessions on top of a
// [store.Store]. It is safe for concurrent use; concurrent checks against
// the same session follow last-writer-wins semantics, matching the
// one-reader-per-session usage model.
type Manager struct {
	store        store.Store
	engine       *reading.Engine
	ttl          time.Duration
	maxSentences int
	logger       *slog.Logger
}

// NewManager constructs a [Manager] using st for persistence and engine for
// sentence checking.
func NewManager(st store.Store, engine *reading.Engine, opts ...Option) *Manager {
	m := &Manager{
		store:        st,
		engine:       engine,
		ttl:          DefaultTTL,
		maxSentences: DefaultMaxSentences,
		logger:       slog.Default(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// StartParams configures a new session. Language empty means detect from the
// story text.
type StartParams struct {
	StoryText  string
	Language   reading.Language
	StrictMode bool
}

// Start splits the story into sentences and persists a fresh session.
func (m *Manager) Start(ctx context.Context, params StartParams) (*Session, error) {
	sentences := SplitSentences(params.StoryText)
	if len(sentences) == 0 {
		return nil, ErrEmptyStory
	}
	if len(sentences) > m.maxSentences {
		return nil, fmt.Errorf("%w: %d > %d", ErrStoryTooLong, len(sentences), m.maxSentences)
	}

	lang := params.Language
	if !lang.IsValid() {
		lang = reading.DetectLanguage(params.StoryText)
	}

	sess := &Session{
		ID:             uuid.NewString(),
		StoryText:      params.StoryText,
		Sentences:      sentences,
		Language:       lang,
		StrictMode:     params.StrictMode,
		Errors:         []ReadingError{},
		TotalSentences: len(sentences),
		CreatedAt:      time.Now().UTC(),
	}
	if err := m.save(ctx, sess); err != nil {
		return nil, err
	}

	m.logger.LogAttrs(ctx, slog.LevelInfo, "session started",
		slog.String("session_id", sess.ID),
		slog.String("language", string(lang)),
		slog.Int("sentences", sess.TotalSentences),
	)
	return sess, nil
}

// Get loads a session by ID.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := m.store.Get(ctx, keyPrefix+id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session: load %s: %w", id, err)
	}
	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", id, err)
	}
	return &sess, nil
}

// CheckParams carries one reading attempt against the session's current
// sentence.
type CheckParams struct {
	Transcript      string
	Confidence      *float64
	WordConfidences []float64
	IncludeMetadata bool
}

// CheckSentence evaluates the transcript against the session's current
// sentence. A correct reading advances the session; any other outcome keeps
// the position and records a [ReadingError]. Either way the session TTL is
// refreshed and the updated state persisted.
func (m *Manager) CheckSentence(ctx context.Context, id string, params CheckParams) (*CheckResult, error) {
	sess, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Complete() {
		return nil, ErrCompleted
	}

	index := sess.CurrentIndex
	sentence := sess.Sentences[index]
	res := m.engine.Evaluate(reading.Request{
		Expected:        sentence,
		Transcript:      params.Transcript,
		Confidence:      params.Confidence,
		WordConfidences: params.WordConfidences,
		Language:        sess.Language,
		StrictMode:      &sess.StrictMode,
		IncludeMetadata: params.IncludeMetadata,
	})

	if res.IsCorrect {
		sess.CurrentIndex++
	} else {
		re := ReadingError{
			SentenceIndex: index,
			Sentence:      sentence,
			Feedback:      res.Feedback,
			Similarity:    closeness(sentence, params.Transcript, sess.Language),
		}
		if res.ErrorWord != nil {
			re.ErrorWord = *res.ErrorWord
			re.SoundAlike = soundsAlike(*res.ErrorWord, params.Transcript, sess.Language)
		}
		sess.Errors = append(sess.Errors, re)
	}

	if err := m.save(ctx, sess); err != nil {
		return nil, err
	}

	out := &CheckResult{
		SessionID:     sess.ID,
		SentenceIndex: index,
		Sentence:      sentence,
		Result:        res,
		Progress:      sess.Progress(),
		IsComplete:    sess.Complete(),
	}
	if !sess.Complete() && res.IsCorrect {
		next := sess.Sentences[sess.CurrentIndex]
		out.NextSentence = &next
	}
	return out, nil
}

// Summarize computes the session's summary so far.
func (m *Manager) Summarize(ctx context.Context, id string) (*Summary, error) {
	sess, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	completed := sess.CurrentIndex
	accuracy := 0.0
	if completed > 0 {
		accuracy = float64(completed-len(sess.Errors)) / float64(completed) * 100
		if accuracy < 0 {
			accuracy = 0
		}
	}
	return &Summary{
		SessionID:          sess.ID,
		TotalSentences:     sess.TotalSentences,
		CompletedSentences: completed,
		ErrorCount:         len(sess.Errors),
		Accuracy:           accuracy,
		Errors:             sess.Errors,
		IsComplete:         sess.Complete(),
	}, nil
}

// Delete removes a session. Returns [ErrNotFound] when it does not exist.
func (m *Manager) Delete(ctx context.Context, id string) error {
	deleted, err := m.store.Delete(ctx, keyPrefix+id)
	if err != nil {
		return fmt.Errorf("session: delete %s: %w", id, err)
	}
	if !deleted {
		return ErrNotFound
	}
	m.logger.LogAttrs(ctx, slog.LevelInfo, "session deleted",
		slog.String("session_id", id),
	)
	return nil
}

// ActiveIDs returns the IDs of all live sessions.
func (m *Manager) ActiveIDs(ctx context.Context) ([]string, error) {
	keys, err := m.store.Keys(ctx, keyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, keyPrefix))
	}
	return ids, nil
}

func (m *Manager) save(ctx context.Context, sess *Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", sess.ID, err)
	}
	if err := m.store.Set(ctx, keyPrefix+sess.ID, raw, m.ttl); err != nil {
		return fmt.Errorf("session: save %s: %w", sess.ID, err)
	}
	return nil
}
