// Package reading implements the spoken-reading classification core: given a
// sentence the reader was expected to say and the transcript of what a speech
// recognizer heard, it decides whether the reading was correct and, when it
// was not, pinpoints the first problematic word and the kind of problem.
//
// The package is script-aware. Latin-script text is compared after lowercasing
// and punctuation stripping; Arabic text is compared after diacritic removal
// and orthographic variant folding (see [NormalizeArabic]), with an optional
// strict mode that reports diacritic-only deviations.
package reading

// Language identifies the script family a comparison runs under.
type Language string

const (
	// English selects the Latin-script comparison rules. It is the fallback
	// for any text that does not contain Arabic characters.
	English Language = "en"
	// Arabic selects the Arabic-script comparison rules.
	Arabic Language = "ar"
)

// IsValid reports whether l is a recognized language code.
func (l Language) IsValid() bool {
	switch l {
	case English, Arabic:
		return true
	}
	return false
}

// Feedback classifies the outcome of a reading check.
type Feedback string

const (
	// FeedbackSuccess means the transcript matched the expected sentence.
	FeedbackSuccess Feedback = "success"
	// FeedbackMispronounce means a word was read as a different word, or an
	// unexpected word was inserted next to it.
	FeedbackMispronounce Feedback = "mispronounce"
	// FeedbackSkip means an expected word is missing from the transcript.
	FeedbackSkip Feedback = "skip"
	// FeedbackHesitation means the recognizer was not confident enough in
	// what it heard, either for the whole utterance or for the word that
	// differed, or the reader said nothing at all.
	FeedbackHesitation Feedback = "hesitation"
)

// Token is a single comparison unit of a sentence. Normalized is the form
// actually compared; Original preserves the surface form at the same position
// for display, which for Arabic keeps the diacritics the reader saw.
type Token struct {
	Original   string
	Normalized string
	Index      int
}

// Result is the outcome of a single reading check.
//
// ErrorIndex and ErrorWord are set together whenever Feedback is not
// [FeedbackSuccess], except for hesitations raised before any word comparison
// took place (low overall confidence or an empty transcript).
//
// ConfidenceScore, MatchedRatio, DiacriticWarning, WarningIndex and
// WarningWord are metadata: they are populated only when the caller asked for
// it. ConfidenceScore echoes the recognizer confidence. DiacriticWarning can
// only be true for Arabic strict mode; WarningIndex and WarningWord then
// mirror the error position.
type Result struct {
	IsCorrect        bool     `json:"is_correct"`
	Feedback         Feedback `json:"feedback_type"`
	Language         Language `json:"language"`
	ErrorIndex       *int     `json:"error_index,omitempty"`
	ErrorWord        *string  `json:"error_word,omitempty"`
	ConfidenceScore  *float64 `json:"confidence_score,omitempty"`
	MatchedRatio     *float64 `json:"matched_ratio,omitempty"`
	DiacriticWarning bool     `json:"diacritic_warning,omitempty"`
	WarningIndex     *int     `json:"warning_index,omitempty"`
	WarningWord      *string  `json:"warning_word,omitempty"`
}
