package reading

import "strings"

const (
	// DefaultConfidenceThreshold is the recognizer confidence below which a
	// reading is treated as a hesitation rather than judged word by word.
	DefaultConfidenceThreshold = 0.7
	// DefaultSimilarityThreshold is the sentence similarity below which a
	// session-level closeness check considers a reading far off target.
	DefaultSimilarityThreshold = 0.8
)

// Option is a functional option for configuring an [Engine].
type Option func(*Engine)

// WithConfidenceThreshold overrides the default recognizer confidence
// threshold. Values outside [0, 1] are ignored.
func WithConfidenceThreshold(v float64) Option {
	return func(e *Engine) {
		if v >= 0 && v <= 1 {
			e.confidenceThreshold = v
		}
	}
}

// WithSimilarityThreshold overrides the default sentence similarity
// threshold. Values outside [0, 1] are ignored.
func WithSimilarityThreshold(v float64) Option {
	return func(e *Engine) {
		if v >= 0 && v <= 1 {
			e.similarityThreshold = v
		}
	}
}

// WithStrictMode enables diacritic-level checking for Arabic by default.
// Individual requests can still override it per call.
func WithStrictMode(on bool) Option {
	return func(e *Engine) {
		e.strictMode = on
	}
}

// Engine evaluates readings against expected sentences. It holds the default
// thresholds and strict-mode setting; every field can be overridden per
// request. Engine is stateless apart from its configuration and safe for
// concurrent use.
type Engine struct {
	confidenceThreshold float64
	similarityThreshold float64
	strictMode          bool
}

// NewEngine constructs an [Engine] with the supplied options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		confidenceThreshold: DefaultConfidenceThreshold,
		similarityThreshold: DefaultSimilarityThreshold,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// SimilarityThreshold returns the configured sentence similarity threshold.
func (e *Engine) SimilarityThreshold() float64 {
	return e.similarityThreshold
}

// Request carries one reading to evaluate. Expected is the sentence the
// reader should have said and Transcript what the recognizer heard.
//
// Confidence is the recognizer's overall confidence, when it reports one;
// WordConfidences are per-word scores aligned with the transcript's words.
// Language forces a script instead of detecting it from Expected. StrictMode
// and ConfidenceThreshold override the engine defaults for this request only.
// IncludeMetadata asks for the metadata fields of the result (confidence
// score, matched ratio and the diacritic warning) to be populated; without it
// they are withheld.
type Request struct {
	Expected            string
	Transcript          string
	Confidence          *float64
	WordConfidences     []float64
	Language            Language
	StrictMode          *bool
	ConfidenceThreshold *float64
	IncludeMetadata     bool
}

// Evaluate classifies a single reading.
//
// The decision runs in a fixed order. A recognizer confidence below the
// threshold, or a transcript with no words at all, is a hesitation before any
// text is compared. An exact match after normalization is a success, except
// that Arabic strict mode first re-checks word by word with diacritics and
// reports the first diacritic-only deviation as a mispronunciation. Anything
// else is aligned word against word and the first differing operation decides
// the outcome: a missing word is a skip; a substituted word is a hesitation
// when its own recognizer confidence is below the threshold and a
// mispronunciation otherwise; an inserted word is a mispronunciation charged
// to the expected word it displaced.
func (e *Engine) Evaluate(req Request) Result {
	lang := req.Language
	if !lang.IsValid() {
		lang = DetectLanguage(req.Expected)
	}
	threshold := e.confidenceThreshold
	if req.ConfidenceThreshold != nil {
		threshold = *req.ConfidenceThreshold
	}
	strict := e.strictMode
	if req.StrictMode != nil {
		strict = *req.StrictMode
	}

	var res Result
	switch {
	case req.Confidence != nil && *req.Confidence < threshold:
		res = Result{Feedback: FeedbackHesitation, Language: lang}
	case strings.TrimSpace(req.Transcript) == "":
		res = Result{Feedback: FeedbackHesitation, Language: lang}
	case lang == Arabic:
		res = e.checkArabic(req.Expected, req.Transcript, req.WordConfidences, threshold, strict)
	default:
		res = e.checkEnglish(req.Expected, req.Transcript, req.WordConfidences, threshold)
	}

	res.Language = lang
	if req.IncludeMetadata {
		res.ConfidenceScore = req.Confidence
	} else {
		res.MatchedRatio = nil
		res.DiacriticWarning = false
		res.WarningIndex = nil
		res.WarningWord = nil
	}
	return res
}

// checkEnglish compares Latin-script text after lowercasing and punctuation
// removal.
func (e *Engine) checkEnglish(expected, transcript string, wordConfs []float64, threshold float64) Result {
	expectedClean := NormalizeEnglish(expected)
	transcriptClean := NormalizeEnglish(transcript)
	if expectedClean == transcriptClean {
		return successResult()
	}
	return e.firstError(
		Tokens(expected, English),
		strings.Fields(transcriptClean),
		wordConfs,
		threshold,
	)
}

// checkArabic compares Arabic text after diacritic removal and variant
// folding. In strict mode an otherwise correct reading is additionally
// re-checked word by word with diacritics intact.
func (e *Engine) checkArabic(expected, transcript string, wordConfs []float64, threshold float64, strict bool) Result {
	expectedClean := NormalizeArabic(expected)
	transcriptClean := NormalizeArabic(transcript)

	if expectedClean == transcriptClean {
		if strict {
			expectedWords := strings.Fields(expected)
			transcriptWords := strings.Fields(transcript)
			n := min(len(expectedWords), len(transcriptWords))
			for i := 0; i < n; i++ {
				base, exact := CompareDiacritics(expectedWords[i], transcriptWords[i])
				if base && !exact {
					res := errorResult(i, expectedWords[i], FeedbackMispronounce, 1.0)
					res.DiacriticWarning = true
					res.WarningIndex = res.ErrorIndex
					res.WarningWord = res.ErrorWord
					return res
				}
			}
		}
		return successResult()
	}

	return e.firstError(
		Tokens(expected, Arabic),
		strings.Fields(transcriptClean),
		wordConfs,
		threshold,
	)
}

// firstError aligns the spoken words against the expected tokens and turns
// the first non-equal operation into a result. The alignment covers both
// sequences, so for unequal input there is always such an operation unless
// the expected side normalized to nothing; that degenerate case counts as a
// success.
func (e *Engine) firstError(expected []Token, spoken []string, wordConfs []float64, threshold float64) Result {
	expectedWords := make([]string, len(expected))
	for i, t := range expected {
		expectedWords[i] = t.Normalized
	}
	al := NewAligner(expectedWords, spoken)
	ratio := al.Ratio()

	display := func(i int) string {
		if i >= 0 && i < len(expected) {
			return expected[i].Original
		}
		return ""
	}

	for _, op := range al.Opcodes() {
		switch op.Tag {
		case OpDelete:
			return errorResult(op.I1, display(op.I1), FeedbackSkip, ratio)
		case OpReplace:
			if op.J1 < len(wordConfs) && wordConfs[op.J1] < threshold {
				return errorResult(op.I1, display(op.I1), FeedbackHesitation, ratio)
			}
			return errorResult(op.I1, display(op.I1), FeedbackMispronounce, ratio)
		case OpInsert:
			// Extra words at the very end are charged to the last
			// expected word.
			i := op.I1
			if i >= len(expected) {
				i = len(expected) - 1
			}
			if i >= 0 {
				return errorResult(i, display(i), FeedbackMispronounce, ratio)
			}
		}
	}
	return successResult()
}

func successResult() Result {
	ratio := 1.0
	return Result{
		IsCorrect:    true,
		Feedback:     FeedbackSuccess,
		MatchedRatio: &ratio,
	}
}

func errorResult(index int, word string, fb Feedback, ratio float64) Result {
	return Result{
		Feedback:     fb,
		ErrorIndex:   &index,
		ErrorWord:    &word,
		MatchedRatio: &ratio,
	}
}
