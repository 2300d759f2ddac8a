package reading_test

import (
	"testing"

	"github.com/qirat-ai/qirat/internal/reading"
)

func fptr(v float64) *float64 { return &v }
func bptr(v bool) *bool       { return &v }

// --- English ---

func TestEvaluateEnglish(t *testing.T) {
	t.Parallel()

	engine := reading.NewEngine()

	tests := []struct {
		name       string
		req        reading.Request
		wantOK     bool
		wantFb     reading.Feedback
		wantIndex  int
		wantWord   string
		wantNoPos  bool
		wantRatioT float64
		checkRatio bool
	}{
		{
			name:       "exact match modulo case and punctuation",
			req:        reading.Request{Expected: "The cat sat on the mat.", Transcript: "the cat sat on the mat", IncludeMetadata: true},
			wantOK:     true,
			wantFb:     reading.FeedbackSuccess,
			wantNoPos:  true,
			wantRatioT: 1.0,
			checkRatio: true,
		},
		{
			name:      "punctuation only difference",
			req:       reading.Request{Expected: "Hello, world!", Transcript: "Hello world"},
			wantOK:    true,
			wantFb:    reading.FeedbackSuccess,
			wantNoPos: true,
		},
		{
			name:      "substituted word is a mispronunciation",
			req:       reading.Request{Expected: "The cat sat on the mat.", Transcript: "the cat sat on the hat"},
			wantFb:    reading.FeedbackMispronounce,
			wantIndex: 5,
			wantWord:  "mat",
		},
		{
			name:      "missing word is a skip",
			req:       reading.Request{Expected: "The cat sat on the mat.", Transcript: "the cat on the mat"},
			wantFb:    reading.FeedbackSkip,
			wantIndex: 2,
			wantWord:  "sat",
		},
		{
			name:      "inserted word charged to the displaced position",
			req:       reading.Request{Expected: "The cat sat on the mat.", Transcript: "the very cat sat on the mat"},
			wantFb:    reading.FeedbackMispronounce,
			wantIndex: 1,
			wantWord:  "cat",
		},
		{
			name:      "trailing extra words charged to the last word",
			req:       reading.Request{Expected: "The cat sat.", Transcript: "the cat sat loudly"},
			wantFb:    reading.FeedbackMispronounce,
			wantIndex: 2,
			wantWord:  "sat",
		},
		{
			name: "low overall confidence short-circuits to hesitation",
			req: reading.Request{
				Expected:   "The cat sat on the mat.",
				Transcript: "the cat sat on the mat",
				Confidence: fptr(0.55),
			},
			wantFb:    reading.FeedbackHesitation,
			wantNoPos: true,
		},
		{
			name:      "blank transcript is a hesitation",
			req:       reading.Request{Expected: "The cat sat on the mat.", Transcript: "   "},
			wantFb:    reading.FeedbackHesitation,
			wantNoPos: true,
		},
		{
			name: "low word confidence on the differing word",
			req: reading.Request{
				Expected:        "The cat sat on the mat.",
				Transcript:      "the cat sat on the hat",
				WordConfidences: []float64{0.9, 0.9, 0.9, 0.9, 0.9, 0.4},
			},
			wantFb:    reading.FeedbackHesitation,
			wantIndex: 5,
			wantWord:  "mat",
		},
		{
			name: "per-request threshold override",
			req: reading.Request{
				Expected:            "The cat sat.",
				Transcript:          "the cat sat",
				Confidence:          fptr(0.55),
				ConfidenceThreshold: fptr(0.5),
			},
			wantOK:    true,
			wantFb:    reading.FeedbackSuccess,
			wantNoPos: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := engine.Evaluate(tt.req)
			if res.IsCorrect != tt.wantOK {
				t.Errorf("IsCorrect=%v, want %v", res.IsCorrect, tt.wantOK)
			}
			if res.Feedback != tt.wantFb {
				t.Errorf("Feedback=%q, want %q", res.Feedback, tt.wantFb)
			}
			if res.Language != reading.English {
				t.Errorf("Language=%q, want %q", res.Language, reading.English)
			}
			if tt.wantNoPos {
				if res.ErrorIndex != nil || res.ErrorWord != nil {
					t.Errorf("error position set (%v, %v), want unset", res.ErrorIndex, res.ErrorWord)
				}
				return
			}
			if res.ErrorIndex == nil || res.ErrorWord == nil {
				t.Fatal("error position unset, want set")
			}
			if *res.ErrorIndex != tt.wantIndex {
				t.Errorf("ErrorIndex=%d, want %d", *res.ErrorIndex, tt.wantIndex)
			}
			if *res.ErrorWord != tt.wantWord {
				t.Errorf("ErrorWord=%q, want %q", *res.ErrorWord, tt.wantWord)
			}
			if tt.checkRatio {
				if res.MatchedRatio == nil || *res.MatchedRatio != tt.wantRatioT {
					t.Errorf("MatchedRatio=%v, want %v", res.MatchedRatio, tt.wantRatioT)
				}
			}
		})
	}
}

// --- Arabic ---

func TestEvaluateArabic(t *testing.T) {
	t.Parallel()

	engine := reading.NewEngine()

	t.Run("diacritic difference passes by default", func(t *testing.T) {
		t.Parallel()
		res := engine.Evaluate(reading.Request{
			Expected:   "ذَهَبَ الوَلَدُ",
			Transcript: "ذهب الولد",
		})
		if !res.IsCorrect || res.Feedback != reading.FeedbackSuccess {
			t.Errorf("got (%v, %q), want correct success", res.IsCorrect, res.Feedback)
		}
		if res.Language != reading.Arabic {
			t.Errorf("Language=%q, want %q", res.Language, reading.Arabic)
		}
		if res.DiacriticWarning {
			t.Error("DiacriticWarning=true, want false")
		}
	})

	t.Run("strict mode flags the first diacritic deviation", func(t *testing.T) {
		t.Parallel()
		res := engine.Evaluate(reading.Request{
			Expected:        "ذَهَبَ الوَلَدُ",
			Transcript:      "ذهب الولد",
			StrictMode:      bptr(true),
			IncludeMetadata: true,
		})
		if res.IsCorrect {
			t.Error("IsCorrect=true, want false")
		}
		if res.Feedback != reading.FeedbackMispronounce {
			t.Errorf("Feedback=%q, want %q", res.Feedback, reading.FeedbackMispronounce)
		}
		if !res.DiacriticWarning {
			t.Error("DiacriticWarning=false, want true")
		}
		if res.ErrorIndex == nil || *res.ErrorIndex != 0 {
			t.Errorf("ErrorIndex=%v, want 0", res.ErrorIndex)
		}
		if res.ErrorWord == nil || *res.ErrorWord != "ذَهَبَ" {
			t.Errorf("ErrorWord=%v, want the vocalized expected word", res.ErrorWord)
		}
		if res.WarningIndex == nil || *res.WarningIndex != 0 {
			t.Errorf("WarningIndex=%v, want 0", res.WarningIndex)
		}
	})

	t.Run("strict mode flags diacritics the expected text never had", func(t *testing.T) {
		t.Parallel()
		res := engine.Evaluate(reading.Request{
			Expected:        "القطة تلعب",
			Transcript:      "القِطَّةُ تَلْعَبُ",
			StrictMode:      bptr(true),
			IncludeMetadata: true,
		})
		if res.IsCorrect {
			t.Error("IsCorrect=true, want false")
		}
		if res.Feedback != reading.FeedbackMispronounce {
			t.Errorf("Feedback=%q, want %q", res.Feedback, reading.FeedbackMispronounce)
		}
		if !res.DiacriticWarning {
			t.Error("DiacriticWarning=false, want true")
		}
		if res.ErrorIndex == nil || *res.ErrorIndex != 0 {
			t.Errorf("ErrorIndex=%v, want 0", res.ErrorIndex)
		}
	})

	t.Run("strict mode ignores orthographic variant spellings", func(t *testing.T) {
		t.Parallel()
		res := engine.Evaluate(reading.Request{
			Expected:        "ذَهب الى المدرسة",
			Transcript:      "ذَهب الى المدرسه",
			StrictMode:      bptr(true),
			IncludeMetadata: true,
		})
		if !res.IsCorrect || res.Feedback != reading.FeedbackSuccess {
			t.Errorf("got (%v, %q), want correct success", res.IsCorrect, res.Feedback)
		}
		if res.DiacriticWarning {
			t.Error("DiacriticWarning=true, want false for a variant spelling")
		}
	})

	t.Run("strict mode passes an exact reading", func(t *testing.T) {
		t.Parallel()
		res := engine.Evaluate(reading.Request{
			Expected:   "ذَهَبَ الوَلَدُ",
			Transcript: "ذَهَبَ الوَلَدُ",
			StrictMode: bptr(true),
		})
		if !res.IsCorrect || res.Feedback != reading.FeedbackSuccess {
			t.Errorf("got (%v, %q), want correct success", res.IsCorrect, res.Feedback)
		}
	})

	t.Run("orthographic variants fold before comparison", func(t *testing.T) {
		t.Parallel()
		res := engine.Evaluate(reading.Request{
			Expected:   "ذهب أحمد إلى المدرسة",
			Transcript: "ذهب احمد الى المدرسه",
		})
		if !res.IsCorrect {
			t.Errorf("IsCorrect=false (%+v), want true", res)
		}
	})

	t.Run("substituted word reports the vocalized surface form", func(t *testing.T) {
		t.Parallel()
		res := engine.Evaluate(reading.Request{
			Expected:   "ذَهَبَ الوَلَدُ إِلى المَدرَسَةِ",
			Transcript: "ذهب الولد الي البيت",
		})
		if res.Feedback != reading.FeedbackMispronounce {
			t.Fatalf("Feedback=%q, want %q", res.Feedback, reading.FeedbackMispronounce)
		}
		if res.ErrorIndex == nil || *res.ErrorIndex != 3 {
			t.Errorf("ErrorIndex=%v, want 3", res.ErrorIndex)
		}
		if res.ErrorWord == nil || *res.ErrorWord != "المَدرَسَةِ" {
			t.Errorf("ErrorWord=%v, want %q", res.ErrorWord, "المَدرَسَةِ")
		}
	})
}

// --- Metadata and overrides ---

func TestEvaluateMetadata(t *testing.T) {
	t.Parallel()

	engine := reading.NewEngine()

	t.Run("confidence withheld without metadata", func(t *testing.T) {
		t.Parallel()
		res := engine.Evaluate(reading.Request{
			Expected:   "the cat",
			Transcript: "the cat",
			Confidence: fptr(0.92),
		})
		if res.ConfidenceScore != nil {
			t.Errorf("ConfidenceScore=%v, want nil", *res.ConfidenceScore)
		}
	})

	t.Run("confidence echoed with metadata", func(t *testing.T) {
		t.Parallel()
		res := engine.Evaluate(reading.Request{
			Expected:        "the cat",
			Transcript:      "the cat",
			Confidence:      fptr(0.92),
			IncludeMetadata: true,
		})
		if res.ConfidenceScore == nil || *res.ConfidenceScore != 0.92 {
			t.Errorf("ConfidenceScore=%v, want 0.92", res.ConfidenceScore)
		}
	})

	t.Run("matched ratio withheld without metadata", func(t *testing.T) {
		t.Parallel()
		res := engine.Evaluate(reading.Request{
			Expected:   "the cat sat",
			Transcript: "the cat sat",
		})
		if res.MatchedRatio != nil {
			t.Errorf("MatchedRatio=%v, want nil", *res.MatchedRatio)
		}
	})

	t.Run("diacritic warning withheld without metadata", func(t *testing.T) {
		t.Parallel()
		res := engine.Evaluate(reading.Request{
			Expected:   "ذَهَبَ الوَلَدُ",
			Transcript: "ذهب الولد",
			StrictMode: bptr(true),
		})
		if res.IsCorrect || res.Feedback != reading.FeedbackMispronounce {
			t.Fatalf("got (%v, %q), want strict-mode mispronounce", res.IsCorrect, res.Feedback)
		}
		if res.DiacriticWarning || res.WarningIndex != nil || res.WarningWord != nil {
			t.Errorf("warning fields set (%v, %v, %v), want withheld", res.DiacriticWarning, res.WarningIndex, res.WarningWord)
		}
		if res.MatchedRatio != nil {
			t.Errorf("MatchedRatio=%v, want nil", *res.MatchedRatio)
		}
	})

	t.Run("language override wins over detection", func(t *testing.T) {
		t.Parallel()
		res := engine.Evaluate(reading.Request{
			Expected:   "hello there",
			Transcript: "hello there",
			Language:   reading.English,
		})
		if res.Language != reading.English {
			t.Errorf("Language=%q, want %q", res.Language, reading.English)
		}
	})
}

func TestEngineOptions(t *testing.T) {
	t.Parallel()

	engine := reading.NewEngine(
		reading.WithConfidenceThreshold(0.5),
		reading.WithSimilarityThreshold(0.9),
		reading.WithStrictMode(true),
	)

	if got := engine.SimilarityThreshold(); got != 0.9 {
		t.Errorf("SimilarityThreshold()=%v, want 0.9", got)
	}

	// 0.55 clears the lowered threshold.
	res := engine.Evaluate(reading.Request{
		Expected:   "the cat",
		Transcript: "the cat",
		Confidence: fptr(0.55),
	})
	if !res.IsCorrect {
		t.Errorf("IsCorrect=false, want true with threshold 0.5")
	}

	// Strict mode default applies without a per-request override.
	res = engine.Evaluate(reading.Request{
		Expected:        "كَتَبَ الدَّرسَ",
		Transcript:      "كتب الدرس",
		IncludeMetadata: true,
	})
	if res.IsCorrect || !res.DiacriticWarning {
		t.Errorf("got (%v, warn=%v), want strict-mode diacritic warning", res.IsCorrect, res.DiacriticWarning)
	}

	// Out-of-range option values fall back to the defaults.
	fallback := reading.NewEngine(reading.WithConfidenceThreshold(1.5))
	res = fallback.Evaluate(reading.Request{
		Expected:   "the cat",
		Transcript: "the cat",
		Confidence: fptr(0.65),
	})
	if res.Feedback != reading.FeedbackHesitation {
		t.Errorf("Feedback=%q, want hesitation under default threshold", res.Feedback)
	}
}
