package session

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/qirat-ai/qirat/internal/reading"
)

// closeness measures how near the transcript came to the expected sentence
// as Jaro-Winkler similarity of the normalized forms, in [0, 1].
func closeness(expected, transcript string, lang reading.Language) float64 {
	return matchr.JaroWinkler(
		reading.Normalize(expected, lang),
		reading.Normalize(transcript, lang),
		false,
	)
}

// soundsAlike reports whether any spoken word shares a Double Metaphone code
// with the misread word. Metaphone only models English phonetics, so Arabic
// readings never match.
func soundsAlike(errorWord, transcript string, lang reading.Language) bool {
	if lang != reading.English || errorWord == "" {
		return false
	}
	wantPrimary, wantSecondary := matchr.DoubleMetaphone(errorWord)
	if wantPrimary == "" {
		return false
	}
	for _, spoken := range strings.Fields(reading.NormalizeEnglish(transcript)) {
		if spoken == errorWord {
			continue
		}
		primary, secondary := matchr.DoubleMetaphone(spoken)
		if primary == wantPrimary ||
			(secondary != "" && secondary == wantSecondary) {
			return true
		}
	}
	return false
}
