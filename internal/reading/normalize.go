package reading

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// tatweel is the Arabic elongation character. It carries no phonetic value
// and is stripped before any comparison.
const tatweel = "ـ"

// arabicFolder collapses common orthographic variants onto a canonical base
// letter so that spelling differences a reader cannot hear do not count as
// errors: hamza-carrying alif forms become bare alif, taa marbuta becomes
// haa, alif maqsura becomes yaa, and hamza seats on waw/yaa become their
// carrier. A standalone hamza is dropped entirely.
var arabicFolder = strings.NewReplacer(
	"أ", "ا", // أ -> ا
	"إ", "ا", // إ -> ا
	"آ", "ا", // آ -> ا
	"ٱ", "ا", // ٱ -> ا
	"ة", "ه", // ة -> ه
	"ى", "ي", // ى -> ي
	"ؤ", "و", // ؤ -> و
	"ئ", "ي", // ئ -> ي
	"ء", "", // ء removed
)

// latinStrip removes everything that is not a letter, digit, underscore or
// whitespace. This is deliberately Unicode-aware so accented Latin letters
// survive normalization.
var latinStrip = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)

// RemoveDiacritics strips tatweel and all Arabic diacritical marks
// (fatha, damma, kasra, their tanween forms, sukun, shadda, ...) from text.
// Decomposition also folds precomposed letters such as alif-madda into their
// base letter plus a mark, so the madda disappears with the other marks.
func RemoveDiacritics(text string) string {
	text = strings.ReplaceAll(text, tatweel, "")
	// A fresh transformer per call; a shared chain is not safe for
	// concurrent use.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

// HasDiacritics reports whether text contains any Arabic diacritical mark.
func HasDiacritics(text string) bool {
	for _, r := range norm.NFKD.String(text) {
		if unicode.Is(unicode.Mn, r) {
			return true
		}
	}
	return false
}

// NormalizeArabic produces the canonical comparison form of Arabic text:
// diacritics removed, orthographic variants folded and whitespace collapsed
// to single spaces.
func NormalizeArabic(text string) string {
	text = RemoveDiacritics(text)
	text = arabicFolder.Replace(text)
	return strings.Join(strings.Fields(text), " ")
}

// NormalizeEnglish produces the canonical comparison form of Latin-script
// text: lowercased, punctuation removed and whitespace collapsed to single
// spaces.
func NormalizeEnglish(text string) string {
	text = strings.ToLower(text)
	text = latinStrip.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// Normalize applies the comparison normalization for the given language.
func Normalize(text string, lang Language) string {
	if lang == Arabic {
		return NormalizeArabic(text)
	}
	return NormalizeEnglish(text)
}

// CompareDiacritics compares two Arabic words at both precision levels.
// baseMatch is true when the words agree after diacritic removal alone,
// exactMatch when they are identical including diacritics. Variant folding is
// deliberately left out of the base comparison: a spelling difference such as
// taa marbuta against haa is not a diacritic deviation, so strict mode must
// not flag it. A word pair with baseMatch and not exactMatch is the
// strict-mode deviation case.
func CompareDiacritics(expected, spoken string) (baseMatch, exactMatch bool) {
	exactMatch = expected == spoken
	baseMatch = RemoveDiacritics(expected) == RemoveDiacritics(spoken)
	return baseMatch, exactMatch
}

// Tokens splits text into comparison tokens for the given language. The
// Normalized field is what gets compared; Original keeps the surface token at
// the same position when one exists, so Arabic error words can be reported
// with their diacritics intact.
func Tokens(text string, lang Language) []Token {
	normalized := strings.Fields(Normalize(text, lang))
	original := strings.Fields(text)
	tokens := make([]Token, len(normalized))
	for i, w := range normalized {
		orig := w
		if lang == Arabic && i < len(original) {
			orig = original[i]
		}
		tokens[i] = Token{Original: orig, Normalized: w, Index: i}
	}
	return tokens
}
