package reading

// arabicBlockStart and arabicBlockEnd bound the primary Arabic Unicode block,
// which covers the letters, diacritics and punctuation used in running Arabic
// text.
const (
	arabicBlockStart = 0x0600
	arabicBlockEnd   = 0x06FF
)

// DetectLanguage classifies text by script: any character from the Arabic
// block makes the whole text Arabic, otherwise it is treated as English.
// Mixed-script text therefore follows the Arabic comparison rules, which are
// the stricter of the two.
func DetectLanguage(text string) Language {
	for _, r := range text {
		if r >= arabicBlockStart && r <= arabicBlockEnd {
			return Arabic
		}
	}
	return English
}
