package session

import (
	"regexp"
	"strings"
)

// sentenceEnd matches runs of sentence-terminating punctuation, including the
// Arabic question mark.
var sentenceEnd = regexp.MustCompile(`[.!?\x{061F}]+`)

// SplitSentences cuts a story into sentences on terminal punctuation.
// Whitespace around each sentence is trimmed and empty pieces are dropped,
// so trailing punctuation does not produce a phantom sentence.
func SplitSentences(story string) []string {
	var sentences []string
	for _, part := range sentenceEnd.Split(story, -1) {
		part = strings.TrimSpace(part)
		if part != "" {
			sentences = append(sentences, part)
		}
	}
	return sentences
}
