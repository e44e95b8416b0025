package routing

import (
	"strings"
	"unicode/utf8"

	"github.com/hrygo/agentrouter/ai/internal/strutil"
)

const (
	patternMaxWords    = 4
	patternFallbackLen = 50
)

var defaultStopWords = []string{"и", "в", "на", "с", "по", "для", "как", "что", "где", "когда", "я", "мне", "меня"}

// PatternExtractor reduces a message to the short key phrase that performance rows are keyed by.
type PatternExtractor struct {
	stopWords map[string]struct{}
}

// NewPatternExtractor creates an extractor. A nil list selects the built-in Russian stop words.
func NewPatternExtractor(stopWords []string) *PatternExtractor {
	if stopWords == nil {
		stopWords = defaultStopWords
	}
	set := make(map[string]struct{}, len(stopWords))
	for _, w := range stopWords {
		set[strutil.Fold(w)] = struct{}{}
	}
	return &PatternExtractor{stopWords: set}
}

// Extract keeps the first four lowercase tokens that are not stop words and are
// longer than two runes. When nothing survives it returns the first 50 runes of the raw message.
func (e *PatternExtractor) Extract(message string) string {
	important := make([]string, 0, patternMaxWords)
	for _, w := range strings.Fields(strutil.Fold(message)) {
		if _, stop := e.stopWords[w]; stop {
			continue
		}
		if utf8.RuneCountInString(w) <= 2 {
			continue
		}
		important = append(important, w)
		if len(important) == patternMaxWords {
			break
		}
	}
	if len(important) == 0 {
		return strutil.Prefix(message, patternFallbackLen)
	}
	return strings.Join(important, " ")
}

var defaultExtractor = NewPatternExtractor(nil)

// ExtractPattern applies the default extractor.
func ExtractPattern(message string) string {
	return defaultExtractor.Extract(message)
}
