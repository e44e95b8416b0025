package routing

import (
	"strings"

	"github.com/hrygo/agentrouter/ai/internal/strutil"
)

// phraseBonus is added when one text contains the other.
const phraseBonus = 0.3

// Similarity scores how close a message is to a stored pattern, in [0,1].
// It is the Jaccard index of the lowercase whitespace token sets plus a fixed
// bonus when either text contains the other. Symmetric in its arguments.
func Similarity(message, pattern string) float64 {
	a := strutil.Fold(message)
	b := strutil.Fold(pattern)

	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	score := jaccard(setA, setB)

	if strings.Contains(a, b) || strings.Contains(b, a) {
		score += phraseBonus
	}
	if score > 1 {
		return 1
	}
	return score
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// jaccard returns |a∩b|/|a∪b|, 0 when either set is empty.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}
