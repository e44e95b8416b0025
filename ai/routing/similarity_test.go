package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		message string
		pattern string
		want    float64
	}{
		{"contained pattern", "как найти работу", "найти работу", 2.0/3.0 + phraseBonus},
		{"identical after folding", "Работа Вакансии", "работа вакансии", 1},
		{"disjoint", "общежитие", "работа", 0},
		{"partial overlap", "расписание экзаменов", "расписание занятий", 1.0 / 3.0},
		{"empty message", "", "работа", 0},
		{"whitespace only", "   ", "работа", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.message, tt.pattern), 1e-9)
		})
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	texts := []string{
		"как найти работу",
		"найти работу",
		"Расписание занятий на завтра",
		"общежитие заселение",
		"",
		"работа",
	}
	for _, a := range texts {
		for _, b := range texts {
			assert.Equal(t, Similarity(a, b), Similarity(b, a), "%q vs %q", a, b)
		}
	}
}

func TestSimilarityBounded(t *testing.T) {
	for _, pair := range [][2]string{
		{"работа", "работа"},
		{"a b c", "a b c d"},
		{"x", "y"},
	} {
		s := Similarity(pair[0], pair[1])
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 1.0)
	}
}
