package routing

import (
	"strings"
	"unicode/utf8"

	"github.com/hrygo/agentrouter/ai/internal/strutil"
)

var (
	featureQuestionWords = []string{"как", "что", "где", "когда", "почему", "какой"}
	featureUrgencyWords  = []string{"срочно", "быстро", "немедленно", "нужно"}
	featureFormalWords   = []string{"пожалуйста", "благодарю", "уважаемый"}

	featureDomains = []struct {
		name     string
		keywords []string
	}{
		{"academic", []string{"расписание", "экзамен", "зачет", "лекция", "семинар", "учеба", "студент"}},
		{"career", []string{"работа", "вакансии", "резюме", "карьера", "трудоустройство"}},
		{"admission", []string{"поступление", "абитуриент", "документы", "вступительный"}},
		{"hr", []string{"отпуск", "зарплата", "кадры", "сотрудник", "преподаватель"}},
		{"housing", []string{"общежитие", "комната", "заселение", "проживание"}},
	}
)

// MessageFeatures are descriptive ratios reported with a prediction. They do not affect scoring.
type MessageFeatures struct {
	Length        float64            `json:"length"`
	WordCount     float64            `json:"word_count"`
	QuestionWords float64            `json:"question_words"`
	Urgency       float64            `json:"urgency_indicators"`
	FormalTone    float64            `json:"formal_tone"`
	Domains       map[string]float64 `json:"domains"`
}

// ExtractFeatures computes the MessageFeatures of a message.
func ExtractFeatures(message string) MessageFeatures {
	folded := strings.TrimSpace(strutil.Fold(message))

	f := MessageFeatures{
		Length:        float64(utf8.RuneCountInString(message)) / 100.0,
		WordCount:     float64(len(strings.Fields(message))) / 20.0,
		QuestionWords: ratio(folded, featureQuestionWords),
		Urgency:       ratio(folded, featureUrgencyWords),
		FormalTone:    ratio(folded, featureFormalWords),
		Domains:       make(map[string]float64, len(featureDomains)),
	}
	for _, d := range featureDomains {
		f.Domains[d.name] = ratio(folded, d.keywords)
	}
	return f
}

func ratio(s string, needles []string) float64 {
	if len(needles) == 0 {
		return 0
	}
	return float64(countContains(s, needles)) / float64(len(needles))
}
