package chat

import (
	"strings"
	"unicode"
)

// confidenceFloor is the keyword confidence below which the classifier defers
// to the LLM fallback.
const confidenceFloor = 0.6

// intentPatterns maps each intent to the phrases that trigger it. Matching is
// case-insensitive substring matching over the question.
var intentPatterns = map[string][]string{
	IntentGreeting: {
		"hi", "hello", "hey", "good morning", "good evening",
		"how are you", "what's up",
	},
	IntentGetProgress: {
		"progress", "how am i doing", "my performance", "grades",
		"scores", "improvement",
	},
	IntentGetFeedback: {
		"feedback", "teacher comments", "what did teacher say", "review",
	},
	IntentAskQuestion: {
		"what is", "how do", "explain", "help me",
		"i don't understand", "solve", "calculate",
	},
	IntentGetHelp: {
		"help", "stuck", "confused", "don't know", "assistance",
	},
	IntentMotivation: {
		"encourage", "motivate", "give up", "difficult", "hard", "frustrated",
	},
}

// matchOrder keeps classification deterministic: more specific intents are
// tried before catch-alls like ask_question and get_help.
var matchOrder = []string{
	IntentGreeting, IntentGetProgress, IntentGetFeedback,
	IntentMotivation, IntentAskQuestion, IntentGetHelp,
}

var subjectOrder = []string{
	"mathematics", "physics", "chemistry", "biology",
	"english", "history", "geography",
}

var subjectKeywords = map[string][]string{
	"mathematics": {"math", "mathematics", "algebra", "geometry", "calculus", "arithmetic", "equation", "fraction"},
	"physics":     {"physics", "force", "energy", "momentum", "thermodynamics", "mechanics", "motion", "gravity", "electricity", "velocity"},
	"chemistry":   {"chemistry", "chemical", "reaction", "molecule", "compound", "element", "acid", "periodic table"},
	"biology":     {"biology", "cell", "organism", "genetics", "evolution", "anatomy", "photosynthesis", "dna", "ecosystem"},
	"english":     {"english", "grammar", "literature", "writing", "essay", "poem", "vocabulary"},
	"history":     {"history", "historical", "war", "civilization", "ancient", "medieval", "revolution", "empire", "independence"},
	"geography":   {"geography", "country", "continent", "climate", "map", "capital", "river", "mountain"},
}

// Classification is the outcome of intent detection for one question.
type Classification struct {
	Intent     string
	Subject    string
	Confidence float64
}

// needsFallback reports whether the keyword match was too weak and the LLM
// should have a say.
func (c Classification) needsFallback() bool { return c.Confidence < confidenceFloor }

// classify runs keyword classification:
//   - greetings are near-certain (0.95);
//   - any other pattern match scores 0.8 with a detected subject, 0.7 without;
//   - no match defaults to ask_question at 0.6 with a subject, 0.5 without.
func classify(question string) Classification {
	q := strings.ToLower(strings.TrimSpace(question))
	subject := detectSubject(q)

	for _, intent := range matchOrder {
		if !matchesAny(q, intentPatterns[intent]) {
			continue
		}
		if intent == IntentGreeting {
			return Classification{Intent: IntentGreeting, Confidence: 0.95}
		}
		c := Classification{Intent: intent, Subject: subject, Confidence: 0.7}
		if subject != "" {
			c.Confidence = 0.8
		}
		return c
	}

	c := Classification{Intent: IntentAskQuestion, Subject: subject, Confidence: 0.5}
	if subject != "" {
		c.Confidence = 0.6
	}
	return c
}

func detectSubject(q string) string {
	for _, subject := range subjectOrder {
		if matchesAny(q, subjectKeywords[subject]) {
			return subject
		}
	}
	return ""
}

// matchesAny matches multi-word patterns as substrings and single words on
// word boundaries, so "this" does not trigger "hi".
func matchesAny(q string, patterns []string) bool {
	var words []string
	for _, p := range patterns {
		if strings.Contains(p, " ") {
			if strings.Contains(q, p) {
				return true
			}
			continue
		}
		if words == nil {
			words = strings.FieldsFunc(q, func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
			})
		}
		for _, w := range words {
			if w == p {
				return true
			}
		}
	}
	return false
}

func isKnownIntent(intent string) bool {
	for _, known := range AllIntents {
		if intent == known {
			return true
		}
	}
	return false
}
