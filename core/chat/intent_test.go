package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name           string
		question       string
		wantIntent     string
		wantSubject    string
		wantConfidence float64
	}{
		{
			name:           "greeting",
			question:       "Hello there!",
			wantIntent:     IntentGreeting,
			wantConfidence: 0.95,
		},
		{
			name:           "greeting phrase",
			question:       "Good morning, how are you?",
			wantIntent:     IntentGreeting,
			wantConfidence: 0.95,
		},
		{
			name:           "greeting word not matched inside another word",
			question:       "Explain this to me",
			wantIntent:     IntentAskQuestion,
			wantConfidence: 0.7,
		},
		{
			name:           "progress",
			question:       "How am I doing in my grades?",
			wantIntent:     IntentGetProgress,
			wantConfidence: 0.7,
		},
		{
			name:           "feedback",
			question:       "What feedback did I get?",
			wantIntent:     IntentGetFeedback,
			wantConfidence: 0.7,
		},
		{
			name:           "motivation",
			question:       "I feel frustrated, I want to give up",
			wantIntent:     IntentMotivation,
			wantConfidence: 0.7,
		},
		{
			name:           "question with subject",
			question:       "What is photosynthesis?",
			wantIntent:     IntentAskQuestion,
			wantSubject:    "biology",
			wantConfidence: 0.8,
		},
		{
			name:           "help with subject",
			question:       "I'm stuck on this algebra problem",
			wantIntent:     IntentGetHelp,
			wantSubject:    "mathematics",
			wantConfidence: 0.8,
		},
		{
			name:           "no pattern with subject defaults to question",
			question:       "Tell me about gravity",
			wantIntent:     IntentAskQuestion,
			wantSubject:    "physics",
			wantConfidence: 0.6,
		},
		{
			name:           "no pattern no subject is a weak default",
			question:       "Tell me something interesting",
			wantIntent:     IntentAskQuestion,
			wantConfidence: 0.5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := classify(tt.question)
			assert.Equal(t, tt.wantIntent, c.Intent)
			assert.Equal(t, tt.wantSubject, c.Subject)
			assert.Equal(t, tt.wantConfidence, c.Confidence)
		})
	}
}

func TestClassificationNeedsFallback(t *testing.T) {
	assert.True(t, Classification{Confidence: 0.5}.needsFallback())
	assert.False(t, Classification{Confidence: 0.6}.needsFallback())
	assert.False(t, Classification{Confidence: 0.95}.needsFallback())
}

func TestDetectSubject(t *testing.T) {
	assert.Equal(t, "chemistry", detectSubject("explain the periodic table"))
	assert.Equal(t, "english", detectSubject("help with my essay"))
	assert.Equal(t, "", detectSubject("what happened yesterday"))
}

// TestDetectSubjectKeywordTables pins the full keyword tables so retrieval
// keeps firing for every phrasing the classifier is meant to cover.
func TestDetectSubjectKeywordTables(t *testing.T) {
	tests := map[string]string{
		"i need help with mathematics":          "mathematics",
		"what is arithmetic":                    "mathematics",
		"explain momentum to me":                "physics",
		"how does thermodynamics work":          "physics",
		"what is a chemical compound":           "chemistry",
		"explain genetics":                      "biology",
		"how does evolution work":               "biology",
		"help me write a poem":                  "english",
		"tell me about an ancient civilization": "history",
		"what happened in medieval times":       "history",
		"what is the capital of france":         "geography",
		"which country has the longest river":   "geography",
		"my dog ate my homework":                "",
		"mathematical reasoning is not keyword": "", // word boundary, no prefix match
	}
	for q, want := range tests {
		assert.Equal(t, want, detectSubject(q), q)
	}
}
