package chat

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kymoni/elimu/core"
)

// Channels an interaction can arrive on.
const (
	ChannelWeb      = "web"
	ChannelWhatsApp = "whatsapp"
)

// Intents
const (
	IntentGreeting    = "greeting"
	IntentGetProgress = "get_progress"
	IntentGetFeedback = "get_feedback"
	IntentAskQuestion = "ask_question"
	IntentGetHelp     = "get_help"
	IntentMotivation  = "motivation"
)

var AllIntents = []string{
	IntentGreeting, IntentGetProgress, IntentGetFeedback,
	IntentAskQuestion, IntentGetHelp, IntentMotivation,
}

type (
	// Interaction is one persisted question/answer exchange.
	Interaction struct {
		ID            string    `json:"id"`
		StudentID     string    `json:"student_id"`
		Question      string    `json:"question"`
		Response      string    `json:"response"`
		Intent        string    `json:"intent"`
		Subject       string    `json:"subject,omitempty"`
		Channel       string    `json:"channel"`
		RetrievedDocs int       `json:"retrieved_docs"`
		CreatedAt     time.Time `json:"created_at"` // UTC
	}

	// Document is one knowledge base entry served to the retriever.
	Document struct {
		ID         string `json:"id"`
		Subject    string `json:"subject"`
		Topic      string `json:"topic"`
		Content    string `json:"content"`
		GradeLevel string `json:"grade_level"`
	}
)

type Ask struct {
	Question string `json:"question" validate:"required,max=2000"`
}

func (a *Ask) Validate(validate *validator.Validate) error {
	a.Question = core.CleanString(a.Question)
	return validate.Struct(a)
}

// Reply is what chat surfaces (REST, WebSocket, WhatsApp) send back.
type Reply struct {
	Answer  string `json:"answer"`
	Intent  string `json:"intent"`
	Subject string `json:"subject,omitempty"`
}

type NewDocument struct {
	Subject    string `json:"subject" validate:"required"`
	Topic      string `json:"topic" validate:"required"`
	Content    string `json:"content" validate:"required"`
	GradeLevel string `json:"grade_level"`
}

func (nd *NewDocument) Validate(validate *validator.Validate) error {
	nd.Subject = core.CleanString(nd.Subject, true /* lower */)
	nd.Topic = core.CleanString(nd.Topic)
	nd.Content = core.CleanString(nd.Content)
	nd.GradeLevel = core.CleanString(nd.GradeLevel)
	return validate.Struct(nd)
}
