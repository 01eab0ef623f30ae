package chat

import (
	"context"
	"fmt"
	"math/rand"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kymoni/elimu/core"
	"github.com/kymoni/elimu/core/assignment"
	"github.com/kymoni/elimu/core/attendance"
	"github.com/kymoni/elimu/core/student"
)

const (
	recentInteractionLimit = 3
	retrievedDocLimit      = 3
	recentScoreLimit       = 5
	feedbackLimit          = 3
)

type (
	Repository interface {
		CreateInteraction(ctx context.Context, in Interaction) (Interaction, error)
		QueryRecentInteractions(ctx context.Context, studentID string, limit int) ([]Interaction, error)
	}

	// Generator produces text and classifies ambiguous intents (Gemini).
	Generator interface {
		GenerateText(ctx context.Context, prompt string) (string, error)
		ClassifyIntent(ctx context.Context, question string, intents []string) (string, error)
	}

	// Embedder turns a question into a vector for retrieval (Gemini).
	Embedder interface {
		EmbedText(ctx context.Context, text string) ([]float32, error)
	}

	// Retriever stores and queries the knowledge base (ChromaDB).
	Retriever interface {
		AddDocument(ctx context.Context, doc Document, embedding []float32) error
		Query(ctx context.Context, embedding []float32, subject string, limit int) ([]Document, error)
	}

	StudentSource interface {
		GetByID(ctx context.Context, id string) (student.Student, error)
	}

	PerformanceSource interface {
		Progress(ctx context.Context, studentID string) ([]assignment.SubjectProgress, error)
		QueryStudentSubmissions(ctx context.Context, studentID string) ([]assignment.Submission, error)
	}

	AttendanceSource interface {
		Summarize(ctx context.Context, studentID string) (attendance.Summary, error)
	}

	Service interface {
		AskTutor(ctx context.Context, studentID, question, channel string) (Reply, error)
		AskParent(ctx context.Context, studentID, question string) (Reply, error)
		History(ctx context.Context, studentID string, limit int) ([]Interaction, error)
		AddDocument(ctx context.Context, nd NewDocument) (Document, error)
	}

	service struct {
		repo        Repository
		students    StudentSource
		performance PerformanceSource
		attendance  AttendanceSource
		generator   Generator
		embedder    Embedder
		retriever   Retriever
		logger      core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	students StudentSource,
	performance PerformanceSource,
	attendance AttendanceSource,
	generator Generator,
	embedder Embedder,
	retriever Retriever,
	logger core.Logger,
) Service {
	return &service{
		repo:        repo,
		students:    students,
		performance: performance,
		attendance:  attendance,
		generator:   generator,
		embedder:    embedder,
		retriever:   retriever,
		logger:      logger,
	}
}

// AskTutor answers a student's question: classify the intent, assemble the
// student's context (plus retrieved learning material for subject questions),
// generate a response and persist the exchange.
func (svc *service) AskTutor(ctx context.Context, studentID, question, channel string) (Reply, error) {
	c := svc.classifyWithFallback(ctx, question)

	if c.Intent == IntentGreeting {
		answer := greetingResponses[rand.Intn(len(greetingResponses))]
		svc.saveInteraction(ctx, Interaction{
			StudentID: studentID,
			Question:  question,
			Response:  answer,
			Intent:    c.Intent,
			Channel:   channel,
		})
		return Reply{Answer: answer, Intent: c.Intent}, nil
	}

	std, err := svc.students.GetByID(ctx, studentID)
	if err != nil {
		return Reply{}, err
	}

	data := tutorPromptData{
		GradeLevel:      std.GradeLevel,
		LearningStyle:   std.LearningStyle,
		Interests:       std.Interests,
		AcademicHistory: std.SummarizeAcademicHistory(),
		Subject:         c.Subject,
		Intent:          c.Intent,
		Question:        question,
	}
	if recent, err := svc.repo.QueryRecentInteractions(ctx, studentID, recentInteractionLimit); err != nil {
		svc.logger.Warn("loading recent interactions", err)
	} else {
		data.Recent = recent
	}

	switch c.Intent {
	case IntentGetProgress:
		if progress, err := svc.performance.Progress(ctx, studentID); err != nil {
			svc.logger.Warn("loading progress", err)
		} else {
			data.Progress = progressLines(progress)
		}
	case IntentGetFeedback:
		data.Feedback = feedbackLines(std.FeedbackHistory)
	case IntentAskQuestion, IntentGetHelp:
		if c.Subject != "" {
			data.Documents = svc.retrieve(ctx, question, c.Subject)
		}
	}

	answer := svc.generate(ctx, tutorPromptTmpl, data)
	svc.saveInteraction(ctx, Interaction{
		StudentID:     studentID,
		Question:      question,
		Response:      answer,
		Intent:        c.Intent,
		Subject:       c.Subject,
		Channel:       channel,
		RetrievedDocs: len(data.Documents),
	})
	return Reply{Answer: answer, Intent: c.Intent, Subject: c.Subject}, nil
}

// AskParent answers a parent's WhatsApp question about their child, grounded
// in the child's attendance, scores and teacher feedback.
func (svc *service) AskParent(ctx context.Context, studentID, question string) (Reply, error) {
	std, err := svc.students.GetByID(ctx, studentID)
	if err != nil {
		return Reply{}, err
	}

	data := parentPromptData{
		StudentCode:    std.Code,
		GradeLevel:     std.GradeLevel,
		AttendanceRate: "No attendance records yet",
		Interests:      std.Interests,
		Feedback:       feedbackLines(std.FeedbackHistory),
		Question:       question,
	}
	if sum, err := svc.attendance.Summarize(ctx, studentID); err != nil {
		svc.logger.Warn("loading attendance summary", err)
	} else if sum.TotalSessions > 0 {
		data.AttendanceRate = fmt.Sprintf("%.0f%% (%d of %d sessions)", sum.Rate, sum.PresentCount, sum.TotalSessions)
		data.RecentAbsences = len(sum.RecentAbsences)
	}
	if progress, err := svc.performance.Progress(ctx, studentID); err != nil {
		svc.logger.Warn("loading progress", err)
	} else {
		data.Progress = progressLines(progress)
	}
	if subs, err := svc.performance.QueryStudentSubmissions(ctx, studentID); err != nil {
		svc.logger.Warn("loading submissions", err)
	} else {
		data.RecentScores = recentScores(subs)
	}

	c := classify(question)
	answer := svc.generate(ctx, parentPromptTmpl, data)
	svc.saveInteraction(ctx, Interaction{
		StudentID: studentID,
		Question:  question,
		Response:  answer,
		Intent:    c.Intent,
		Subject:   c.Subject,
		Channel:   ChannelWhatsApp,
	})
	return Reply{Answer: answer, Intent: c.Intent, Subject: c.Subject}, nil
}

func (svc *service) History(ctx context.Context, studentID string, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = recentInteractionLimit
	}
	return svc.repo.QueryRecentInteractions(ctx, studentID, limit)
}

func (svc *service) AddDocument(ctx context.Context, nd NewDocument) (Document, error) {
	doc := Document{
		ID:         uuid.New().String(),
		Subject:    nd.Subject,
		Topic:      nd.Topic,
		Content:    nd.Content,
		GradeLevel: nd.GradeLevel,
	}
	embedding, err := svc.embedder.EmbedText(ctx, doc.Content)
	if err != nil {
		return Document{}, errors.Wrap(err, "embedding document")
	}
	if err = svc.retriever.AddDocument(ctx, doc, embedding); err != nil {
		return Document{}, errors.Wrap(err, "storing document")
	}
	return doc, nil
}

// classifyWithFallback runs keyword classification and defers weak matches to
// the LLM; classification failures never block a reply.
func (svc *service) classifyWithFallback(ctx context.Context, question string) Classification {
	c := classify(question)
	if !c.needsFallback() {
		return c
	}
	intent, err := svc.generator.ClassifyIntent(ctx, question, AllIntents)
	if err != nil {
		svc.logger.Warn("intent fallback classification", err)
		return c
	}
	if isKnownIntent(intent) {
		c.Intent = intent
		c.Confidence = confidenceFloor
	}
	return c
}

func (svc *service) retrieve(ctx context.Context, question, subject string) []Document {
	embedding, err := svc.embedder.EmbedText(ctx, question)
	if err != nil {
		svc.logger.Warn("embedding question", err)
		return nil
	}
	docs, err := svc.retriever.Query(ctx, embedding, subject, retrievedDocLimit)
	if err != nil {
		svc.logger.Warn("querying knowledge base", err)
		return nil
	}
	return docs
}

func (svc *service) generate(ctx context.Context, tmpl *template.Template, data interface{}) string {
	prompt, err := renderPrompt(tmpl, data)
	if err != nil {
		svc.logger.Error("rendering prompt", err)
		return fallbackResponse
	}
	answer, err := svc.generator.GenerateText(ctx, prompt)
	if err != nil {
		svc.logger.Warn("generating response", err)
		return fallbackResponse
	}
	return answer
}

// saveInteraction persists best-effort: a storage hiccup never loses the reply.
func (svc *service) saveInteraction(ctx context.Context, in Interaction) {
	in.CreatedAt = time.Now().UTC()
	if _, err := svc.repo.CreateInteraction(ctx, in); err != nil {
		svc.logger.Error("saving chat interaction", err)
	}
}

func progressLines(progress []assignment.SubjectProgress) []string {
	lines := make([]string, 0, len(progress))
	for _, p := range progress {
		lines = append(lines, fmt.Sprintf("%s: %.1f/10 average over %d submissions", p.Subject, p.AverageScore, p.Submissions))
	}
	return lines
}

func feedbackLines(history []student.Feedback) []string {
	if len(history) > feedbackLimit {
		history = history[len(history)-feedbackLimit:]
	}
	lines := make([]string, 0, len(history))
	for _, fb := range history {
		lines = append(lines, fmt.Sprintf("%s (%s): %s", fb.Subject, fb.Topic, fb.Feedback))
	}
	return lines
}

func recentScores(subs []assignment.Submission) []string {
	if len(subs) > recentScoreLimit {
		subs = subs[:recentScoreLimit]
	}
	scores := make([]string, 0, len(subs))
	for _, sub := range subs {
		if avg, ok := sub.AverageScore(); ok {
			scores = append(scores, fmt.Sprintf("%.1f", avg))
		}
	}
	return scores
}
