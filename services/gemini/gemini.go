package geminisvc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/kymoni/elimu/core"
	"github.com/kymoni/elimu/core/assignment"
	"github.com/kymoni/elimu/core/chat"
)

// Service talks to the Gemini API for generation, grading, question drafting,
// intent fallback classification and embeddings.
type Service struct {
	client     *genai.Client
	model      string
	embedModel string
	logger     core.Logger
}

var (
	_ chat.Generator               = (*Service)(nil)
	_ chat.Embedder                = (*Service)(nil)
	_ assignment.Grader            = (*Service)(nil)
	_ assignment.QuestionGenerator = (*Service)(nil)
)

func NewService(ctx context.Context, conf *core.Config, logger core.Logger) (*Service, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(conf.AI.GeminiApiKey))
	if err != nil {
		return nil, errors.Wrap(err, "creating gemini client")
	}
	return &Service{
		client:     client,
		model:      conf.AI.GeminiModel,
		embedModel: conf.AI.EmbeddingModel,
		logger:     logger,
	}, nil
}

func (svc *Service) Close() error { return svc.client.Close() }

func (svc *Service) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := svc.client.GenerativeModel(svc.model).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", errors.Wrap(err, "generating content")
	}
	return textFromResponse(resp)
}

func (svc *Service) ClassifyIntent(ctx context.Context, question string, intents []string) (string, error) {
	prompt := fmt.Sprintf(
		"Classify the student message below into exactly one of these intents: %s.\n"+
			"Reply with only the intent label, nothing else.\n\nMessage: %s",
		strings.Join(intents, ", "), question,
	)
	out, err := svc.GenerateText(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(out)), nil
}

func (svc *Service) EmbedText(ctx context.Context, text string) ([]float32, error) {
	res, err := svc.client.EmbeddingModel(svc.embedModel).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, errors.Wrap(err, "embedding content")
	}
	if res.Embedding == nil {
		return nil, errors.New("empty embedding response")
	}
	return res.Embedding.Values, nil
}

// GradeWritten scores a written answer 0..10 with a short feedback line.
func (svc *Service) GradeWritten(ctx context.Context, question, answer, gradeLevel string) (float64, string, error) {
	prompt := fmt.Sprintf(`You are grading a %s student's written answer.

Question: %s
Student answer: %s

Grade the answer from 0 to 10 and give one short, constructive feedback
sentence the student can act on. Reply with strict JSON only:
{"score": <number 0-10>, "feedback": "<sentence>"}`, gradeLevel, question, answer)

	out, err := svc.GenerateText(ctx, prompt)
	if err != nil {
		return 0, "", err
	}

	var graded struct {
		Score    float64 `json:"score"`
		Feedback string  `json:"feedback"`
	}
	if err = json.Unmarshal([]byte(stripJSONFences(out)), &graded); err != nil {
		return 0, "", errors.Wrapf(err, "parsing grading reply %q", out)
	}
	if graded.Score < 0 {
		graded.Score = 0
	} else if graded.Score > assignment.MaxScore {
		graded.Score = assignment.MaxScore
	}
	return graded.Score, graded.Feedback, nil
}

// GenerateQuestions drafts 3 MCQs and 2 written questions, steering toward
// the weak areas of past performance.
func (svc *Service) GenerateQuestions(ctx context.Context, params assignment.GenerateParams, analysis assignment.Analysis) ([]assignment.Question, error) {
	var focus string
	if len(analysis.WeakAreas) > 0 {
		focus = fmt.Sprintf("\nStudents struggle with %s question types; make those slightly easier and more guided.",
			strings.Join(analysis.WeakAreas, ", "))
	}
	if len(analysis.StrongAreas) > 0 {
		focus += fmt.Sprintf("\nStudents do well on %s question types; those can be more challenging.",
			strings.Join(analysis.StrongAreas, ", "))
	}

	prompt := fmt.Sprintf(`Create an assignment for %s students on %s (topic: %s).%s

Produce exactly 3 multiple-choice questions (4 options each) and 2 written
questions. Reply with strict JSON only:
{
  "mcq": [{"question": "...", "options": ["...", "...", "...", "..."], "correct_answer": "..."}],
  "written": [{"question": "..."}]
}`, params.GradeLevel, params.Subject, params.Topic, focus)

	out, err := svc.GenerateText(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var drafted struct {
		MCQ []struct {
			Question      string   `json:"question"`
			Options       []string `json:"options"`
			CorrectAnswer string   `json:"correct_answer"`
		} `json:"mcq"`
		Written []struct {
			Question string `json:"question"`
		} `json:"written"`
	}
	if err = json.Unmarshal([]byte(stripJSONFences(out)), &drafted); err != nil {
		return nil, errors.Wrapf(err, "parsing generated questions %q", out)
	}
	if len(drafted.MCQ) == 0 && len(drafted.Written) == 0 {
		return nil, errors.New("no questions in generation reply")
	}

	questions := make([]assignment.Question, 0, len(drafted.MCQ)+len(drafted.Written))
	for _, q := range drafted.MCQ {
		questions = append(questions, assignment.Question{
			Type:          assignment.TypeMCQ,
			Text:          q.Question,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
		})
	}
	for _, q := range drafted.Written {
		questions = append(questions, assignment.Question{
			Type: assignment.TypeWritten,
			Text: q.Question,
		})
	}
	return questions, nil
}

func textFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty generation response")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("no text parts in generation response")
	}
	return strings.TrimSpace(sb.String()), nil
}

// stripJSONFences unwraps replies that come fenced as ```json ... ```.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
