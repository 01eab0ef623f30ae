package chat

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kymoni/elimu/core/assignment"
	"github.com/kymoni/elimu/core/attendance"
	"github.com/kymoni/elimu/core/student"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

type repoStub struct {
	saved  []Interaction
	recent []Interaction
}

func (r *repoStub) CreateInteraction(_ context.Context, in Interaction) (Interaction, error) {
	in.ID = "int1"
	r.saved = append(r.saved, in)
	return in, nil
}

func (r *repoStub) QueryRecentInteractions(_ context.Context, _ string, _ int) ([]Interaction, error) {
	return r.recent, nil
}

type studentsStub struct {
	std student.Student
	err error
}

func (s *studentsStub) GetByID(_ context.Context, _ string) (student.Student, error) {
	return s.std, s.err
}

type perfStub struct {
	progress []assignment.SubjectProgress
	subs     []assignment.Submission
}

func (p *perfStub) Progress(_ context.Context, _ string) ([]assignment.SubjectProgress, error) {
	return p.progress, nil
}

func (p *perfStub) QueryStudentSubmissions(_ context.Context, _ string) ([]assignment.Submission, error) {
	return p.subs, nil
}

type attStub struct {
	summary attendance.Summary
}

func (a *attStub) Summarize(_ context.Context, _ string) (attendance.Summary, error) {
	return a.summary, nil
}

type genStub struct {
	answer      string
	genErr      error
	intent      string
	intentErr   error
	prompts     []string
	classifyHit int
}

func (g *genStub) GenerateText(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.answer, g.genErr
}

func (g *genStub) ClassifyIntent(_ context.Context, _ string, _ []string) (string, error) {
	g.classifyHit++
	return g.intent, g.intentErr
}

type embStub struct {
	err error
	hit int
}

func (e *embStub) EmbedText(_ context.Context, _ string) ([]float32, error) {
	e.hit++
	return []float32{0.1, 0.2}, e.err
}

type retStub struct {
	docs  []Document
	added []Document
	err   error
}

func (r *retStub) AddDocument(_ context.Context, doc Document, _ []float32) error {
	r.added = append(r.added, doc)
	return r.err
}

func (r *retStub) Query(_ context.Context, _ []float32, _ string, _ int) ([]Document, error) {
	return r.docs, r.err
}

func newTestService(repo *repoStub, gen *genStub, emb *embStub, ret *retStub) Service {
	return NewService(
		repo,
		&studentsStub{std: student.Student{
			ID:         "std1",
			Code:       "STU-9f3a21",
			GradeLevel: "Grade 8",
			Interests:  []string{"football"},
			FeedbackHistory: []student.Feedback{
				{Subject: "mathematics", Topic: "fractions", Feedback: "Needs more practice", Date: time.Now()},
			},
		}},
		&perfStub{
			progress: []assignment.SubjectProgress{{Subject: "mathematics", Submissions: 2, AverageScore: 7.5}},
		},
		&attStub{summary: attendance.Summary{StudentID: "std1", TotalSessions: 10, PresentCount: 9, Rate: 90}},
		gen,
		emb,
		ret,
		nopLogger{},
	)
}

func TestAskTutorGreeting(t *testing.T) {
	repo := &repoStub{}
	gen := &genStub{answer: "should not be used"}
	svc := newTestService(repo, gen, &embStub{}, &retStub{})

	reply, err := svc.AskTutor(context.Background(), "std1", "Hello!", ChannelWeb)
	require.NoError(t, err)
	assert.Equal(t, IntentGreeting, reply.Intent)
	assert.Contains(t, greetingResponses, reply.Answer)
	assert.Empty(t, gen.prompts) // no LLM call for greetings

	require.Len(t, repo.saved, 1)
	assert.Equal(t, IntentGreeting, repo.saved[0].Intent)
	assert.Equal(t, ChannelWeb, repo.saved[0].Channel)
}

func TestAskTutorSubjectQuestionRetrieves(t *testing.T) {
	repo := &repoStub{}
	gen := &genStub{answer: "Photosynthesis is how plants make food."}
	emb := &embStub{}
	ret := &retStub{docs: []Document{
		{ID: "d1", Subject: "biology", Content: "Photosynthesis converts light into chemical energy."},
	}}
	svc := newTestService(repo, gen, emb, ret)

	reply, err := svc.AskTutor(context.Background(), "std1", "What is photosynthesis?", ChannelWeb)
	require.NoError(t, err)
	assert.Equal(t, IntentAskQuestion, reply.Intent)
	assert.Equal(t, "biology", reply.Subject)
	assert.Equal(t, gen.answer, reply.Answer)
	assert.Equal(t, 1, emb.hit)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Photosynthesis converts light into chemical energy.")
	assert.Contains(t, gen.prompts[0], "Grade 8")

	require.Len(t, repo.saved, 1)
	assert.Equal(t, 1, repo.saved[0].RetrievedDocs)
}

func TestAskTutorGenerationFailureFallsBack(t *testing.T) {
	repo := &repoStub{}
	gen := &genStub{genErr: errors.New("quota exceeded")}
	svc := newTestService(repo, gen, &embStub{}, &retStub{})

	reply, err := svc.AskTutor(context.Background(), "std1", "Explain fractions please", ChannelWeb)
	require.NoError(t, err)
	assert.Equal(t, fallbackResponse, reply.Answer)
	require.Len(t, repo.saved, 1)
	assert.Equal(t, fallbackResponse, repo.saved[0].Response)
}

func TestAskTutorWeakMatchUsesLLMFallback(t *testing.T) {
	repo := &repoStub{}
	gen := &genStub{answer: "Keep going, you are doing great!", intent: IntentMotivation}
	svc := newTestService(repo, gen, &embStub{}, &retStub{})

	reply, err := svc.AskTutor(context.Background(), "std1", "Tell me something interesting", ChannelWeb)
	require.NoError(t, err)
	assert.Equal(t, 1, gen.classifyHit)
	assert.Equal(t, IntentMotivation, reply.Intent)
}

func TestAskTutorStudentNotFound(t *testing.T) {
	svc := NewService(
		&repoStub{}, &studentsStub{err: student.ErrNotFound}, &perfStub{}, &attStub{},
		&genStub{}, &embStub{}, &retStub{}, nopLogger{},
	)
	_, err := svc.AskTutor(context.Background(), "nope", "Explain fractions", ChannelWeb)
	assert.Equal(t, student.ErrNotFound, errors.Cause(err))
}

func TestAskParent(t *testing.T) {
	repo := &repoStub{}
	gen := &genStub{answer: "Your child is doing well."}
	svc := newTestService(repo, gen, &embStub{}, &retStub{})

	reply, err := svc.AskParent(context.Background(), "std1", "How is my child doing in school?")
	require.NoError(t, err)
	assert.Equal(t, gen.answer, reply.Answer)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "90% (9 of 10 sessions)")
	assert.Contains(t, gen.prompts[0], "mathematics: 7.5/10 average over 2 submissions")
	assert.Contains(t, gen.prompts[0], "Needs more practice")

	require.Len(t, repo.saved, 1)
	assert.Equal(t, ChannelWhatsApp, repo.saved[0].Channel)
}

func TestAddDocument(t *testing.T) {
	ret := &retStub{}
	svc := newTestService(&repoStub{}, &genStub{}, &embStub{}, ret)

	doc, err := svc.AddDocument(context.Background(), NewDocument{
		Subject: "physics", Topic: "Newton's laws", Content: "An object in motion stays in motion.",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	require.Len(t, ret.added, 1)
	assert.Equal(t, "physics", ret.added[0].Subject)
}

func TestAddDocumentEmbeddingFailure(t *testing.T) {
	svc := newTestService(&repoStub{}, &genStub{}, &embStub{err: errors.New("down")}, &retStub{})
	_, err := svc.AddDocument(context.Background(), NewDocument{
		Subject: "physics", Topic: "t", Content: "c",
	})
	assert.Error(t, err)
}
