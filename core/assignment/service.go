package assignment

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/kymoni/elimu/core"
)

var (
	// errors
	ErrNotFound           = errors.New("assignment not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrAlreadySubmitted   = errors.New("assignment already submitted")
	ErrPastDue            = errors.New("assignment is past its due date")
	ErrAnswerCount        = errors.New("answer count does not match question count")

	// fallbackFeedback is returned when the grading call fails; the answer
	// stays gradable by the teacher.
	fallbackScore    = 5.0
	fallbackFeedback = "Please review this topic with your teacher; automatic grading was unavailable."

	// weakThreshold splits question types into weak/strong areas.
	weakThreshold = 0.7
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		GetAssignmentByID(ctx context.Context, id string) (Assignment, error)
		FilterAssignments(ctx context.Context, filter QueryFilter) ([]Assignment, error)
		UpdateAssignment(ctx context.Context, asg Assignment) (Assignment, error)
		DeleteAssignmentsByID(ctx context.Context, ids ...string) error

		CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
		GetSubmissionByID(ctx context.Context, id string) (Submission, error)
		GetSubmission(ctx context.Context, assignmentID, studentID string) (Submission, error)
		QuerySubmissionsByAssignment(ctx context.Context, assignmentID string) ([]Submission, error)
		QuerySubmissionsByStudent(ctx context.Context, studentID string) ([]Submission, error)
		UpdateSubmission(ctx context.Context, sub Submission) (Submission, error)
	}

	// Grader scores a written answer 0..10 with feedback (Gemini).
	Grader interface {
		GradeWritten(ctx context.Context, question, answer, gradeLevel string) (float64, string, error)
	}

	// QuestionGenerator drafts assignment questions (Gemini).
	QuestionGenerator interface {
		GenerateQuestions(ctx context.Context, params GenerateParams, analysis Analysis) ([]Question, error)
	}

	Service interface {
		Create(ctx context.Context, teacherID string, na NewAssignment) (Assignment, error)
		GetByID(ctx context.Context, id string) (Assignment, error)
		Filter(ctx context.Context, filter QueryFilter) ([]Assignment, error)
		Update(ctx context.Context, id string, na NewAssignment) (Assignment, error)
		Delete(ctx context.Context, ids ...string) error

		Submit(ctx context.Context, studentID string, ns NewSubmission) (Submission, error)
		GetSubmissionByID(ctx context.Context, id string) (Submission, error)
		QuerySubmissions(ctx context.Context, assignmentID string) ([]Submission, error)
		QueryStudentSubmissions(ctx context.Context, studentID string) ([]Submission, error)
		OverrideGrade(ctx context.Context, teacherID, submissionID string, g GradeOverride) (Submission, error)

		Progress(ctx context.Context, studentID string) ([]SubjectProgress, error)
		AnalyzePerformance(ctx context.Context, studentID string) (Analysis, error)
		GeneratePreview(ctx context.Context, params GenerateParams) ([]Question, Analysis, error)
	}

	service struct {
		repo      Repository
		grader    Grader
		generator QuestionGenerator
		logger    core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, grader Grader, generator QuestionGenerator, logger core.Logger) Service {
	return &service{
		repo:      repo,
		grader:    grader,
		generator: generator,
		logger:    logger,
	}
}

func (svc *service) Create(ctx context.Context, teacherID string, na NewAssignment) (Assignment, error) {
	now := time.Now().UTC()
	asg := Assignment{
		TeacherID:  teacherID,
		Title:      na.Title,
		Subject:    na.Subject,
		Topic:      na.Topic,
		GradeLevel: na.GradeLevel,
		DueDate:    na.DueDate.UTC(),
		Questions:  na.questions(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return svc.repo.CreateAssignment(ctx, asg)
}

func (svc *service) GetByID(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignmentByID(ctx, id)
}

func (svc *service) Filter(ctx context.Context, filter QueryFilter) ([]Assignment, error) {
	return svc.repo.FilterAssignments(ctx, filter)
}

func (svc *service) Update(ctx context.Context, id string, na NewAssignment) (Assignment, error) {
	asg, err := svc.repo.GetAssignmentByID(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	asg.Title = na.Title
	asg.Subject = na.Subject
	asg.Topic = na.Topic
	asg.GradeLevel = na.GradeLevel
	asg.DueDate = na.DueDate.UTC()
	asg.Questions = na.questions()
	asg.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateAssignment(ctx, asg)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteAssignmentsByID(ctx, ids...)
}

// Submit persists a one-shot submission: duplicate and late submissions are
// rejected, MCQs are scored locally and written answers are sent to the
// grader (with a neutral fallback on failure).
func (svc *service) Submit(ctx context.Context, studentID string, ns NewSubmission) (Submission, error) {
	asg, err := svc.repo.GetAssignmentByID(ctx, ns.AssignmentID)
	if err != nil {
		return Submission{}, err
	}

	now := time.Now().UTC()
	if !asg.DueDate.IsZero() && now.After(asg.DueDate) {
		return Submission{}, ErrPastDue
	}
	if len(ns.Answers) != len(asg.Questions) {
		return Submission{}, ErrAnswerCount
	}
	if _, err = svc.repo.GetSubmission(ctx, asg.ID, studentID); err == nil {
		return Submission{}, ErrAlreadySubmitted
	} else if errors.Cause(err) != ErrSubmissionNotFound {
		return Submission{}, errors.Wrap(err, "checking existing submission")
	}

	sub := Submission{
		AssignmentID: asg.ID,
		StudentID:    studentID,
		Answers:      make([]Answer, 0, len(ns.Answers)),
		SubmittedAt:  now,
	}
	for i, text := range ns.Answers {
		sub.Answers = append(sub.Answers, svc.grade(ctx, asg, asg.Questions[i], text))
	}
	return svc.repo.CreateSubmission(ctx, sub)
}

func (svc *service) grade(ctx context.Context, asg Assignment, q Question, text string) Answer {
	ans := Answer{Text: text}
	switch q.Type {
	case TypeMCQ:
		var score float64
		if strings.EqualFold(strings.TrimSpace(text), strings.TrimSpace(q.CorrectAnswer)) {
			score = MaxScore
		}
		ans.AIScore = &score
	case TypeWritten:
		score, feedback, err := svc.grader.GradeWritten(ctx, q.Text, text, asg.GradeLevel)
		if err != nil {
			svc.logger.Warn("grading written answer", err)
			score, feedback = fallbackScore, fallbackFeedback
		}
		ans.AIScore = &score
		ans.AIFeedback = feedback
	}
	return ans
}

func (svc *service) GetSubmissionByID(ctx context.Context, id string) (Submission, error) {
	return svc.repo.GetSubmissionByID(ctx, id)
}

func (svc *service) QuerySubmissions(ctx context.Context, assignmentID string) ([]Submission, error) {
	return svc.repo.QuerySubmissionsByAssignment(ctx, assignmentID)
}

func (svc *service) QueryStudentSubmissions(ctx context.Context, studentID string) ([]Submission, error) {
	return svc.repo.QuerySubmissionsByStudent(ctx, studentID)
}

func (svc *service) OverrideGrade(ctx context.Context, teacherID, submissionID string, g GradeOverride) (Submission, error) {
	sub, err := svc.repo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	if g.AnswerIndex >= len(sub.Answers) {
		return Submission{}, core.NewValidationError(errors.New("answer index out of range"),
			core.FieldError{Field: "answer_index", Error: "out of range"})
	}
	sub.Answers[g.AnswerIndex].Override = &TeacherOverride{
		TeacherID: teacherID,
		Score:     g.Score,
		Feedback:  g.Feedback,
		At:        time.Now().UTC(),
	}
	return svc.repo.UpdateSubmission(ctx, sub)
}

// Progress aggregates a student's effective scores per subject.
func (svc *service) Progress(ctx context.Context, studentID string) ([]SubjectProgress, error) {
	subs, err := svc.repo.QuerySubmissionsByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	type agg struct {
		sum float64
		n   int
	}
	perSubject := make(map[string]*agg)
	order := make([]string, 0)
	for _, sub := range subs {
		avg, ok := sub.AverageScore()
		if !ok {
			continue
		}
		asg, err := svc.repo.GetAssignmentByID(ctx, sub.AssignmentID)
		if err != nil {
			continue // assignment deleted; skip
		}
		a, ok := perSubject[asg.Subject]
		if !ok {
			a = &agg{}
			perSubject[asg.Subject] = a
			order = append(order, asg.Subject)
		}
		a.sum += avg
		a.n++
	}

	progress := make([]SubjectProgress, 0, len(order))
	for _, subject := range order {
		a := perSubject[subject]
		progress = append(progress, SubjectProgress{
			Subject:      subject,
			Submissions:  a.n,
			AverageScore: a.sum / float64(a.n),
		})
	}
	return progress, nil
}

// AnalyzePerformance buckets question types into weak/strong areas from a
// student's past MCQ submissions (success rate below 70% is weak).
func (svc *service) AnalyzePerformance(ctx context.Context, studentID string) (Analysis, error) {
	subs, err := svc.repo.QuerySubmissionsByStudent(ctx, studentID)
	if err != nil {
		return Analysis{}, err
	}

	type stats struct {
		correct, total int
	}
	perType := make(map[string]*stats)
	for _, sub := range subs {
		asg, err := svc.repo.GetAssignmentByID(ctx, sub.AssignmentID)
		if err != nil {
			continue
		}
		for i, ans := range sub.Answers {
			if i >= len(asg.Questions) {
				break
			}
			q := asg.Questions[i]
			if q.Type != TypeMCQ {
				continue
			}
			st, ok := perType[q.Type]
			if !ok {
				st = &stats{}
				perType[q.Type] = st
			}
			st.total++
			if strings.EqualFold(strings.TrimSpace(ans.Text), strings.TrimSpace(q.CorrectAnswer)) {
				st.correct++
			}
		}
	}

	var analysis Analysis
	for qType, st := range perType {
		if float64(st.correct)/float64(st.total) < weakThreshold {
			analysis.WeakAreas = append(analysis.WeakAreas, qType)
		} else {
			analysis.StrongAreas = append(analysis.StrongAreas, qType)
		}
	}
	return analysis, nil
}

// GeneratePreview drafts questions with the generator, informed by the
// student's weak/strong areas. The preview is not persisted; the teacher
// accepts it via Create.
func (svc *service) GeneratePreview(ctx context.Context, params GenerateParams) ([]Question, Analysis, error) {
	var analysis Analysis
	if params.StudentID != "" {
		var err error
		if analysis, err = svc.AnalyzePerformance(ctx, params.StudentID); err != nil {
			return nil, Analysis{}, errors.Wrap(err, "analyzing performance")
		}
	}

	questions, err := svc.generator.GenerateQuestions(ctx, params, analysis)
	if err != nil {
		return nil, Analysis{}, errors.Wrap(err, "generating questions")
	}
	return questions, analysis, nil
}
