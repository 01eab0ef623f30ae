package assignment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kymoni/elimu/core"
)

// Question types
const (
	TypeMCQ     = "mcq"
	TypeWritten = "written"
)

// Scores are on a 0..10 scale, mirroring the grading rubric of the
// correction prompt.
const MaxScore = 10.0

type (
	Question struct {
		Type          string   `json:"type"`
		Text          string   `json:"text"`
		Options       []string `json:"options,omitempty"`        // mcq only
		CorrectAnswer string   `json:"correct_answer,omitempty"` // mcq only; hidden from students
	}

	Assignment struct {
		ID         string     `json:"id"`
		TeacherID  string     `json:"teacher_id"`
		Title      string     `json:"title"`
		Subject    string     `json:"subject"`
		Topic      string     `json:"topic"`
		GradeLevel string     `json:"grade_level"`
		DueDate    time.Time  `json:"due_date"` // UTC
		Questions  []Question `json:"questions"`
		CreatedAt  time.Time  `json:"created_at"` // UTC
		UpdatedAt  time.Time  `json:"updated_at"` // UTC
	}

	// TeacherOverride replaces an AI grade on a single answer.
	TeacherOverride struct {
		TeacherID string    `json:"teacher_id"`
		Score     float64   `json:"score"`
		Feedback  string    `json:"feedback,omitempty"`
		At        time.Time `json:"at"` // UTC
	}

	// Answer is positional: Answers[i] responds to Assignment.Questions[i].
	Answer struct {
		Text       string           `json:"text"`
		AIScore    *float64         `json:"ai_score,omitempty"`
		AIFeedback string           `json:"ai_feedback,omitempty"`
		Override   *TeacherOverride `json:"teacher_override,omitempty"`
	}

	Submission struct {
		ID           string    `json:"id"`
		AssignmentID string    `json:"assignment_id"`
		StudentID    string    `json:"student_id"`
		Answers      []Answer  `json:"answers"`
		SubmittedAt  time.Time `json:"submitted_at"` // UTC
	}

	// SubjectProgress aggregates a student's graded scores for one subject.
	SubjectProgress struct {
		Subject      string  `json:"subject"`
		Submissions  int     `json:"submissions"`
		AverageScore float64 `json:"average_score"` // 0..10
	}

	// Analysis reports question types a student cohort handles well or poorly.
	Analysis struct {
		WeakAreas   []string `json:"weak_areas"`
		StrongAreas []string `json:"strong_areas"`
	}
)

// EffectiveScore returns the teacher override when present, the AI score otherwise.
func (a Answer) EffectiveScore() (float64, bool) {
	if a.Override != nil {
		return a.Override.Score, true
	}
	if a.AIScore != nil {
		return *a.AIScore, true
	}
	return 0, false
}

// AverageScore averages all graded answers of the submission.
func (s Submission) AverageScore() (float64, bool) {
	var sum float64
	var n int
	for _, ans := range s.Answers {
		if score, ok := ans.EffectiveScore(); ok {
			sum += score
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// ForStudent strips answer keys before an assignment is shown to a student.
func (a Assignment) ForStudent() Assignment {
	questions := make([]Question, len(a.Questions))
	copy(questions, a.Questions)
	for i := range questions {
		questions[i].CorrectAnswer = ""
	}
	a.Questions = questions
	return a
}

type NewQuestion struct {
	Type          string   `json:"type" validate:"required,oneof=mcq written"`
	Text          string   `json:"text" validate:"required"`
	Options       []string `json:"options" validate:"required_if=Type mcq,omitempty,min=2,dive,required"`
	CorrectAnswer string   `json:"correct_answer" validate:"required_if=Type mcq"`
}

type NewAssignment struct {
	Title      string        `json:"title" validate:"required"`
	Subject    string        `json:"subject" validate:"required"`
	Topic      string        `json:"topic"`
	GradeLevel string        `json:"grade_level" validate:"required"`
	DueDate    time.Time     `json:"due_date" validate:"required"`
	Questions  []NewQuestion `json:"questions" validate:"required,min=1,dive"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Subject = core.CleanString(na.Subject, true /* lower */)
	na.Topic = core.CleanString(na.Topic)
	na.GradeLevel = core.CleanString(na.GradeLevel)
	return validate.Struct(na)
}

func (na NewAssignment) questions() []Question {
	questions := make([]Question, 0, len(na.Questions))
	for _, nq := range na.Questions {
		questions = append(questions, Question{
			Type:          nq.Type,
			Text:          nq.Text,
			Options:       nq.Options,
			CorrectAnswer: nq.CorrectAnswer,
		})
	}
	return questions
}

type NewSubmission struct {
	AssignmentID string   `json:"assignment_id" validate:"required"`
	Answers      []string `json:"answers" validate:"required,min=1"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.AssignmentID = core.CleanString(ns.AssignmentID)
	return validate.Struct(ns)
}

type GradeOverride struct {
	AnswerIndex int     `json:"answer_index" validate:"min=0"`
	Score       float64 `json:"score" validate:"min=0,max=10"`
	Feedback    string  `json:"feedback"`
}

func (g *GradeOverride) Validate(validate *validator.Validate) error {
	return validate.Struct(g)
}

// GenerateParams drive AI question generation for an assignment preview.
type GenerateParams struct {
	Subject    string `json:"subject" validate:"required"`
	Topic      string `json:"topic" validate:"required"`
	GradeLevel string `json:"grade_level" validate:"required"`
	StudentID  string `json:"student_id"` // optional: tailor analysis to one student
}

func (gp *GenerateParams) Validate(validate *validator.Validate) error {
	gp.Subject = core.CleanString(gp.Subject, true /* lower */)
	gp.Topic = core.CleanString(gp.Topic)
	gp.GradeLevel = core.CleanString(gp.GradeLevel)
	return validate.Struct(gp)
}

type QueryFilter struct {
	Subject    string `query:"subject"`
	GradeLevel string `query:"grade_level"`
	TeacherID  string `query:"teacher_id"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Subject == "" && qf.GradeLevel == "" && qf.TeacherID == ""
}

func (qf *QueryFilter) Clean() {
	qf.Subject = core.CleanString(qf.Subject, true /* lower */)
	qf.GradeLevel = core.CleanString(qf.GradeLevel)
	qf.TeacherID = core.CleanString(qf.TeacherID)
}
