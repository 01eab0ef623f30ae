package student

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kymoni/elimu/core"
)

// Learning styles
const (
	StyleVisual      = "visual"
	StyleAuditory    = "auditory"
	StyleKinesthetic = "kinesthetic"
	StyleReading     = "reading"
)

var LearningStyles = []string{StyleVisual, StyleAuditory, StyleKinesthetic, StyleReading}

type (
	// TopicProgress tracks coverage of a single topic within a subject.
	TopicProgress struct {
		Topic       string    `json:"topic"`
		Proficiency float64   `json:"proficiency"` // 0..1
		CoveredAt   time.Time `json:"covered_at"`
	}

	SubjectHistory struct {
		Subject string          `json:"subject"`
		Topics  []TopicProgress `json:"topics"`
	}

	Feedback struct {
		Subject  string    `json:"subject"`
		Topic    string    `json:"topic"`
		Feedback string    `json:"feedback"`
		Date     time.Time `json:"date"`
	}

	Student struct {
		ID              string           `json:"id"`
		UserID          string           `json:"user_id"`
		Code            string           `json:"code"` // human-facing student ID, e.g. STU-9f3a21
		GradeLevel      string           `json:"grade_level"`
		Subjects        []string         `json:"subjects"`
		LearningStyle   string           `json:"learning_style"`
		Interests       []string         `json:"interests"`
		AcademicHistory []SubjectHistory `json:"academic_history"`
		FeedbackHistory []Feedback       `json:"feedback_history"`
		ParentPhone     string           `json:"parent_phone,omitempty"`
		PhotoURL        string           `json:"photo_url,omitempty"`
		FaceEnrolled    bool             `json:"face_enrolled"`
		CreatedAt       time.Time        `json:"created_at"` // UTC
		UpdatedAt       time.Time        `json:"updated_at"` // UTC
	}
)

// SummarizeAcademicHistory renders the academic history in natural language,
// capped to the first 3 subjects; fed into tutor prompts.
func (s Student) SummarizeAcademicHistory() string {
	if len(s.AcademicHistory) == 0 {
		return "No academic history available."
	}

	limit := len(s.AcademicHistory)
	if limit > 3 {
		limit = 3
	}
	summaries := make([]string, 0, limit)
	for _, sh := range s.AcademicHistory[:limit] {
		if n := len(sh.Topics); n > 0 {
			summaries = append(summaries, fmt.Sprintf("%s: %d topics covered", sh.Subject, n))
		} else {
			summaries = append(summaries, fmt.Sprintf("%s: Just started", sh.Subject))
		}
	}
	return strings.Join(summaries, "; ")
}

// NewStudent contains information needed to enroll a Student profile.
type NewStudent struct {
	UserID        string   `json:"user_id" validate:"required"`
	GradeLevel    string   `json:"grade_level" validate:"required"`
	Subjects      []string `json:"subjects" validate:"omitempty,dive,required"`
	LearningStyle string   `json:"learning_style" validate:"omitempty,oneof=visual auditory kinesthetic reading"`
	Interests     []string `json:"interests"`
	ParentPhone   string   `json:"parent_phone" validate:"omitempty,phone"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.UserID = core.CleanString(ns.UserID)
	ns.GradeLevel = core.CleanString(ns.GradeLevel)
	ns.LearningStyle = core.CleanString(ns.LearningStyle, true /* lower */)
	ns.ParentPhone = core.CleanString(ns.ParentPhone)
	return validate.Struct(ns)
}

// UpdatePreferences defines the fields a student may change on their own profile.
type UpdatePreferences struct {
	Subjects      []string `json:"subjects" validate:"omitempty,dive,required"`
	LearningStyle string   `json:"learning_style" validate:"omitempty,oneof=visual auditory kinesthetic reading"`
	Interests     []string `json:"interests"`
	ParentPhone   string   `json:"parent_phone" validate:"omitempty,phone"`
}

func (up *UpdatePreferences) Validate(validate *validator.Validate) error {
	up.LearningStyle = core.CleanString(up.LearningStyle, true /* lower */)
	up.ParentPhone = core.CleanString(up.ParentPhone)
	return validate.Struct(up)
}

type QueryFilter struct {
	Search     string `query:"search"` // matches Code
	GradeLevel string `query:"grade_level"`
	Subject    string `query:"subject"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.GradeLevel == "" && qf.Subject == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.GradeLevel = core.CleanString(qf.GradeLevel)
	qf.Subject = core.CleanString(qf.Subject, true /* lower */)
}
