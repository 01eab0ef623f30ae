package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kymoni/elimu/core"
)

type (
	// Record marks one student in a session. Confidence is only set when the
	// mark came from face recognition.
	Record struct {
		StudentID  string  `json:"student_id"`
		Present    bool    `json:"present"`
		Confidence float64 `json:"confidence,omitempty"`
	}

	Session struct {
		ID         string    `json:"id"`
		TeacherID  string    `json:"teacher_id"`
		GradeLevel string    `json:"grade_level"`
		Date       time.Time `json:"date"` // UTC
		PhotoURL   string    `json:"photo_url,omitempty"`
		Records    []Record  `json:"records"`
		CreatedAt  time.Time `json:"created_at"` // UTC
	}

	// Summary aggregates one student's attendance; feeds parent chat context.
	Summary struct {
		StudentID      string      `json:"student_id"`
		TotalSessions  int         `json:"total_sessions"`
		PresentCount   int         `json:"present_count"`
		Rate           float64     `json:"rate"` // 0..100, 0 when no sessions
		RecentAbsences []time.Time `json:"recent_absences"`
	}
)

func (s Session) recordFor(studentID string) (int, bool) {
	for i, rec := range s.Records {
		if rec.StudentID == studentID {
			return i, true
		}
	}
	return 0, false
}

type Correction struct {
	StudentID string `json:"student_id" validate:"required"`
	Present   bool   `json:"present"`
}

func (c *Correction) Validate(validate *validator.Validate) error {
	c.StudentID = core.CleanString(c.StudentID)
	return validate.Struct(c)
}
