package attendance

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/kymoni/elimu/core"
	"github.com/kymoni/elimu/core/student"
)

var (
	// errors
	ErrNotFound        = errors.New("attendance session not found")
	ErrStudentNotInSet = errors.New("student not part of this session")

	recentAbsenceLimit = 3
)

type (
	Repository interface {
		CreateSession(ctx context.Context, s Session) (Session, error)
		GetSessionByID(ctx context.Context, id string) (Session, error)
		QuerySessionsByStudent(ctx context.Context, studentID string) ([]Session, error)
		UpdateSession(ctx context.Context, s Session) (Session, error)
	}

	// Match is one face recognized in a classroom photo.
	Match struct {
		StudentCode string
		Confidence  float64
	}

	// Recognizer identifies enrolled students in a photo (external service).
	Recognizer interface {
		Identify(ctx context.Context, photoURL string) ([]Match, error)
	}

	Service interface {
		MarkFromPhoto(ctx context.Context, teacherID, gradeLevel string, photo io.Reader, filename string) (Session, error)
		Correct(ctx context.Context, sessionID string, c Correction) (Session, error)
		GetByID(ctx context.Context, id string) (Session, error)
		QueryByStudent(ctx context.Context, studentID string) ([]Session, error)
		Summarize(ctx context.Context, studentID string) (Summary, error)
	}

	service struct {
		repo       Repository
		students   student.Service
		media      student.MediaStorage
		recognizer Recognizer
		logger     core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, students student.Service, media student.MediaStorage, recognizer Recognizer, logger core.Logger) Service {
	return &service{
		repo:       repo,
		students:   students,
		media:      media,
		recognizer: recognizer,
		logger:     logger,
	}
}

// MarkFromPhoto uploads the classroom photo, asks the face service who is in
// it and records a session: matched students present, the rest of the grade
// roster absent.
func (svc *service) MarkFromPhoto(ctx context.Context, teacherID, gradeLevel string, photo io.Reader, filename string) (Session, error) {
	roster, err := svc.students.Filter(ctx, student.QueryFilter{GradeLevel: gradeLevel})
	if err != nil {
		return Session{}, errors.Wrap(err, "loading roster")
	}

	url, err := svc.media.UploadImage(ctx, photo, filename)
	if err != nil {
		return Session{}, errors.Wrap(err, "uploading classroom photo")
	}

	matches, err := svc.recognizer.Identify(ctx, url)
	if err != nil {
		// the session is still recorded; the teacher corrects it by hand
		svc.logger.Warn("face recognition unavailable", err)
		matches = nil
	}
	confidences := make(map[string]float64, len(matches))
	for _, m := range matches {
		confidences[m.StudentCode] = m.Confidence
	}

	now := time.Now().UTC()
	s := Session{
		TeacherID:  teacherID,
		GradeLevel: gradeLevel,
		Date:       now.Truncate(24 * time.Hour),
		PhotoURL:   url,
		Records:    make([]Record, 0, len(roster)),
		CreatedAt:  now,
	}
	for _, std := range roster {
		rec := Record{StudentID: std.ID}
		if conf, ok := confidences[std.Code]; ok {
			rec.Present = true
			rec.Confidence = conf
		}
		s.Records = append(s.Records, rec)
	}
	return svc.repo.CreateSession(ctx, s)
}

func (svc *service) Correct(ctx context.Context, sessionID string, c Correction) (Session, error) {
	s, err := svc.repo.GetSessionByID(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	i, ok := s.recordFor(c.StudentID)
	if !ok {
		return Session{}, ErrStudentNotInSet
	}
	s.Records[i].Present = c.Present
	s.Records[i].Confidence = 0 // manual mark
	return svc.repo.UpdateSession(ctx, s)
}

func (svc *service) GetByID(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSessionByID(ctx, id)
}

func (svc *service) QueryByStudent(ctx context.Context, studentID string) ([]Session, error) {
	return svc.repo.QuerySessionsByStudent(ctx, studentID)
}

func (svc *service) Summarize(ctx context.Context, studentID string) (Summary, error) {
	sessions, err := svc.repo.QuerySessionsByStudent(ctx, studentID)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{StudentID: studentID}
	for _, s := range sessions {
		i, ok := s.recordFor(studentID)
		if !ok {
			continue
		}
		sum.TotalSessions++
		if s.Records[i].Present {
			sum.PresentCount++
		} else if len(sum.RecentAbsences) < recentAbsenceLimit {
			// sessions are queried most recent first
			sum.RecentAbsences = append(sum.RecentAbsences, s.Date)
		}
	}
	if sum.TotalSessions > 0 {
		sum.Rate = float64(sum.PresentCount) / float64(sum.TotalSessions) * 100
	}
	return sum, nil
}
