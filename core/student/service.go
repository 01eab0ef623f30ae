package student

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound      = errors.New("student not found")
	ErrProfileExists = errors.New("a profile for this user already exists")
)

type (
	Repository interface {
		CreateStudent(ctx context.Context, std Student) (Student, error)
		GetStudentByID(ctx context.Context, id string) (Student, error)
		GetStudentByCode(ctx context.Context, code string) (Student, error)
		GetStudentByUserID(ctx context.Context, userID string) (Student, error)
		GetStudentByParentPhone(ctx context.Context, phone string) (Student, error)
		FilterStudents(ctx context.Context, filter QueryFilter) ([]Student, error)
		UpdateStudent(ctx context.Context, std Student) (Student, error)
		AppendFeedback(ctx context.Context, id string, fb Feedback) error
	}

	// MediaStorage uploads images and returns a public URL (Cloudinary).
	MediaStorage interface {
		UploadImage(ctx context.Context, r io.Reader, filename string) (string, error)
	}

	// FaceIndexer registers a student portrait with the face recognition service.
	FaceIndexer interface {
		RegisterFace(ctx context.Context, studentCode, photoURL string) error
	}

	Service interface {
		Enroll(ctx context.Context, ns NewStudent) (Student, error)
		GetByID(ctx context.Context, id string) (Student, error)
		GetByCode(ctx context.Context, code string) (Student, error)
		GetByUserID(ctx context.Context, userID string) (Student, error)
		GetByParentPhone(ctx context.Context, phone string) (Student, error)
		Filter(ctx context.Context, filter QueryFilter) ([]Student, error)
		UpdatePreferences(ctx context.Context, id string, up UpdatePreferences) (Student, error)
		SetPhoto(ctx context.Context, id string, photo io.Reader, filename string) (Student, error)
		AddFeedback(ctx context.Context, id string, fb Feedback) error
	}

	service struct {
		repo    Repository
		media   MediaStorage
		faceIdx FaceIndexer
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, media MediaStorage, faceIdx FaceIndexer) Service {
	return &service{
		repo:    repo,
		media:   media,
		faceIdx: faceIdx,
	}
}

func (svc *service) Enroll(ctx context.Context, ns NewStudent) (Student, error) {
	if _, err := svc.repo.GetStudentByUserID(ctx, ns.UserID); err == nil {
		return Student{}, ErrProfileExists
	} else if errors.Cause(err) != ErrNotFound {
		return Student{}, errors.Wrap(err, "checking existing profile")
	}

	now := time.Now().UTC()
	std := Student{
		UserID:        ns.UserID,
		Code:          newStudentCode(),
		GradeLevel:    ns.GradeLevel,
		Subjects:      ns.Subjects,
		LearningStyle: ns.LearningStyle,
		Interests:     ns.Interests,
		ParentPhone:   ns.ParentPhone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if std.LearningStyle == "" {
		std.LearningStyle = StyleVisual
	}
	return svc.repo.CreateStudent(ctx, std)
}

func (svc *service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

func (svc *service) GetByCode(ctx context.Context, code string) (Student, error) {
	return svc.repo.GetStudentByCode(ctx, code)
}

func (svc *service) GetByUserID(ctx context.Context, userID string) (Student, error) {
	return svc.repo.GetStudentByUserID(ctx, userID)
}

func (svc *service) GetByParentPhone(ctx context.Context, phone string) (Student, error) {
	return svc.repo.GetStudentByParentPhone(ctx, phone)
}

func (svc *service) Filter(ctx context.Context, filter QueryFilter) ([]Student, error) {
	return svc.repo.FilterStudents(ctx, filter)
}

func (svc *service) UpdatePreferences(ctx context.Context, id string, up UpdatePreferences) (Student, error) {
	std, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if up.Subjects != nil {
		std.Subjects = up.Subjects
	}
	if up.LearningStyle != "" {
		std.LearningStyle = up.LearningStyle
	}
	if up.Interests != nil {
		std.Interests = up.Interests
	}
	if up.ParentPhone != "" {
		std.ParentPhone = up.ParentPhone
	}
	std.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, std)
}

// SetPhoto uploads the portrait and registers the face embedding.
// The profile keeps the photo URL even if face registration fails;
// enrollment can be retried by re-uploading.
func (svc *service) SetPhoto(ctx context.Context, id string, photo io.Reader, filename string) (Student, error) {
	std, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		return Student{}, err
	}

	url, err := svc.media.UploadImage(ctx, photo, filename)
	if err != nil {
		return Student{}, errors.Wrap(err, "uploading photo")
	}
	std.PhotoURL = url
	std.FaceEnrolled = svc.faceIdx.RegisterFace(ctx, std.Code, url) == nil
	std.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateStudent(ctx, std)
}

func (svc *service) AddFeedback(ctx context.Context, id string, fb Feedback) error {
	if fb.Date.IsZero() {
		fb.Date = time.Now().UTC()
	}
	return svc.repo.AppendFeedback(ctx, id, fb)
}

func newStudentCode() string {
	return "STU-" + strings.Split(uuid.New().String(), "-")[0]
}
