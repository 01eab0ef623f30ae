package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/kymoni/elimu/core/student"
)

type studentRepository struct {
	db *studentTable
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db.student}
}

func (repo *studentRepository) query() []student.Student {
	students := make([]student.Student, 0, len(repo.db.table))
	for _, std := range repo.db.table {
		students = append(students, *std)
	}
	return students
}

func (repo *studentRepository) CreateStudent(_ context.Context, std student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	std.ID = newPK()
	repo.db.table[std.ID] = &std
	return std, nil
}

func (repo *studentRepository) GetStudentByID(_ context.Context, id string) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if std, ok := repo.db.table[id]; ok {
		return *std, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) GetStudentByCode(_ context.Context, code string) (student.Student, error) {
	return repo.getOne(func(std student.Student) bool { return std.Code == code })
}

func (repo *studentRepository) GetStudentByUserID(_ context.Context, userID string) (student.Student, error) {
	return repo.getOne(func(std student.Student) bool { return std.UserID == userID })
}

func (repo *studentRepository) GetStudentByParentPhone(_ context.Context, phone string) (student.Student, error) {
	return repo.getOne(func(std student.Student) bool { return std.ParentPhone != "" && std.ParentPhone == phone })
}

func (repo *studentRepository) FilterStudents(_ context.Context, filter student.QueryFilter) ([]student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := make([]student.Student, 0)
	for _, std := range repo.query() {
		if filter.Search != "" && !strings.Contains(strings.ToLower(std.Code), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.GradeLevel != "" && std.GradeLevel != filter.GradeLevel {
			continue
		}
		if filter.Subject != "" && !contains(std.Subjects, filter.Subject) {
			continue
		}
		students = append(students, std)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Code < students[j].Code })
	return students, nil
}

func (repo *studentRepository) UpdateStudent(_ context.Context, std student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[std.ID]; !ok {
		return student.Student{}, student.ErrNotFound
	}
	repo.db.table[std.ID] = &std
	return std, nil
}

func (repo *studentRepository) AppendFeedback(_ context.Context, id string, fb student.Feedback) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	std, ok := repo.db.table[id]
	if !ok {
		return student.ErrNotFound
	}
	std.FeedbackHistory = append(std.FeedbackHistory, fb)
	return nil
}

func (repo *studentRepository) SaveFaceEmbedding(_ context.Context, studentCode string, embedding []float64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, std := range repo.db.table {
		if std.Code == studentCode {
			repo.db.embeddings[studentCode] = embedding
			return nil
		}
	}
	return student.ErrNotFound
}

func (repo *studentRepository) getOne(match func(student.Student) bool) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, std := range repo.query() {
		if match(std) {
			return std, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func contains(vals []string, val string) bool {
	for _, v := range vals {
		if v == val {
			return true
		}
	}
	return false
}
