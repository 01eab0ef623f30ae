package dummydb

import (
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kymoni/elimu/core/assignment"
	"github.com/kymoni/elimu/core/attendance"
	"github.com/kymoni/elimu/core/chat"
	"github.com/kymoni/elimu/core/student"
	"github.com/kymoni/elimu/core/user"
)

type (
	DB struct {
		user        *userTable
		student     *studentTable
		assignment  *assignmentTable
		attendance  *attendanceTable
		interaction *interactionTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	studentTable struct {
		sync.RWMutex
		table      map[string]*student.Student
		embeddings map[string][]float64 // by student code
	}

	assignmentTable struct {
		sync.RWMutex
		assignments map[string]*assignment.Assignment
		submissions map[string]*assignment.Submission
	}

	attendanceTable struct {
		sync.RWMutex
		table map[string]*attendance.Session
	}

	interactionTable struct {
		sync.RWMutex
		table map[string]*chat.Interaction
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:        &userTable{table: make(map[string]*user.User)},
		student:     &studentTable{table: make(map[string]*student.Student), embeddings: make(map[string][]float64)},
		assignment:  &assignmentTable{assignments: make(map[string]*assignment.Assignment), submissions: make(map[string]*assignment.Submission)},
		attendance:  &attendanceTable{table: make(map[string]*attendance.Session)},
		interaction: &interactionTable{table: make(map[string]*chat.Interaction)},
	}
	return db, nil
}

func newPK() string {
	return primitive.NewObjectID().Hex()
}
