package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kymoni/elimu/core/attendance"
	"github.com/kymoni/elimu/storage/database"
)

type (
	recordDoc struct {
		StudentID  string  `bson:"student_id"`
		Present    bool    `bson:"present"`
		Confidence float64 `bson:"confidence,omitempty"`
	}

	sessionDoc struct {
		ID         primitive.ObjectID `bson:"_id,omitempty"`
		TeacherID  string             `bson:"teacher_id"`
		GradeLevel string             `bson:"grade_level"`
		Date       time.Time          `bson:"date"`
		PhotoURL   string             `bson:"photo_url,omitempty"`
		Records    []recordDoc        `bson:"records"`
		CreatedAt  time.Time          `bson:"created_at"`
	}
)

func newSessionDoc(s attendance.Session) sessionDoc {
	doc := sessionDoc{
		TeacherID:  s.TeacherID,
		GradeLevel: s.GradeLevel,
		Date:       s.Date,
		PhotoURL:   s.PhotoURL,
		CreatedAt:  s.CreatedAt,
	}
	for _, rec := range s.Records {
		doc.Records = append(doc.Records, recordDoc(rec))
	}
	return doc
}

func (doc sessionDoc) toSession() attendance.Session {
	s := attendance.Session{
		ID:         doc.ID.Hex(),
		TeacherID:  doc.TeacherID,
		GradeLevel: doc.GradeLevel,
		Date:       doc.Date,
		PhotoURL:   doc.PhotoURL,
		CreatedAt:  doc.CreatedAt,
	}
	for _, recDoc := range doc.Records {
		s.Records = append(s.Records, attendance.Record(recDoc))
	}
	return s
}

type attendanceRepository struct {
	coll *mongo.Collection
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *mongo.Database) attendance.Repository {
	return &attendanceRepository{coll: db.Collection(database.AttendanceCollection)}
}

func (repo *attendanceRepository) CreateSession(ctx context.Context, s attendance.Session) (attendance.Session, error) {
	doc := newSessionDoc(s)
	res, err := repo.coll.InsertOne(ctx, doc)
	if err != nil {
		return attendance.Session{}, errors.Wrap(err, "inserting attendance session")
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toSession(), nil
}

func (repo *attendanceRepository) GetSessionByID(ctx context.Context, id string) (attendance.Session, error) {
	objID, err := oid(id, attendance.ErrNotFound)
	if err != nil {
		return attendance.Session{}, err
	}
	var doc sessionDoc
	if err = repo.coll.FindOne(ctx, bson.M{"_id": objID}).Decode(&doc); err != nil {
		return attendance.Session{}, trapNoDocsErr(err, attendance.ErrNotFound)
	}
	return doc.toSession(), nil
}

// QuerySessionsByStudent returns a student's sessions, most recent first.
func (repo *attendanceRepository) QuerySessionsByStudent(ctx context.Context, studentID string) ([]attendance.Session, error) {
	cur, err := repo.coll.Find(ctx,
		bson.M{"records.student_id": studentID},
		options.Find().SetSort(bson.D{{Key: "date", Value: -1}}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying attendance sessions")
	}
	defer cur.Close(ctx)

	sessions := make([]attendance.Session, 0)
	for cur.Next(ctx) {
		var doc sessionDoc
		if err = cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decoding attendance session")
		}
		sessions = append(sessions, doc.toSession())
	}
	return sessions, errors.Wrap(cur.Err(), "iterating attendance sessions")
}

func (repo *attendanceRepository) UpdateSession(ctx context.Context, s attendance.Session) (attendance.Session, error) {
	objID, err := oid(s.ID, attendance.ErrNotFound)
	if err != nil {
		return attendance.Session{}, err
	}

	doc := newSessionDoc(s)
	var updated sessionDoc
	err = repo.coll.FindOneAndUpdate(
		ctx, bson.M{"_id": objID}, bson.M{"$set": bson.M{"records": doc.Records}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return attendance.Session{}, trapNoDocsErr(err, attendance.ErrNotFound)
	}
	return updated.toSession(), nil
}
