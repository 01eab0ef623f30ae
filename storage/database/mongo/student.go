package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kymoni/elimu/core/student"
	"github.com/kymoni/elimu/storage/database"
)

type (
	topicProgressDoc struct {
		Topic       string    `bson:"topic"`
		Proficiency float64   `bson:"proficiency"`
		CoveredAt   time.Time `bson:"covered_at"`
	}

	subjectHistoryDoc struct {
		Subject string             `bson:"subject"`
		Topics  []topicProgressDoc `bson:"topics"`
	}

	feedbackDoc struct {
		Subject  string    `bson:"subject"`
		Topic    string    `bson:"topic"`
		Feedback string    `bson:"feedback"`
		Date     time.Time `bson:"date"`
	}

	studentDoc struct {
		ID              primitive.ObjectID  `bson:"_id,omitempty"`
		UserID          string              `bson:"user_id"`
		Code            string              `bson:"code"`
		GradeLevel      string              `bson:"grade_level"`
		Subjects        []string            `bson:"subjects,omitempty"`
		LearningStyle   string              `bson:"learning_style"`
		Interests       []string            `bson:"interests,omitempty"`
		AcademicHistory []subjectHistoryDoc `bson:"academic_history,omitempty"`
		FeedbackHistory []feedbackDoc       `bson:"feedback_history,omitempty"`
		ParentPhone     string              `bson:"parent_phone,omitempty"`
		PhotoURL        string              `bson:"photo_url,omitempty"`
		FaceEnrolled    bool                `bson:"face_enrolled"`
		// the face recognition service compares against this
		FaceEmbedding []float64 `bson:"embedding,omitempty"`
		CreatedAt     time.Time `bson:"created_at"`
		UpdatedAt     time.Time `bson:"updated_at"`
	}
)

func newStudentDoc(std student.Student) studentDoc {
	doc := studentDoc{
		UserID:        std.UserID,
		Code:          std.Code,
		GradeLevel:    std.GradeLevel,
		Subjects:      std.Subjects,
		LearningStyle: std.LearningStyle,
		Interests:     std.Interests,
		ParentPhone:   std.ParentPhone,
		PhotoURL:      std.PhotoURL,
		FaceEnrolled:  std.FaceEnrolled,
		CreatedAt:     std.CreatedAt,
		UpdatedAt:     std.UpdatedAt,
	}
	for _, sh := range std.AcademicHistory {
		shDoc := subjectHistoryDoc{Subject: sh.Subject}
		for _, tp := range sh.Topics {
			shDoc.Topics = append(shDoc.Topics, topicProgressDoc(tp))
		}
		doc.AcademicHistory = append(doc.AcademicHistory, shDoc)
	}
	for _, fb := range std.FeedbackHistory {
		doc.FeedbackHistory = append(doc.FeedbackHistory, feedbackDoc(fb))
	}
	return doc
}

func (doc studentDoc) toStudent() student.Student {
	std := student.Student{
		ID:            doc.ID.Hex(),
		UserID:        doc.UserID,
		Code:          doc.Code,
		GradeLevel:    doc.GradeLevel,
		Subjects:      doc.Subjects,
		LearningStyle: doc.LearningStyle,
		Interests:     doc.Interests,
		ParentPhone:   doc.ParentPhone,
		PhotoURL:      doc.PhotoURL,
		FaceEnrolled:  doc.FaceEnrolled,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
	for _, shDoc := range doc.AcademicHistory {
		sh := student.SubjectHistory{Subject: shDoc.Subject}
		for _, tpDoc := range shDoc.Topics {
			sh.Topics = append(sh.Topics, student.TopicProgress(tpDoc))
		}
		std.AcademicHistory = append(std.AcademicHistory, sh)
	}
	for _, fbDoc := range doc.FeedbackHistory {
		std.FeedbackHistory = append(std.FeedbackHistory, student.Feedback(fbDoc))
	}
	return std
}

type studentRepository struct {
	coll *mongo.Collection
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *mongo.Database) *studentRepository {
	return &studentRepository{coll: db.Collection(database.StudentsCollection)}
}

func (repo *studentRepository) CreateStudent(ctx context.Context, std student.Student) (student.Student, error) {
	doc := newStudentDoc(std)
	res, err := repo.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return student.Student{}, student.ErrProfileExists
		}
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toStudent(), nil
}

func (repo *studentRepository) GetStudentByID(ctx context.Context, id string) (student.Student, error) {
	objID, err := oid(id, student.ErrNotFound)
	if err != nil {
		return student.Student{}, err
	}
	return repo.getOne(ctx, bson.M{"_id": objID})
}

func (repo *studentRepository) GetStudentByCode(ctx context.Context, code string) (student.Student, error) {
	return repo.getOne(ctx, bson.M{"code": code})
}

func (repo *studentRepository) GetStudentByUserID(ctx context.Context, userID string) (student.Student, error) {
	return repo.getOne(ctx, bson.M{"user_id": userID})
}

func (repo *studentRepository) GetStudentByParentPhone(ctx context.Context, phone string) (student.Student, error) {
	return repo.getOne(ctx, bson.M{"parent_phone": phone})
}

func (repo *studentRepository) FilterStudents(ctx context.Context, filter student.QueryFilter) ([]student.Student, error) {
	query := bson.M{}
	if filter.Search != "" {
		query["code"] = searchRegex(filter.Search)
	}
	if filter.GradeLevel != "" {
		query["grade_level"] = filter.GradeLevel
	}
	if filter.Subject != "" {
		query["subjects"] = filter.Subject
	}

	cur, err := repo.coll.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "code", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "filtering students")
	}
	defer cur.Close(ctx)

	students := make([]student.Student, 0)
	for cur.Next(ctx) {
		var doc studentDoc
		if err = cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decoding student")
		}
		students = append(students, doc.toStudent())
	}
	return students, errors.Wrap(cur.Err(), "iterating students")
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, std student.Student) (student.Student, error) {
	objID, err := oid(std.ID, student.ErrNotFound)
	if err != nil {
		return student.Student{}, err
	}

	doc := newStudentDoc(std)
	set := bson.M{
		"grade_level":    doc.GradeLevel,
		"subjects":       doc.Subjects,
		"learning_style": doc.LearningStyle,
		"interests":      doc.Interests,
		"parent_phone":   doc.ParentPhone,
		"photo_url":      doc.PhotoURL,
		"face_enrolled":  doc.FaceEnrolled,
		"updated_at":     doc.UpdatedAt,
	}

	var updated studentDoc
	err = repo.coll.FindOneAndUpdate(
		ctx, bson.M{"_id": objID}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return student.Student{}, trapNoDocsErr(err, student.ErrNotFound)
	}
	return updated.toStudent(), nil
}

func (repo *studentRepository) AppendFeedback(ctx context.Context, id string, fb student.Feedback) error {
	objID, err := oid(id, student.ErrNotFound)
	if err != nil {
		return err
	}

	res, err := repo.coll.UpdateByID(ctx, objID, bson.M{
		"$push": bson.M{"feedback_history": feedbackDoc(fb)},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return errors.Wrap(err, "appending feedback")
	}
	if res.MatchedCount == 0 {
		return student.ErrNotFound
	}
	return nil
}

// SaveFaceEmbedding stores the portrait embedding the recognition service
// matches classroom photos against.
func (repo *studentRepository) SaveFaceEmbedding(ctx context.Context, studentCode string, embedding []float64) error {
	res, err := repo.coll.UpdateOne(ctx, bson.M{"code": studentCode}, bson.M{
		"$set": bson.M{"embedding": embedding, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return errors.Wrap(err, "storing face embedding")
	}
	if res.MatchedCount == 0 {
		return student.ErrNotFound
	}
	return nil
}

func (repo *studentRepository) getOne(ctx context.Context, filter bson.M) (student.Student, error) {
	var doc studentDoc
	if err := repo.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return student.Student{}, trapNoDocsErr(err, student.ErrNotFound)
	}
	return doc.toStudent(), nil
}
