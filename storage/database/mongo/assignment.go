package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kymoni/elimu/core/assignment"
	"github.com/kymoni/elimu/storage/database"
)

type (
	questionDoc struct {
		Type          string   `bson:"type"`
		Text          string   `bson:"text"`
		Options       []string `bson:"options,omitempty"`
		CorrectAnswer string   `bson:"correct_answer,omitempty"`
	}

	assignmentDoc struct {
		ID         primitive.ObjectID `bson:"_id,omitempty"`
		TeacherID  string             `bson:"teacher_id"`
		Title      string             `bson:"title"`
		Subject    string             `bson:"subject"`
		Topic      string             `bson:"topic,omitempty"`
		GradeLevel string             `bson:"grade_level"`
		DueDate    time.Time          `bson:"due_date"`
		Questions  []questionDoc      `bson:"questions"`
		CreatedAt  time.Time          `bson:"created_at"`
		UpdatedAt  time.Time          `bson:"updated_at"`
	}

	overrideDoc struct {
		TeacherID string    `bson:"teacher_id"`
		Score     float64   `bson:"score"`
		Feedback  string    `bson:"feedback,omitempty"`
		At        time.Time `bson:"at"`
	}

	answerDoc struct {
		Text       string       `bson:"text"`
		AIScore    *float64     `bson:"ai_score,omitempty"`
		AIFeedback string       `bson:"ai_feedback,omitempty"`
		Override   *overrideDoc `bson:"teacher_override,omitempty"`
	}

	submissionDoc struct {
		ID           primitive.ObjectID `bson:"_id,omitempty"`
		AssignmentID string             `bson:"assignment_id"`
		StudentID    string             `bson:"student_id"`
		Answers      []answerDoc        `bson:"answers"`
		SubmittedAt  time.Time          `bson:"submitted_at"`
	}
)

func newAssignmentDoc(asg assignment.Assignment) assignmentDoc {
	doc := assignmentDoc{
		TeacherID:  asg.TeacherID,
		Title:      asg.Title,
		Subject:    asg.Subject,
		Topic:      asg.Topic,
		GradeLevel: asg.GradeLevel,
		DueDate:    asg.DueDate,
		CreatedAt:  asg.CreatedAt,
		UpdatedAt:  asg.UpdatedAt,
	}
	for _, q := range asg.Questions {
		doc.Questions = append(doc.Questions, questionDoc(q))
	}
	return doc
}

func (doc assignmentDoc) toAssignment() assignment.Assignment {
	asg := assignment.Assignment{
		ID:         doc.ID.Hex(),
		TeacherID:  doc.TeacherID,
		Title:      doc.Title,
		Subject:    doc.Subject,
		Topic:      doc.Topic,
		GradeLevel: doc.GradeLevel,
		DueDate:    doc.DueDate,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
	for _, q := range doc.Questions {
		asg.Questions = append(asg.Questions, assignment.Question(q))
	}
	return asg
}

func newSubmissionDoc(sub assignment.Submission) submissionDoc {
	doc := submissionDoc{
		AssignmentID: sub.AssignmentID,
		StudentID:    sub.StudentID,
		SubmittedAt:  sub.SubmittedAt,
	}
	for _, ans := range sub.Answers {
		ansDoc := answerDoc{
			Text:       ans.Text,
			AIScore:    ans.AIScore,
			AIFeedback: ans.AIFeedback,
		}
		if ans.Override != nil {
			ovr := overrideDoc(*ans.Override)
			ansDoc.Override = &ovr
		}
		doc.Answers = append(doc.Answers, ansDoc)
	}
	return doc
}

func (doc submissionDoc) toSubmission() assignment.Submission {
	sub := assignment.Submission{
		ID:           doc.ID.Hex(),
		AssignmentID: doc.AssignmentID,
		StudentID:    doc.StudentID,
		SubmittedAt:  doc.SubmittedAt,
	}
	for _, ansDoc := range doc.Answers {
		ans := assignment.Answer{
			Text:       ansDoc.Text,
			AIScore:    ansDoc.AIScore,
			AIFeedback: ansDoc.AIFeedback,
		}
		if ansDoc.Override != nil {
			ovr := assignment.TeacherOverride(*ansDoc.Override)
			ans.Override = &ovr
		}
		sub.Answers = append(sub.Answers, ans)
	}
	return sub
}

type assignmentRepository struct {
	assignments *mongo.Collection
	submissions *mongo.Collection
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *mongo.Database) assignment.Repository {
	return &assignmentRepository{
		assignments: db.Collection(database.AssignmentsCollection),
		submissions: db.Collection(database.SubmissionsCollection),
	}
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	doc := newAssignmentDoc(asg)
	res, err := repo.assignments.InsertOne(ctx, doc)
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toAssignment(), nil
}

func (repo *assignmentRepository) GetAssignmentByID(ctx context.Context, id string) (assignment.Assignment, error) {
	objID, err := oid(id, assignment.ErrNotFound)
	if err != nil {
		return assignment.Assignment{}, err
	}
	var doc assignmentDoc
	if err = repo.assignments.FindOne(ctx, bson.M{"_id": objID}).Decode(&doc); err != nil {
		return assignment.Assignment{}, trapNoDocsErr(err, assignment.ErrNotFound)
	}
	return doc.toAssignment(), nil
}

func (repo *assignmentRepository) FilterAssignments(ctx context.Context, filter assignment.QueryFilter) ([]assignment.Assignment, error) {
	query := bson.M{}
	if filter.Subject != "" {
		query["subject"] = filter.Subject
	}
	if filter.GradeLevel != "" {
		query["grade_level"] = filter.GradeLevel
	}
	if filter.TeacherID != "" {
		query["teacher_id"] = filter.TeacherID
	}

	cur, err := repo.assignments.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "due_date", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "filtering assignments")
	}
	defer cur.Close(ctx)

	asgs := make([]assignment.Assignment, 0)
	for cur.Next(ctx) {
		var doc assignmentDoc
		if err = cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decoding assignment")
		}
		asgs = append(asgs, doc.toAssignment())
	}
	return asgs, errors.Wrap(cur.Err(), "iterating assignments")
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, asg assignment.Assignment) (assignment.Assignment, error) {
	objID, err := oid(asg.ID, assignment.ErrNotFound)
	if err != nil {
		return assignment.Assignment{}, err
	}

	doc := newAssignmentDoc(asg)
	set := bson.M{
		"title":       doc.Title,
		"subject":     doc.Subject,
		"topic":       doc.Topic,
		"grade_level": doc.GradeLevel,
		"due_date":    doc.DueDate,
		"questions":   doc.Questions,
		"updated_at":  doc.UpdatedAt,
	}

	var updated assignmentDoc
	err = repo.assignments.FindOneAndUpdate(
		ctx, bson.M{"_id": objID}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return assignment.Assignment{}, trapNoDocsErr(err, assignment.ErrNotFound)
	}
	return updated.toAssignment(), nil
}

func (repo *assignmentRepository) DeleteAssignmentsByID(ctx context.Context, ids ...string) error {
	objIDs, err := oids(ids, assignment.ErrNotFound)
	if err != nil {
		return err
	}
	_, err = repo.assignments.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": objIDs}})
	return errors.Wrap(err, "deleting assignments")
}

func (repo *assignmentRepository) CreateSubmission(ctx context.Context, sub assignment.Submission) (assignment.Submission, error) {
	doc := newSubmissionDoc(sub)
	res, err := repo.submissions.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return assignment.Submission{}, assignment.ErrAlreadySubmitted
		}
		return assignment.Submission{}, errors.Wrap(err, "inserting submission")
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toSubmission(), nil
}

func (repo *assignmentRepository) GetSubmissionByID(ctx context.Context, id string) (assignment.Submission, error) {
	objID, err := oid(id, assignment.ErrSubmissionNotFound)
	if err != nil {
		return assignment.Submission{}, err
	}
	return repo.getSubmission(ctx, bson.M{"_id": objID})
}

func (repo *assignmentRepository) GetSubmission(ctx context.Context, assignmentID, studentID string) (assignment.Submission, error) {
	return repo.getSubmission(ctx, bson.M{"assignment_id": assignmentID, "student_id": studentID})
}

func (repo *assignmentRepository) QuerySubmissionsByAssignment(ctx context.Context, assignmentID string) ([]assignment.Submission, error) {
	return repo.querySubmissions(ctx, bson.M{"assignment_id": assignmentID})
}

func (repo *assignmentRepository) QuerySubmissionsByStudent(ctx context.Context, studentID string) ([]assignment.Submission, error) {
	return repo.querySubmissions(ctx, bson.M{"student_id": studentID})
}

func (repo *assignmentRepository) UpdateSubmission(ctx context.Context, sub assignment.Submission) (assignment.Submission, error) {
	objID, err := oid(sub.ID, assignment.ErrSubmissionNotFound)
	if err != nil {
		return assignment.Submission{}, err
	}

	doc := newSubmissionDoc(sub)
	var updated submissionDoc
	err = repo.submissions.FindOneAndUpdate(
		ctx, bson.M{"_id": objID}, bson.M{"$set": bson.M{"answers": doc.Answers}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		return assignment.Submission{}, trapNoDocsErr(err, assignment.ErrSubmissionNotFound)
	}
	return updated.toSubmission(), nil
}

func (repo *assignmentRepository) getSubmission(ctx context.Context, filter bson.M) (assignment.Submission, error) {
	var doc submissionDoc
	if err := repo.submissions.FindOne(ctx, filter).Decode(&doc); err != nil {
		return assignment.Submission{}, trapNoDocsErr(err, assignment.ErrSubmissionNotFound)
	}
	return doc.toSubmission(), nil
}

func (repo *assignmentRepository) querySubmissions(ctx context.Context, filter bson.M) ([]assignment.Submission, error) {
	cur, err := repo.submissions.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "submitted_at", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	defer cur.Close(ctx)

	subs := make([]assignment.Submission, 0)
	for cur.Next(ctx) {
		var doc submissionDoc
		if err = cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decoding submission")
		}
		subs = append(subs, doc.toSubmission())
	}
	return subs, errors.Wrap(cur.Err(), "iterating submissions")
}
