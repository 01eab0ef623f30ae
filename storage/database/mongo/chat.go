package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kymoni/elimu/core/chat"
	"github.com/kymoni/elimu/storage/database"
)

type interactionDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	StudentID     string             `bson:"student_id"`
	Question      string             `bson:"question"`
	Response      string             `bson:"response"`
	Intent        string             `bson:"intent"`
	Subject       string             `bson:"subject,omitempty"`
	Channel       string             `bson:"channel"`
	RetrievedDocs int                `bson:"retrieved_docs,omitempty"`
	CreatedAt     time.Time          `bson:"created_at"`
}

func newInteractionDoc(in chat.Interaction) interactionDoc {
	return interactionDoc{
		StudentID:     in.StudentID,
		Question:      in.Question,
		Response:      in.Response,
		Intent:        in.Intent,
		Subject:       in.Subject,
		Channel:       in.Channel,
		RetrievedDocs: in.RetrievedDocs,
		CreatedAt:     in.CreatedAt,
	}
}

func (doc interactionDoc) toInteraction() chat.Interaction {
	return chat.Interaction{
		ID:            doc.ID.Hex(),
		StudentID:     doc.StudentID,
		Question:      doc.Question,
		Response:      doc.Response,
		Intent:        doc.Intent,
		Subject:       doc.Subject,
		Channel:       doc.Channel,
		RetrievedDocs: doc.RetrievedDocs,
		CreatedAt:     doc.CreatedAt,
	}
}

type chatRepository struct {
	coll *mongo.Collection
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *mongo.Database) chat.Repository {
	return &chatRepository{coll: db.Collection(database.InteractionsCollection)}
}

func (repo *chatRepository) CreateInteraction(ctx context.Context, in chat.Interaction) (chat.Interaction, error) {
	doc := newInteractionDoc(in)
	res, err := repo.coll.InsertOne(ctx, doc)
	if err != nil {
		return chat.Interaction{}, errors.Wrap(err, "inserting chat interaction")
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toInteraction(), nil
}

// QueryRecentInteractions returns a student's latest exchanges, most recent
// first.
func (repo *chatRepository) QueryRecentInteractions(ctx context.Context, studentID string, limit int) ([]chat.Interaction, error) {
	cur, err := repo.coll.Find(ctx,
		bson.M{"student_id": studentID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying chat interactions")
	}
	defer cur.Close(ctx)

	interactions := make([]chat.Interaction, 0)
	for cur.Next(ctx) {
		var doc interactionDoc
		if err = cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decoding chat interaction")
		}
		interactions = append(interactions, doc.toInteraction())
	}
	return interactions, errors.Wrap(cur.Err(), "iterating chat interactions")
}
