package mongorepos

import (
	"regexp"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// oid parses a hex document ID; invalid IDs map to the domain's not-found
// error so handlers treat them as missing records.
func oid(id string, notFound error) (primitive.ObjectID, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, notFound
	}
	return objID, nil
}

func oids(ids []string, notFound error) ([]primitive.ObjectID, error) {
	objIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		objID, err := oid(id, notFound)
		if err != nil {
			return nil, err
		}
		objIDs = append(objIDs, objID)
	}
	return objIDs, nil
}

func trapNoDocsErr(err, notFound error) error {
	if errors.Cause(err) == mongo.ErrNoDocuments {
		return notFound
	}
	return err
}

// searchRegex builds a case-insensitive containment match, with the user
// input escaped.
func searchRegex(search string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
}
