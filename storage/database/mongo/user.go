package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kymoni/elimu/core/user"
	"github.com/kymoni/elimu/storage/database"
)

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Name         string             `bson:"name"`
	Username     string             `bson:"username,omitempty"`
	Email        string             `bson:"email"`
	Phone        string             `bson:"phone,omitempty"`
	IsActive     bool               `bson:"is_active"`
	Roles        []string           `bson:"roles"`
	PasswordHash []byte             `bson:"password_hash"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
	LastLogin    time.Time          `bson:"last_login,omitempty"`
}

func newUserDoc(usr user.User) userDoc {
	doc := userDoc{
		Name:         usr.Name,
		Username:     usr.Username,
		Email:        usr.Email,
		Phone:        usr.Phone,
		Roles:        usr.Roles,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt,
		UpdatedAt:    usr.UpdatedAt,
		LastLogin:    usr.LastLogin,
	}
	if usr.IsActive != nil {
		doc.IsActive = *usr.IsActive
	}
	return doc
}

func (doc userDoc) toUser() user.User {
	isActive := doc.IsActive
	return user.User{
		ID:           doc.ID.Hex(),
		Name:         doc.Name,
		Username:     doc.Username,
		Email:        doc.Email,
		Phone:        doc.Phone,
		IsActive:     &isActive,
		Roles:        doc.Roles,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		LastLogin:    doc.LastLogin,
	}
}

type userRepository struct {
	coll *mongo.Collection
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *mongo.Database) user.Repository {
	return &userRepository{coll: db.Collection(database.UsersCollection)}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	exclIDs := make([]primitive.ObjectID, 0, len(excludedUsers))
	for _, usr := range excludedUsers {
		if objID, err := primitive.ObjectIDFromHex(usr.ID); err == nil {
			exclIDs = append(exclIDs, objID)
		}
	}

	check := func(field, value string, exists error) error {
		if value == "" {
			return nil
		}
		filter := bson.M{field: value}
		if len(exclIDs) > 0 {
			filter["_id"] = bson.M{"$nin": exclIDs}
		}
		n, err := repo.coll.CountDocuments(ctx, filter)
		if err != nil {
			return errors.Wrapf(err, "counting users by %s", field)
		}
		if n > 0 {
			return exists
		}
		return nil
	}

	if err := check("username", username, user.ErrUsernameExists); err != nil {
		return err
	}
	return check("email", email, user.ErrEmailExists)
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	doc := newUserDoc(usr)
	res, err := repo.coll.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	doc.ID = res.InsertedID.(primitive.ObjectID)
	return doc.toUser(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	objID, err := oid(id, user.ErrNotFound)
	if err != nil {
		return user.User{}, err
	}
	return repo.getOne(ctx, bson.M{"_id": objID})
}

func (repo *userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return repo.getOne(ctx, bson.M{"username": username})
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getOne(ctx, bson.M{"email": email})
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	return repo.getOne(ctx, bson.M{"$or": bson.A{
		bson.M{"username": username},
		bson.M{"email": username},
	}})
}

func (repo *userRepository) GetUserByPhone(ctx context.Context, phone string) (user.User, error) {
	return repo.getOne(ctx, bson.M{"phone": phone})
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	query := bson.M{}
	if filter.Search != "" {
		re := searchRegex(filter.Search)
		query["$or"] = bson.A{
			bson.M{"name": re},
			bson.M{"username": re},
			bson.M{"email": re},
		}
	}
	if len(filter.Roles) > 0 {
		query["roles"] = bson.M{"$in": filter.Roles}
	}
	if filter.IsActive != nil {
		query["is_active"] = *filter.IsActive
	}

	cur, err := repo.coll.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	defer cur.Close(ctx)

	users := make([]user.User, 0)
	for cur.Next(ctx) {
		var doc userDoc
		if err = cur.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "decoding user")
		}
		users = append(users, doc.toUser())
	}
	return users, errors.Wrap(cur.Err(), "iterating users")
}

// UpdateUser applies the non-zero fields of usr; isActive is applied when
// non-nil. The updated user is returned.
func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	objID, err := oid(usr.ID, user.ErrNotFound)
	if err != nil {
		return user.User{}, err
	}

	set := bson.M{"updated_at": usr.UpdatedAt}
	if usr.UpdatedAt.IsZero() {
		set["updated_at"] = time.Now().UTC()
	}
	if usr.Name != "" {
		set["name"] = usr.Name
	}
	if usr.Username != "" {
		set["username"] = usr.Username
	}
	if usr.Email != "" {
		set["email"] = usr.Email
	}
	if usr.Phone != "" {
		set["phone"] = usr.Phone
	}
	if usr.Roles != nil {
		set["roles"] = usr.Roles
	}
	if usr.PasswordHash != nil {
		set["password_hash"] = usr.PasswordHash
	}
	if !usr.LastLogin.IsZero() {
		set["last_login"] = usr.LastLogin
	}
	if isActive != nil {
		set["is_active"] = *isActive
	}

	var doc userDoc
	err = repo.coll.FindOneAndUpdate(
		ctx, bson.M{"_id": objID}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return user.User{}, trapNoDocsErr(err, user.ErrNotFound)
	}
	return doc.toUser(), nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	objIDs, err := oids(ids, user.ErrNotFound)
	if err != nil {
		return err
	}
	_, err = repo.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": objIDs}})
	return errors.Wrap(err, "deleting users")
}

func (repo *userRepository) getOne(ctx context.Context, filter bson.M) (user.User, error) {
	var doc userDoc
	if err := repo.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return user.User{}, trapNoDocsErr(err, user.ErrNotFound)
	}
	return doc.toUser(), nil
}
