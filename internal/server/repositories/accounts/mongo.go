package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CollectionName is the Mongo collection holding accounts. The field names
// below match documents written by the previous Node service.
const CollectionName = "users"

type accountDocument struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	Email       string        `bson:"email"`
	Password    string        `bson:"password"`
	DisplayName string        `bson:"displayName"`
	Bio         string        `bson:"userBio"`
	Avatar      string        `bson:"userImage,omitempty"`
	CreatedAt   time.Time     `bson:"createdAt"`
}

func toDocument(a *models.Account) accountDocument {
	return accountDocument{
		Email:       a.Email,
		Password:    a.PasswordHash,
		DisplayName: a.DisplayName,
		Bio:         a.Bio,
		Avatar:      a.Avatar,
		CreatedAt:   a.CreatedAt,
	}
}

func (d *accountDocument) account() *models.Account {
	return &models.Account{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		PasswordHash: d.Password,
		DisplayName:  d.DisplayName,
		Bio:          d.Bio,
		Avatar:       d.Avatar,
		CreatedAt:    d.CreatedAt,
	}
}

type MongoRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(CollectionName), now: time.Now}
}

// emailCollation compares emails ignoring case. Documents written by the
// Node service keep the address as it was typed, while new accounts store
// it lower-cased; both must be found by the same lookup.
var emailCollation = &options.Collation{Locale: "en", Strength: 2}

func emailIndex() mongo.IndexModel {
	return mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetCollation(emailCollation).
			SetName("email_unique_ci"),
	}
}

// EnsureIndexes creates the case-insensitive unique email index that Create
// and FindByEmail rely on.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, emailIndex())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}},
		options.FindOne().SetCollation(emailCollation))
}

func (r *MongoRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, common.ErrorNotFound
	}
	return r.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (r *MongoRepository) findOne(ctx context.Context, filter bson.D, opts ...options.Lister[options.FindOneOptions]) (*models.Account, error) {
	var doc accountDocument
	if err := r.coll.FindOne(ctx, filter, opts...).Decode(&doc); err != nil {
		return nil, mapMongoError(err)
	}
	return doc.account(), nil
}

func (r *MongoRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	doc := toDocument(account)
	doc.ID = bson.NewObjectID()
	doc.CreatedAt = r.now().UTC().Truncate(time.Millisecond)

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, mapMongoError(err)
	}

	return doc.account(), nil
}

func (r *MongoRepository) DeleteByID(ctx context.Context, id string) (*models.Account, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, common.ErrorNotFound
	}

	var doc accountDocument
	if err := r.coll.FindOneAndDelete(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc); err != nil {
		return nil, mapMongoError(err)
	}
	return doc.account(), nil
}

func (r *MongoRepository) Update(ctx context.Context, id string, update models.ProfileUpdate) (*models.Account, error) {
	set := updateDocument(update)
	if len(set) == 0 {
		return r.FindByID(ctx, id)
	}

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, common.ErrorNotFound
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc accountDocument
	err = r.coll.FindOneAndUpdate(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: set}},
		opts,
	).Decode(&doc)
	if err != nil {
		return nil, mapMongoError(err)
	}
	return doc.account(), nil
}

func updateDocument(u models.ProfileUpdate) bson.D {
	set := bson.D{}
	if u.DisplayName != nil {
		set = append(set, bson.E{Key: "displayName", Value: *u.DisplayName})
	}
	if u.Bio != nil {
		set = append(set, bson.E{Key: "userBio", Value: *u.Bio})
	}
	if u.Avatar != nil {
		set = append(set, bson.E{Key: "userImage", Value: *u.Avatar})
	}
	return set
}

func mapMongoError(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return common.ErrorNotFound
	case mongo.IsDuplicateKeyError(err):
		return common.ErrorConflict
	default:
		return fmt.Errorf("db error: %w", err)
	}
}
