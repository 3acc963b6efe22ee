package schema

import (
	"context"
	"errors"
	"fmt"

	"together/internal/database"
	"together/internal/models"
	"together/internal/repository"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// codeNamespaceExists is returned by createCollection for a taken name.
const codeNamespaceExists = 48

// MongoStore implements Store on the connected database.DB.
type MongoStore struct {
	db    *mongo.Database
	users *repository.UserRepo
}

func NewMongoStore() *MongoStore {
	return &MongoStore{
		db:    database.DB,
		users: repository.NewUserRepo(),
	}
}

func (s *MongoStore) CollectionNames(ctx context.Context) ([]string, error) {
	return s.db.ListCollectionNames(ctx, bson.D{})
}

func (s *MongoStore) CreateCollection(ctx context.Context, name string) error {
	err := s.db.CreateCollection(ctx, name)
	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) && serverErr.HasErrorCode(codeNamespaceExists) {
		return ErrCollectionExists
	}
	return err
}

func (s *MongoStore) CreateIndex(ctx context.Context, spec IndexSpec) (string, error) {
	model := mongo.IndexModel{Keys: spec.Keys}
	if spec.Unique {
		model.Options = options.Index().SetUnique(true)
	}
	return s.db.Collection(spec.Collection).Indexes().CreateOne(ctx, model)
}

func (s *MongoStore) InsertUser(ctx context.Context, user *models.User) error {
	err := s.users.Create(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func (s *MongoStore) LinkPartner(ctx context.Context, email string) (bool, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil || user == nil {
		return false, err
	}
	return s.users.LinkPartner(ctx, user)
}
