package repository

import (
	"context"
	"time"

	"together/internal/database"
	"together/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type UserRepo struct {
	collection *mongo.Collection
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		collection: database.GetCollection("users"),
	}
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Create inserts a user. A duplicate email surfaces as the driver's
// duplicate key error; callers check it with mongo.IsDuplicateKeyError.
func (r *UserRepo) Create(ctx context.Context, user *models.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	result, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		return err
	}
	user.ID = result.InsertedID.(bson.ObjectID)
	return nil
}

// LinkPartner resolves user's partner_email to an account id and stores it
// in partner_id, but only while partner_id is still null. Reports whether the
// document changed.
func (r *UserRepo) LinkPartner(ctx context.Context, user *models.User) (bool, error) {
	if user.PartnerEmail == "" || user.HasPartner() {
		return false, nil
	}
	partner, err := r.FindByEmail(ctx, user.PartnerEmail)
	if err != nil || partner == nil {
		return false, err
	}
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": user.ID, "partner_id": nil},
		bson.M{"$set": bson.M{"partner_id": partner.ID}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}
