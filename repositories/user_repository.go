package repositories

import (
	"context"
	"errors"
	"time"
	"transferdesk/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UserRepository struct {
	collection *mongo.Collection
	locations  *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		collection: db.Collection("users"),
		locations:  db.Collection("locations"),
	}
}

func (ur *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.ID = primitive.NewObjectID()
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	_, err := ur.collection.InsertOne(ctx, user)
	return err
}

func (ur *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errors.New("invalid user ID")
	}

	var user models.User
	err = ur.collection.FindOne(ctx, bson.M{
		"_id":       objectID,
		"isDeleted": bson.M{"$ne": true},
	}).Decode(&user)

	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.New("user not found")
		}
		return nil, err
	}

	return &user, nil
}

// GetUsersAtLocation returns the active users holding any of the given
// roles at the location identified by its short code (the form events carry
// in their payload, e.g. "L2").
func (ur *UserRepository) GetUsersAtLocation(ctx context.Context, locationCode string, roles []models.Role) ([]models.User, error) {
	var location models.Location
	err := ur.locations.FindOne(ctx, bson.M{
		"code":     locationCode,
		"isActive": true,
	}).Decode(&location)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return []models.User{}, nil
		}
		return nil, err
	}

	roleValues := make([]string, 0, len(roles))
	for _, role := range roles {
		roleValues = append(roleValues, string(role))
	}

	cursor, err := ur.collection.Find(ctx, bson.M{
		"locationId": location.ID.Hex(),
		"role":       bson.M{"$in": roleValues},
		"isActive":   true,
		"isDeleted":  bson.M{"$ne": true},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}

	return users, nil
}

func (ur *UserRepository) GetUsersByIDs(ctx context.Context, userIDs []string) ([]models.User, error) {
	objectIDs := make([]primitive.ObjectID, 0, len(userIDs))
	for _, id := range userIDs {
		objectID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		objectIDs = append(objectIDs, objectID)
	}
	if len(objectIDs) == 0 {
		return []models.User{}, nil
	}

	cursor, err := ur.collection.Find(ctx, bson.M{
		"_id":       bson.M{"$in": objectIDs},
		"isActive":  true,
		"isDeleted": bson.M{"$ne": true},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}

	return users, nil
}

func (ur *UserRepository) GetUsers(ctx context.Context, req models.GetUsersRequest) ([]models.User, int64, error) {
	filter := bson.M{"isDeleted": bson.M{"$ne": true}}
	if req.Role != "" {
		filter["role"] = req.Role
	}
	if req.LocationID != "" {
		filter["locationId"] = req.LocationID
	}

	total, err := ur.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	opts := options.Find().
		SetSort(bson.M{"lastName": 1, "firstName": 1}).
		SetSkip(int64((page - 1) * pageSize)).
		SetLimit(int64(pageSize))

	cursor, err := ur.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// SetOnShift flips a user's on-shift flag. Shift state feeds recipient
// conditions like recipientOnShift equals true.
func (ur *UserRepository) SetOnShift(ctx context.Context, id string, onShift bool) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errors.New("invalid user ID")
	}

	result, err := ur.collection.UpdateOne(
		ctx,
		bson.M{"_id": objectID, "isDeleted": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"onShift": onShift, "updatedAt": time.Now()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return errors.New("user not found")
	}

	return nil
}
