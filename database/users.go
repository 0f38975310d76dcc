package database

import (
	"context"
	"fmt"
	"regexp"

	"educhat/backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (s *Store) InsertUser(ctx context.Context, user *models.User) error {
	res, err := s.users.InsertOne(ctx, user)
	if err != nil {
		return mapError(err)
	}
	user.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *Store) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, mapError(err)
	}
	return &user, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&user); err != nil {
		return nil, mapError(err)
	}
	return &user, nil
}

func (s *Store) FindUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	return s.findUsers(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.findUsers(ctx, bson.M{})
}

// SearchLecturers matches query as a literal, case-insensitive substring of
// a lecturer's name, faculty or department.
func (s *Store) SearchLecturers(ctx context.Context, query string) ([]models.User, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	return s.findUsers(ctx, bson.M{
		"role": models.RoleLecturer,
		"$or": bson.A{
			bson.M{"name": pattern},
			bson.M{"faculty": pattern},
			bson.M{"department": pattern},
		},
	})
}

func (s *Store) findUsers(ctx context.Context, filter bson.M) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	return users, nil
}
