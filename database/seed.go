package database

import (
	"context"
	"fmt"
	"log/slog"

	"educhat/backend/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

const seedPassword = "password123"

// Seed inserts demo users and chats into an empty database.
func (s *Store) Seed(ctx context.Context, log *slog.Logger) error {
	count, err := s.users.CountDocuments(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}
	log.Info("seeding initial data")

	hashed, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	now := s.now().UTC()
	people := []struct {
		name, email string
		role        models.Role
	}{
		{"Dr. Smith", "smith@example.com", models.RoleLecturer},
		{"Dr. Johnson", "johnson@example.com", models.RoleLecturer},
		{"Alice", "alice@example.com", models.RoleStudent},
		{"Bob", "bob@example.com", models.RoleStudent},
		{"Charlie", "charlie@example.com", models.RoleStudent},
	}
	ids := make([]primitive.ObjectID, len(people))
	for i, p := range people {
		user := &models.User{
			Name:      p.name,
			Email:     p.email,
			Password:  string(hashed),
			Role:      p.role,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.InsertUser(ctx, user); err != nil {
			return fmt.Errorf("seed user %s: %w", p.email, err)
		}
		ids[i] = user.ID
	}
	smith, johnson, alice, bob, charlie := ids[0], ids[1], ids[2], ids[3], ids[4]

	chats := []*models.Chat{
		{Name: "CS101 General Chat", CreatorID: smith, Participants: []primitive.ObjectID{smith, alice, bob, charlie}},
		{Name: "Physics 202 Discussion", CreatorID: johnson, Participants: []primitive.ObjectID{johnson, alice, bob}},
	}
	for _, chat := range chats {
		chat.IsGroupChat = true
		chat.CreatedAt, chat.UpdatedAt = now, now
		if err := s.InsertChat(ctx, chat); err != nil {
			return fmt.Errorf("seed chat %q: %w", chat.Name, err)
		}
	}

	log.Info("initial data seeded", slog.Int("users", len(people)), slog.Int("chats", len(chats)))
	return nil
}
