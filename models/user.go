package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role distinguishes lecturers from students.
type Role string

const (
	RoleLecturer Role = "lecturer"
	RoleStudent  Role = "student"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleLecturer || r == RoleStudent
}

// User is a registered account. Password holds the bcrypt hash and is never serialized.
type User struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name                string             `bson:"name" json:"name"`
	Email               string             `bson:"email" json:"email"`
	Password            string             `bson:"password" json:"-"`
	Role                Role               `bson:"role" json:"role"`
	Department          string             `bson:"department,omitempty" json:"department,omitempty"`
	Faculty             string             `bson:"faculty,omitempty" json:"faculty,omitempty"`
	MatriculationNumber string             `bson:"matriculationNumber,omitempty" json:"matriculationNumber,omitempty"`
	CreatedAt           time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Summary returns the public projection embedded in chats and messages.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// UserSummary is the {id, name, email, role} expansion of a user reference.
type UserSummary struct {
	ID    primitive.ObjectID `json:"_id"`
	Name  string             `json:"name"`
	Email string             `json:"email,omitempty"`
	Role  Role               `json:"role"`
}

// RegisterRequest is the body of POST /users/register.
type RegisterRequest struct {
	Name                string `json:"name"`
	Email               string `json:"email"`
	Password            string `json:"password"`
	Role                Role   `json:"role"`
	Department          string `json:"department"`
	Faculty             string `json:"faculty"`
	MatriculationNumber string `json:"matriculationNumber"`
	OTP                 string `json:"otp"`
}

// LoginRequest is the body of POST /users/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	*User
	Token string `json:"token"`
}

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Message string `json:"message"`
}
