package utils

import (
	"context"
	"errors"
	"sort"
	"time"

	"educhat/backend/models"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type contextKey string

const userKey contextKey = "user"

// WithUser attaches the authenticated user to ctx.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user attached by the auth middleware or the socket handshake.
func UserFromContext(ctx context.Context) (*models.User, error) {
	user, ok := ctx.Value(userKey).(*models.User)
	if !ok || user == nil {
		return nil, NewError(ErrUnauthenticated, "Not authorized, no token")
	}
	return user, nil
}

// Claims is the JWT payload. The user id travels as "id".
type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// GenerateJWT signs an HS256 token for userID that expires after ttl.
func GenerateJWT(userID primitive.ObjectID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", errors.New("failed to sign token")
	}
	return tokenString, nil
}

// ParseJWT verifies tokenString and returns the user id it carries.
// Every failure, expiry included, is reported as ErrUnauthenticated.
func ParseJWT(tokenString, secret string) (primitive.ObjectID, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return primitive.NilObjectID, &Error{Kind: ErrUnauthenticated, Message: "Not authorized, token failed"}
	}
	if !token.Valid {
		return primitive.NilObjectID, NewError(ErrUnauthenticated, "Not authorized, token failed")
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return primitive.NilObjectID, NewError(ErrUnauthenticated, "Not authorized, token failed")
	}
	return userID, nil
}

// SortObjectIDs sorts ids by their hex form.
func SortObjectIDs(ids []primitive.ObjectID) {
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].Hex() < ids[j].Hex()
	})
}

// DirectKey identifies the direct chat between two users regardless of argument order.
func DirectKey(a, b primitive.ObjectID) string {
	ids := []primitive.ObjectID{a, b}
	SortObjectIDs(ids)
	return ids[0].Hex() + ":" + ids[1].Hex()
}

// ParseObjectID parses a hex id, reporting malformed input as ErrInvalidArgument.
func ParseObjectID(field, hex string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, NewError(ErrInvalidArgument, "Invalid "+field+" format")
	}
	return id, nil
}
