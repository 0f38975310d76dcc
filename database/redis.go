package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"educhat/backend/utils"

	"github.com/redis/go-redis/v9"
)

const otpKeyPrefix = "otp:"

// ConnectRedis opens a client and pings it.
func ConnectRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping Redis at %s: %w", addr, err)
	}
	return client, nil
}

// OTPStore keeps verification codes in Redis, expiring them with key TTLs.
type OTPStore struct {
	client *redis.Client
}

func NewOTPStore(client *redis.Client) *OTPStore {
	return &OTPStore{client: client}
}

func otpKey(email string) string { return otpKeyPrefix + email }

// SaveCode replaces any pending code for email.
func (s *OTPStore) SaveCode(ctx context.Context, email, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, otpKey(email), code, ttl).Err(); err != nil {
		return fmt.Errorf("save code: %w", err)
	}
	return nil
}

func (s *OTPStore) GetCode(ctx context.Context, email string) (string, error) {
	code, err := s.client.Get(ctx, otpKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return "", utils.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get code: %w", err)
	}
	return code, nil
}

func (s *OTPStore) DeleteCode(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, otpKey(email)).Err(); err != nil {
		return fmt.Errorf("delete code: %w", err)
	}
	return nil
}
