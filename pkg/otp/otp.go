package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/go-redis/redis/v8"
)

// Purposes scope an OTP to a single flow; a code issued for one purpose
// never verifies against another.
const PurposeResultAccess = "result_access"

const codeLength = 6

// Store issues and verifies one-time passwords. At most one live code per
// (contact, purpose): issuing a new one replaces any outstanding code, and
// verification consumes the code.
type Store interface {
	Invalidate(ctx context.Context, contact, purpose string) error
	Create(ctx context.Context, contact, purpose string) (string, error)
	Verify(ctx context.Context, contact, code, purpose string) (bool, error)
}

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) Store {
	return &redisStore{client: client, ttl: ttl}
}

func key(contact, purpose string) string {
	return fmt.Sprintf("otp:%s:%s", contact, purpose)
}

func (s *redisStore) Invalidate(ctx context.Context, contact, purpose string) error {
	if err := s.client.Del(ctx, key(contact, purpose)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate otp: %w", err)
	}
	return nil
}

// Create overwrites any outstanding code for the contact and purpose.
// Two concurrent requests resolve as last write wins.
func (s *redisStore) Create(ctx context.Context, contact, purpose string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", err
	}

	if err := s.client.Set(ctx, key(contact, purpose), code, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store otp: %w", err)
	}
	return code, nil
}

// Verify compares the submitted code and deletes it on success: a code
// verifies exactly once. Expired keys are gone from redis already.
func (s *redisStore) Verify(ctx context.Context, contact, code, purpose string) (bool, error) {
	k := key(contact, purpose)

	stored, err := s.client.Get(ctx, k).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read otp: %w", err)
	}

	if stored != code {
		return false, nil
	}

	if err := s.client.Del(ctx, k).Err(); err != nil {
		return false, fmt.Errorf("failed to consume otp: %w", err)
	}
	return true, nil
}

func generateCode() (string, error) {
	max := big.NewInt(10)
	code := make([]byte, codeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate otp code: %w", err)
		}
		code[i] = byte('0' + n.Int64())
	}
	return string(code), nil
}
