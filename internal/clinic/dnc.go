package clinic

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DNCList tracks phone numbers that must never be called back. Membership is
// checked before any follow-up or booking is persisted for a number.
type DNCList struct {
	redis *redis.Client
	key   string
}

// NewDNCList creates a do-not-call list scoped to a clinic.
func NewDNCList(redisClient *redis.Client, clinicID string) *DNCList {
	return &DNCList{
		redis: redisClient,
		key:   fmt.Sprintf("clinic:dnc:%s", clinicID),
	}
}

// Contains reports whether the canonical phone number is on the list.
func (l *DNCList) Contains(ctx context.Context, phone string) (bool, error) {
	ok, err := l.redis.SIsMember(ctx, l.key, phone).Result()
	if err != nil {
		return false, fmt.Errorf("clinic: dnc lookup: %w", err)
	}
	return ok, nil
}

// Add registers a canonical phone number on the list.
func (l *DNCList) Add(ctx context.Context, phone string) error {
	if err := l.redis.SAdd(ctx, l.key, phone).Err(); err != nil {
		return fmt.Errorf("clinic: dnc add: %w", err)
	}
	return nil
}

// Remove takes a number off the list, e.g. after renewed consent.
func (l *DNCList) Remove(ctx context.Context, phone string) error {
	if err := l.redis.SRem(ctx, l.key, phone).Err(); err != nil {
		return fmt.Errorf("clinic: dnc remove: %w", err)
	}
	return nil
}
