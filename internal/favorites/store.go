package favorites

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Store keeps per-user starred-lead markers and guest read state in Redis.
// Starred markers live forever; guest read state expires so anonymous
// sessions do not accumulate.
type Store struct {
	redis    *redis.Client
	guestTTL time.Duration
	tracer   trace.Tracer
}

// NewStore creates a favorites store. guestTTL bounds how long anonymous
// read state is retained.
func NewStore(client *redis.Client, guestTTL time.Duration) *Store {
	if client == nil {
		panic("favorites: redis client cannot be nil")
	}
	if guestTTL <= 0 {
		guestTTL = 14 * 24 * time.Hour
	}
	return &Store{
		redis:    client,
		guestTTL: guestTTL,
		tracer:   otel.Tracer("leadflow.internal.favorites"),
	}
}

func starKey(userID string) string {
	return fmt.Sprintf("favorites:starred:%s", userID)
}

func guestReadKey(sessionID string) string {
	return fmt.Sprintf("favorites:guest_read:%s", sessionID)
}

// Star marks a lead as starred for a user.
func (s *Store) Star(ctx context.Context, userID, leadID string) error {
	ctx, span := s.tracer.Start(ctx, "favorites.star")
	defer span.End()

	if err := s.redis.SAdd(ctx, starKey(userID), leadID).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("favorites: failed to star lead: %w", err)
	}
	return nil
}

// Unstar removes the starred marker. Removing a lead that was never
// starred is not an error.
func (s *Store) Unstar(ctx context.Context, userID, leadID string) error {
	ctx, span := s.tracer.Start(ctx, "favorites.unstar")
	defer span.End()

	if err := s.redis.SRem(ctx, starKey(userID), leadID).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("favorites: failed to unstar lead: %w", err)
	}
	return nil
}

// Starred returns the set of lead IDs the user has starred.
func (s *Store) Starred(ctx context.Context, userID string) ([]string, error) {
	ctx, span := s.tracer.Start(ctx, "favorites.starred")
	defer span.End()

	ids, err := s.redis.SMembers(ctx, starKey(userID)).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("favorites: failed to load starred leads: %w", err)
	}
	return ids, nil
}

// IsStarred reports whether the user has starred the lead.
func (s *Store) IsStarred(ctx context.Context, userID, leadID string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "favorites.is_starred")
	defer span.End()

	ok, err := s.redis.SIsMember(ctx, starKey(userID), leadID).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("favorites: failed to check starred lead: %w", err)
	}
	return ok, nil
}

// MarkGuestRead records message IDs a guest session has read and renews
// the session's expiry window.
func (s *Store) MarkGuestRead(ctx context.Context, sessionID string, messageIDs ...string) error {
	ctx, span := s.tracer.Start(ctx, "favorites.mark_guest_read")
	defer span.End()

	if len(messageIDs) == 0 {
		return nil
	}
	members := make([]interface{}, len(messageIDs))
	for i, id := range messageIDs {
		members[i] = id
	}
	key := guestReadKey(sessionID)
	pipe := s.redis.TxPipeline()
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, s.guestTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("favorites: failed to record guest read state: %w", err)
	}
	return nil
}

// GuestRead returns the message IDs a guest session has already read.
// An expired or unknown session yields an empty set.
func (s *Store) GuestRead(ctx context.Context, sessionID string) (map[string]bool, error) {
	ctx, span := s.tracer.Start(ctx, "favorites.guest_read")
	defer span.End()

	ids, err := s.redis.SMembers(ctx, guestReadKey(sessionID)).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("favorites: failed to load guest read state: %w", err)
	}
	read := make(map[string]bool, len(ids))
	for _, id := range ids {
		read[id] = true
	}
	return read, nil
}
