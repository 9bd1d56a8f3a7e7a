package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/justexisted/bonitaforward-identity/internal/core/domain"
)

const (
	draftKeyPrefix  = "draft:"
	defaultDraftTTL = 24 * time.Hour
)

// DraftStore holds pending profile drafts in Redis, one slot per scope.
// Drafts carry sign-up PII, so the TTL bounds how long an unconsumed one
// can linger, and an optional sealer encrypts the payload at rest.
type DraftStore struct {
	client *redis.Client
	ttl    time.Duration
	sealer *sealer // nil means plaintext JSON
}

// NewDraftStore builds the store. A non-positive ttl falls back to the
// default; a non-empty sealKey enables payload encryption and must be 32
// bytes.
func NewDraftStore(client *redis.Client, ttl time.Duration, sealKey []byte) (*DraftStore, error) {
	if ttl <= 0 {
		ttl = defaultDraftTTL
	}
	var s *sealer
	if len(sealKey) > 0 {
		var err error
		s, err = newSealer(sealKey)
		if err != nil {
			return nil, err
		}
	}
	return &DraftStore{client: client, ttl: ttl, sealer: s}, nil
}

func draftKey(scope string) string {
	return draftKeyPrefix + scope
}

// Get returns the scope's pending draft, or (nil, nil) when none exists.
func (s *DraftStore) Get(ctx context.Context, scope string) (*domain.PendingProfileDraft, error) {
	raw, err := s.client.Get(ctx, draftKey(scope)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("draft get: %w", err)
	}

	if s.sealer != nil {
		raw, err = s.sealer.open(raw)
		if err != nil {
			return nil, fmt.Errorf("draft unseal: %w", err)
		}
	}

	var d domain.PendingProfileDraft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("draft decode: %w", err)
	}
	return &d, nil
}

// Put stores the draft, replacing any previous one for the scope.
func (s *DraftStore) Put(ctx context.Context, scope string, draft domain.PendingProfileDraft) error {
	raw, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("draft encode: %w", err)
	}

	if s.sealer != nil {
		raw, err = s.sealer.seal(raw)
		if err != nil {
			return fmt.Errorf("draft seal: %w", err)
		}
	}

	if err := s.client.Set(ctx, draftKey(scope), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("draft put: %w", err)
	}
	return nil
}

// Remove deletes the scope's draft. Deleting an absent key is a no-op.
func (s *DraftStore) Remove(ctx context.Context, scope string) error {
	if err := s.client.Del(ctx, draftKey(scope)).Err(); err != nil {
		return fmt.Errorf("draft remove: %w", err)
	}
	return nil
}
