// Package revocation implements the cache-backed revocation ledger: a
// blacklist of subjects and individual token IDs whose outstanding tokens
// must fail validation before their natural expiry.
//
// Checks are single Redis GETs so the ledger can sit on the hot path of
// every authenticated request. How a backend outage is treated (fail-open vs
// fail-closed) is the caller's decision; this package only reports the error.
package revocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var checkDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "campusauth_revocation_check_duration_ms",
	Help:    "Latency of revocation ledger checks in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

// ErrRedisUnavailable wraps ledger backend failures.
var ErrRedisUnavailable = errors.New("revocation redis unavailable")

const (
	subjectKeyPrefix = "rvs:"
	tokenKeyPrefix   = "rvt:"
)

// Entry is the stored ledger record.
type Entry struct {
	Reason    string    `json:"reason"`
	RevokedAt time.Time `json:"revoked_at"`
}

// Store is a Redis-backed revocation ledger.
type Store struct {
	redis redis.UniversalClient
}

func NewStore(client redis.UniversalClient) *Store {
	return &Store{redis: client}
}

// BlacklistSubject shadows every outstanding token for a subject. The TTL
// must be at least as long as the longest-lived token kind it must cover.
func (s *Store) BlacklistSubject(ctx context.Context, subjectID, reason string, ttl time.Duration) error {
	if subjectID == "" {
		return nil
	}
	if ttl <= 0 {
		return errors.New("revocation ttl must be positive")
	}

	entry, err := json.Marshal(Entry{Reason: reason, RevokedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, subjectKeyPrefix+subjectID, entry, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// UnblacklistSubject lifts a subject-level revocation.
func (s *Store) UnblacklistSubject(ctx context.Context, subjectID string) error {
	if subjectID == "" {
		return nil
	}
	if err := s.redis.Del(ctx, subjectKeyPrefix+subjectID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsSubjectBlacklisted is the hot-path check: one GET, key existence is the
// answer.
func (s *Store) IsSubjectBlacklisted(ctx context.Context, subjectID string) (bool, error) {
	start := time.Now()
	defer func() {
		checkDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if subjectID == "" {
		return false, nil
	}
	return s.exists(ctx, subjectKeyPrefix+subjectID)
}

// SubjectEntry returns the stored entry for a blacklisted subject, or nil.
func (s *Store) SubjectEntry(ctx context.Context, subjectID string) (*Entry, error) {
	data, err := s.redis.Get(ctx, subjectKeyPrefix+subjectID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// RevokeToken shadows one token by jti until its natural expiry.
func (s *Store) RevokeToken(ctx context.Context, jti, reason string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}

	entry, err := json.Marshal(Entry{Reason: reason, RevokedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, tokenKeyPrefix+jti, entry, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsTokenRevoked checks a single token ID.
func (s *Store) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	start := time.Now()
	defer func() {
		checkDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if jti == "" {
		return false, nil
	}
	return s.exists(ctx, tokenKeyPrefix+jti)
}

func (s *Store) exists(ctx context.Context, key string) (bool, error) {
	n, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}
