package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// ErrFingerprintMismatch is returned by Rotate when the presented refresh
// fingerprint does not match the registered one (rotation reuse).
var ErrFingerprintMismatch = errors.New("refresh fingerprint mismatch")

// ErrRedisUnavailable wraps backend failures so callers can distinguish
// infrastructure faults from domain outcomes.
var ErrRedisUnavailable = errors.New("session redis unavailable")

const (
	rotateStatusNotFound int64 = 0
	rotateStatusExpired  int64 = 1
	rotateStatusMismatch int64 = 2
	rotateStatusRotated  int64 = 3
)

// rotateScript performs the fingerprint compare-and-swap. A mismatch deletes
// the session: a superseded refresh token was replayed, so the whole token
// family is burned.
const rotateScript = `
local key = KEYS[1]
local user_key = KEYS[2]
local session_id = ARGV[1]
local provided = ARGV[2]
local next_fp = ARGV[3]
local now = tonumber(ARGV[4])

if redis.call("EXISTS", key) == 0 then
  redis.call("SREM", user_key, session_id)
  return {0}
end

local exp = tonumber(redis.call("HGET", key, "exp") or "0")
if exp <= now then
  redis.call("DEL", key)
  redis.call("SREM", user_key, session_id)
  return {1}
end

local fp = redis.call("HGET", key, "fp")
if fp ~= provided then
  redis.call("DEL", key)
  redis.call("SREM", user_key, session_id)
  return {2}
end

redis.call("HSET", key, "fp", next_fp, "lu", now)
local vals = redis.call("HMGET", key, "sub", "tid", "role", "st", "dev", "ip", "ca", "exp")
return {3, vals[1], vals[2], vals[3], vals[4], vals[5], vals[6], vals[7], vals[8]}
`

var rotateLua = redis.NewScript(rotateScript)

const deleteScript = `
local existed = redis.call("EXISTS", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if existed == 1 then
  redis.call("DEL", KEYS[1])
end
return existed
`

var deleteLua = redis.NewScript(deleteScript)

// Store is the Redis-backed session registry.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "cs"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(tenantID, sessionID string) string {
	return s.prefix + ":" + normalizeTenantID(tenantID) + ":" + sessionID
}

func (s *Store) subjectKey(tenantID, subjectID string) string {
	return s.prefix + "u:" + normalizeTenantID(tenantID) + ":" + subjectID
}

func normalizeTenantID(tenantID string) string {
	if tenantID == "" {
		return "0"
	}
	return tenantID
}

// Save persists a session with the given TTL and indexes it under its
// subject. Record and index are written in one transaction.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	key := s.key(sess.TenantID, sess.ID)
	subjectKey := s.subjectKey(sess.TenantID, sess.SubjectID)

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, sess.fields())
		pipe.Expire(ctx, key, ttl)
		pipe.SAdd(ctx, subjectKey, sess.ID)
		pipe.Expire(ctx, subjectKey, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Get fetches a session without mutating any state. Expired records are
// lazily deleted and reported as not found.
func (s *Store) Get(ctx context.Context, tenantID, sessionID string) (*Session, error) {
	values, err := s.redis.HGetAll(ctx, s.key(tenantID, sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}

	sess := sessionFromFields(sessionID, values)
	if sess.Expired(time.Now()) {
		if err := s.Delete(ctx, tenantID, sess.SubjectID, sessionID); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return sess, nil
}

// Touch advances a session's last-used timestamp.
func (s *Store) Touch(ctx context.Context, tenantID, sessionID string, now time.Time) error {
	err := s.redis.HSet(ctx, s.key(tenantID, sessionID), fieldLastUsed, strconv.FormatInt(now.Unix(), 10)).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Rotate atomically swaps the refresh fingerprint. Exactly one concurrent
// caller can win; a loser observes ErrFingerprintMismatch and the session is
// gone. Returns the post-rotation session on success.
func (s *Store) Rotate(
	ctx context.Context,
	tenantID, subjectID, sessionID string,
	providedFP, nextFP string,
	now time.Time,
) (*Session, error) {
	key := s.key(tenantID, sessionID)
	subjectKey := s.subjectKey(tenantID, subjectID)

	result, err := rotateLua.Run(ctx, s.redis,
		[]string{key, subjectKey},
		sessionID, providedFP, nextFP, now.Unix(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid rotate script response", ErrRedisUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid rotate script status", ErrRedisUnavailable)
	}

	switch code {
	case rotateStatusNotFound, rotateStatusExpired:
		return nil, ErrNotFound
	case rotateStatusMismatch:
		return nil, ErrFingerprintMismatch
	case rotateStatusRotated:
		if len(parts) < 9 {
			return nil, fmt.Errorf("%w: short rotate script response", ErrRedisUnavailable)
		}
		values := map[string]string{
			fieldSubject:     luaString(parts[1]),
			fieldTenant:      luaString(parts[2]),
			fieldRole:        luaString(parts[3]),
			fieldStatus:      luaString(parts[4]),
			fieldDevice:      luaString(parts[5]),
			fieldIP:          luaString(parts[6]),
			fieldCreatedAt:   luaString(parts[7]),
			fieldExpiresAt:   luaString(parts[8]),
			fieldLastUsed:    strconv.FormatInt(now.Unix(), 10),
			fieldFingerprint: nextFP,
		}
		return sessionFromFields(sessionID, values), nil
	default:
		return nil, fmt.Errorf("%w: unknown rotate script status", ErrRedisUnavailable)
	}
}

// Delete removes one session and its index entry. Idempotent.
func (s *Store) Delete(ctx context.Context, tenantID, subjectID, sessionID string) error {
	_, err := deleteLua.Run(ctx, s.redis,
		[]string{s.key(tenantID, sessionID), s.subjectKey(tenantID, subjectID)},
		sessionID,
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteAllForSubject removes every session for a subject, optionally keeping
// one (the caller's current session). Returns the number of records removed.
//
// The read and delete phases are separate commands, so a session created in
// between survives this call. The race window is the one the reference
// session fan-out also has; the stray session is caught by a retry or expires
// naturally.
func (s *Store) DeleteAllForSubject(ctx context.Context, tenantID, subjectID, keepSessionID string) (int, error) {
	subjectKey := s.subjectKey(tenantID, subjectID)

	sessionIDs, err := s.redis.SMembers(ctx, subjectKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	removed := 0
	for _, sid := range sessionIDs {
		if sid == keepSessionID {
			continue
		}
		if err := s.Delete(ctx, tenantID, subjectID, sid); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// ListForSubject returns every live session for a subject, pruning expired
// index entries along the way.
func (s *Store) ListForSubject(ctx context.Context, tenantID, subjectID string) ([]*Session, error) {
	subjectKey := s.subjectKey(tenantID, subjectID)

	sessionIDs, err := s.redis.SMembers(ctx, subjectKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []*Session{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(sessionIDs) == 0 {
		return []*Session{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(sessionIDs))
	for i, sid := range sessionIDs {
		cmds[i] = pipe.HGetAll(ctx, s.key(tenantID, sid))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	now := time.Now()
	sessions := make([]*Session, 0, len(sessionIDs))
	for i, cmd := range cmds {
		values, cmdErr := cmd.Result()
		if cmdErr != nil && !errors.Is(cmdErr, redis.Nil) {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, cmdErr)
		}
		if len(values) == 0 {
			// stale index entry
			s.redis.SRem(ctx, subjectKey, sessionIDs[i])
			continue
		}
		sess := sessionFromFields(sessionIDs[i], values)
		if sess.Expired(now) {
			if err := s.Delete(ctx, tenantID, subjectID, sessionIDs[i]); err != nil {
				return nil, err
			}
			continue
		}
		sessions = append(sessions, sess)
	}

	return sessions, nil
}

// ActiveCount returns how many session IDs are indexed for a subject.
func (s *Store) ActiveCount(ctx context.Context, tenantID, subjectID string) (int, error) {
	count, err := s.redis.SCard(ctx, s.subjectKey(tenantID, subjectID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

// Ping reports backend availability and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func luaString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return ""
	}
}
