package campusauth

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const passcodeKeyPrefix = "otp"

var (
	errPasscodeRedisUnavailable = errors.New("passcode redis unavailable")
	errPasscodeConflict         = errors.New("passcode record contention")
)

// passcodeRecord is the ephemeral OTP state for one email. Only the code's
// SHA-256 is stored.
type passcodeRecord struct {
	CodeHash  string          `json:"ch"`
	Purpose   PasscodePurpose `json:"prp"`
	Attempts  int             `json:"att"`
	IP        string          `json:"ip,omitempty"`
	Verified  bool            `json:"vf,omitempty"`
	CreatedAt int64           `json:"ca"`
	ExpiresAt int64           `json:"exp"`
}

// passcodeOutcome reports one verification call. Exactly one of the failure
// flags is set on a non-valid outcome; Attempts reflects the post-call
// counter.
type passcodeOutcome struct {
	Valid           bool
	Attempts        int
	Exceeded        bool
	Expired         bool
	PurposeMismatch bool
	IPMismatch      bool
}

type passcodeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newPasscodeStore(client redis.UniversalClient, prefix string) *passcodeStore {
	if prefix == "" {
		prefix = passcodeKeyPrefix
	}
	return &passcodeStore{redis: client, prefix: prefix}
}

func (s *passcodeStore) key(email string) string {
	return s.prefix + ":" + email
}

// Save overwrites any prior record for the email. Attempt counters reset
// with the new record.
func (s *passcodeStore) Save(ctx context.Context, email string, record *passcodeRecord, ttl time.Duration) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(email), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errPasscodeRedisUnavailable, err)
	}
	return nil
}

// Delete rolls back a record, used when out-of-band delivery fails.
func (s *passcodeStore) Delete(ctx context.Context, email string) error {
	if err := s.redis.Del(ctx, s.key(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errPasscodeRedisUnavailable, err)
	}
	return nil
}

// Verify runs one attempt against the stored record inside a WATCH
// transaction, so two concurrent guesses cannot both observe the same
// counter. The counter advances on every call that reaches the code check,
// right or wrong; the exceeded check runs before the code comparison. When
// consume is true and the candidate matches, the record is deleted;
// otherwise a match only sets the verified flag, leaving the record live
// for exactly one later consuming call.
func (s *passcodeStore) Verify(
	ctx context.Context,
	email string,
	purpose PasscodePurpose,
	candidateHash [32]byte,
	clientIP string,
	consume bool,
	maxAttempts int,
) (*passcodeOutcome, error) {
	const maxRetries = 4
	key := s.key(email)

	for i := 0; i < maxRetries; i++ {
		var outcome *passcodeOutcome

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				outcome = &passcodeOutcome{Expired: true}
				return nil
			}
			if err != nil {
				return fmt.Errorf("%w: %v", errPasscodeRedisUnavailable, err)
			}

			var record passcodeRecord
			if err := json.Unmarshal(data, &record); err != nil {
				outcome = &passcodeOutcome{Expired: true}
				return s.txDelete(ctx, tx, key)
			}

			now := time.Now().Unix()
			if now > record.ExpiresAt {
				outcome = &passcodeOutcome{Expired: true}
				return s.txDelete(ctx, tx, key)
			}

			if record.Attempts >= maxAttempts {
				outcome = &passcodeOutcome{Exceeded: true, Attempts: record.Attempts}
				return s.txDelete(ctx, tx, key)
			}

			record.Attempts++
			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				outcome = &passcodeOutcome{Expired: true}
				return s.txDelete(ctx, tx, key)
			}

			if record.Purpose != purpose {
				outcome = &passcodeOutcome{PurposeMismatch: true, Attempts: record.Attempts}
				return s.txSave(ctx, tx, key, &record, ttl)
			}

			if record.IP != "" && clientIP != "" && record.IP != clientIP {
				outcome = &passcodeOutcome{IPMismatch: true, Attempts: record.Attempts}
				return s.txSave(ctx, tx, key, &record, ttl)
			}

			candidate := hex.EncodeToString(candidateHash[:])
			if subtle.ConstantTimeCompare([]byte(record.CodeHash), []byte(candidate)) != 1 {
				outcome = &passcodeOutcome{Attempts: record.Attempts}
				return s.txSave(ctx, tx, key, &record, ttl)
			}

			if consume {
				outcome = &passcodeOutcome{Valid: true, Attempts: record.Attempts}
				return s.txDelete(ctx, tx, key)
			}

			record.Verified = true
			outcome = &passcodeOutcome{Valid: true, Attempts: record.Attempts}
			return s.txSave(ctx, tx, key, &record, ttl)
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return outcome, nil
	}

	return nil, errPasscodeConflict
}

func (s *passcodeStore) txDelete(ctx context.Context, tx *redis.Tx, key string) error {
	_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}

func (s *passcodeStore) txSave(ctx context.Context, tx *redis.Tx, key string, record *passcodeRecord, ttl time.Duration) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, encoded, ttl)
		return nil
	})
	return err
}
