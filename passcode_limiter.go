package campusauth

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// passcodeLimiter bounds issuance per email (and per IP when available)
// with fixed windows. Verification attempts are bounded by the record's own
// counter, not here.
type passcodeLimiter struct {
	redis  redis.UniversalClient
	config PasscodeConfig
	prefix string
}

func newPasscodeLimiter(client redis.UniversalClient, cfg PasscodeConfig, prefix string) *passcodeLimiter {
	return &passcodeLimiter{redis: client, config: cfg, prefix: prefix}
}

// CheckIssue enforces the issue window. A nil return permits issuance and
// has already counted this request against the window.
func (l *passcodeLimiter) CheckIssue(ctx context.Context, email, ip string) error {
	if l.config.IssueLimit <= 0 || l.config.IssueWindow <= 0 {
		return nil
	}

	if err := l.enforceFixedWindow(ctx, l.prefix+":otpl:e:"+email); err != nil {
		return err
	}
	if ip != "" {
		if err := l.enforceFixedWindow(ctx, l.prefix+":otpl:ip:"+ip); err != nil {
			return err
		}
	}
	return nil
}

func (l *passcodeLimiter) enforceFixedWindow(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errPasscodeRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.IssueWindow).Err(); err != nil {
			return fmt.Errorf("%w: %v", errPasscodeRedisUnavailable, err)
		}
	}

	if count > int64(l.config.IssueLimit) {
		return ErrOTPRateLimited
	}

	return nil
}
