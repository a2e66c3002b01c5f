package session

import (
	"strconv"
	"time"
)

// Session is one authenticated device/browser instance. The record and its
// refresh-token fingerprint always change together; a session whose
// fingerprint no longer matches is invalid by definition.
type Session struct {
	ID        string
	SubjectID string
	TenantID  string
	Role      string
	Status    uint8

	Device string
	IP     string

	// Fingerprint is the hex SHA-256 of the currently valid refresh token.
	Fingerprint string

	CreatedAt  int64
	LastUsedAt int64
	ExpiresAt  int64
}

// Expired reports whether the record's absolute expiry has passed.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt <= now.Unix()
}

// hash field names, kept short: sessions are read on every refresh.
const (
	fieldSubject     = "sub"
	fieldTenant      = "tid"
	fieldRole        = "role"
	fieldStatus      = "st"
	fieldDevice      = "dev"
	fieldIP          = "ip"
	fieldFingerprint = "fp"
	fieldCreatedAt   = "ca"
	fieldLastUsed    = "lu"
	fieldExpiresAt   = "exp"
)

func (s *Session) fields() map[string]interface{} {
	return map[string]interface{}{
		fieldSubject:     s.SubjectID,
		fieldTenant:      s.TenantID,
		fieldRole:        s.Role,
		fieldStatus:      strconv.FormatUint(uint64(s.Status), 10),
		fieldDevice:      s.Device,
		fieldIP:          s.IP,
		fieldFingerprint: s.Fingerprint,
		fieldCreatedAt:   strconv.FormatInt(s.CreatedAt, 10),
		fieldLastUsed:    strconv.FormatInt(s.LastUsedAt, 10),
		fieldExpiresAt:   strconv.FormatInt(s.ExpiresAt, 10),
	}
}

func sessionFromFields(id string, values map[string]string) *Session {
	status, _ := strconv.ParseUint(values[fieldStatus], 10, 8)
	createdAt, _ := strconv.ParseInt(values[fieldCreatedAt], 10, 64)
	lastUsed, _ := strconv.ParseInt(values[fieldLastUsed], 10, 64)
	expiresAt, _ := strconv.ParseInt(values[fieldExpiresAt], 10, 64)

	return &Session{
		ID:          id,
		SubjectID:   values[fieldSubject],
		TenantID:    values[fieldTenant],
		Role:        values[fieldRole],
		Status:      uint8(status),
		Device:      values[fieldDevice],
		IP:          values[fieldIP],
		Fingerprint: values[fieldFingerprint],
		CreatedAt:   createdAt,
		LastUsedAt:  lastUsed,
		ExpiresAt:   expiresAt,
	}
}
