package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrExpired is returned by Decode when the token's exp claim has passed.
	ErrExpired = errors.New("token expired")
	// ErrMalformed is returned by Decode for structural or signature failures.
	ErrMalformed = errors.New("token malformed")
	// ErrKindMismatch is returned by Claims.Require when the token kind does
	// not match the consuming endpoint's expectation.
	ErrKindMismatch = errors.New("token kind mismatch")
)

// Kind is the closed set of token kinds. Using a tagged type instead of raw
// strings makes an illegal kind a construction-time error.
type Kind uint8

const (
	KindAccess Kind = iota
	KindRefresh
	KindTemporary
)

func (k Kind) String() string {
	switch k {
	case KindAccess:
		return "access"
	case KindRefresh:
		return "refresh"
	case KindTemporary:
		return "temp"
	default:
		return "unknown"
	}
}

func parseKind(s string) (Kind, error) {
	switch s {
	case "access":
		return KindAccess, nil
	case "refresh":
		return KindRefresh, nil
	case "temp":
		return KindTemporary, nil
	default:
		return 0, fmt.Errorf("%w: unknown kind %q", ErrMalformed, s)
	}
}

// Purpose scopes a temporary token to a single mid-flow step.
type Purpose string

const (
	PurposeNone          Purpose = ""
	PurposeProfileSetup  Purpose = "profile_setup"
	PurposePasswordReset Purpose = "password_reset"
)

// SigningMethod selects the signature algorithm.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodEd25519 SigningMethod = "ed25519"
)

// Claims is the decoded, validated view of a token.
type Claims struct {
	Subject   string
	Kind      Kind
	SessionID string
	Role      string
	TenantID  string
	Purpose   Purpose
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Require fails with ErrKindMismatch unless the claims carry the expected
// kind (and, for temporary tokens, the expected purpose).
func (c *Claims) Require(kind Kind, purpose Purpose) error {
	if c.Kind != kind {
		return ErrKindMismatch
	}
	if kind == KindTemporary && c.Purpose != purpose {
		return ErrKindMismatch
	}
	return nil
}

type wireClaims struct {
	Kind      string `json:"typ"`
	SessionID string `json:"sid,omitempty"`
	Role      string `json:"role,omitempty"`
	TenantID  string `json:"cid,omitempty"`
	Purpose   string `json:"prp,omitempty"`
	jwt.RegisteredClaims
}

// Config holds the codec's immutable signing configuration.
type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Leeway        time.Duration

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	TempTTL    time.Duration
}

// Codec mints and decodes signed tokens. Safe for concurrent use.
type Codec struct {
	config Config
}

func NewCodec(cfg Config) (*Codec, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.TempTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
	case MethodEd25519:
		if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
			return nil, err
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Codec{config: cfg}, nil
}

// MintRequest carries the claims for a new token. TTL overrides the kind
// default when positive.
type MintRequest struct {
	Subject   string
	Kind      Kind
	SessionID string
	Role      string
	TenantID  string
	Purpose   Purpose
	TTL       time.Duration
}

// Mint encodes and signs a token. The jti is always a fresh UUID so the
// revocation ledger can shadow individual tokens.
func (c *Codec) Mint(req MintRequest) (raw string, jti string, err error) {
	if req.Subject == "" {
		return "", "", errors.New("subject required")
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = c.ttlForKind(req.Kind)
	}

	now := time.Now()
	jti = uuid.NewString()
	claims := wireClaims{
		Kind:      req.Kind.String(),
		SessionID: req.SessionID,
		Role:      req.Role,
		TenantID:  req.TenantID,
		Purpose:   string(req.Purpose),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   req.Subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.config.Issuer,
			ID:        jti,
		},
	}

	tok := jwt.NewWithClaims(c.signingMethod(), claims)
	signKey, err := c.signKey()
	if err != nil {
		return "", "", err
	}

	raw, err = tok.SignedString(signKey)
	if err != nil {
		return "", "", err
	}
	return raw, jti, nil
}

// Decode validates signature, structure, and expiry. It never consults
// external state.
func (c *Codec) Decode(raw string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.signingMethod().Alg()}),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(raw, &wireClaims{}, func(t *jwt.Token) (interface{}, error) {
		return c.verifyKey()
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	wire, ok := parsed.Claims.(*wireClaims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}

	kind, err := parseKind(wire.Kind)
	if err != nil {
		return nil, err
	}
	if wire.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformed)
	}

	claims := &Claims{
		Subject:   wire.Subject,
		Kind:      kind,
		SessionID: wire.SessionID,
		Role:      wire.Role,
		TenantID:  wire.TenantID,
		Purpose:   Purpose(wire.Purpose),
		ID:        wire.ID,
	}
	if wire.IssuedAt != nil {
		claims.IssuedAt = wire.IssuedAt.Time
	}
	if wire.ExpiresAt != nil {
		claims.ExpiresAt = wire.ExpiresAt.Time
	}

	return claims, nil
}

// RemainingTTL reports how long a decoded token remains valid. Used to size
// ledger entries that must shadow the token until natural expiry.
func (c *Claims) RemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt.IsZero() {
		return 0
	}
	return c.ExpiresAt.Sub(now)
}

func (c *Codec) ttlForKind(kind Kind) time.Duration {
	switch kind {
	case KindRefresh:
		return c.config.RefreshTTL
	case KindTemporary:
		return c.config.TempTTL
	default:
		return c.config.AccessTTL
	}
}

func (c *Codec) signingMethod() jwt.SigningMethod {
	if c.config.SigningMethod == MethodHS256 {
		return jwt.SigningMethodHS256
	}
	return jwt.SigningMethodEdDSA
}

func (c *Codec) signKey() (interface{}, error) {
	if c.config.SigningMethod == MethodHS256 {
		return c.config.PrivateKey, nil
	}
	return parseEdPrivateKey(c.config.PrivateKey)
}

func (c *Codec) verifyKey() (interface{}, error) {
	if c.config.SigningMethod == MethodHS256 {
		return c.config.PrivateKey, nil
	}
	return parseEdPublicKey(c.config.PublicKey)
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
