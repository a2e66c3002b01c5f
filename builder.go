package campusauth

import (
	"errors"
	"io"
	"log/slog"

	"github.com/campuskit/campusauth/internal/metrics"
	"github.com/campuskit/campusauth/password"
	"github.com/campuskit/campusauth/revocation"
	"github.com/campuskit/campusauth/session"
	"github.com/campuskit/campusauth/token"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. Each builder is single-use.
type Builder struct {
	config Config

	redis       redis.UniversalClient
	credentials CredentialStore
	sender      PasscodeSender
	provisioner TenantProvisioner
	auditSink   AuditSink
	logger      *slog.Logger

	built bool
}

// New returns a Builder preloaded with DefaultConfig. Signing keys, the
// Redis client, the credential store and the passcode sender must still be
// supplied.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

func (b *Builder) WithPasscodeSender(sender PasscodeSender) *Builder {
	b.sender = sender
	return b
}

func (b *Builder) WithTenantProvisioner(p TenantProvisioner) *Builder {
	b.provisioner = p
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates the configuration and wires the engine. The returned
// engine is ready for concurrent use.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.credentials == nil {
		return nil, errors.New("credential store is required")
	}
	if b.sender == nil {
		return nil, errors.New("passcode sender is required")
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}

	codec, err := token.NewCodec(b.config.Token)
	if err != nil {
		return nil, err
	}
	hasher, err := password.NewHasher(b.config.Password)
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	prefix := b.config.Session.KeyPrefix
	passcodes := newPasscodeStore(b.redis, prefix+":otp")
	limiter := newPasscodeLimiter(b.redis, b.config.Passcode, prefix)

	engine := &Engine{
		config:      b.config,
		codec:       codec,
		sessions:    session.NewStore(b.redis, prefix),
		revocations: revocation.NewStore(b.redis),
		passcodes:   newPasscodeManager(passcodes, limiter, b.sender, b.config.Passcode),
		hasher:      hasher,
		credentials: b.credentials,
		provisioner: b.provisioner,
		metrics:     metrics.New(b.config.metricsConfig()),
		audit:       newAuditDispatcher(b.config.Audit, b.auditSink),
		logger:      logger,
	}

	return engine, nil
}
