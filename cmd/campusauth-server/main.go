// Command campusauth-server runs the authentication API as a standalone
// service: Redis for ephemeral auth state, Postgres for identities, and a
// JSON REST surface on one listener.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	campusauth "github.com/campuskit/campusauth"
	"github.com/campuskit/campusauth/httpapi"
	"github.com/campuskit/campusauth/store/memory"
	"github.com/campuskit/campusauth/store/postgres"
	"github.com/campuskit/campusauth/token"
)

type serverConfig struct {
	ListenAddr  string        `env:"LISTEN_ADDR" envDefault:":8080"`
	RedisAddr   string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB     int           `env:"REDIS_DB" envDefault:"0"`
	PostgresDSN string        `env:"POSTGRES_DSN"`
	SigningKey  string        `env:"SIGNING_KEY,required"`
	Issuer      string        `env:"TOKEN_ISSUER" envDefault:"campusauth"`
	AccessTTL   time.Duration `env:"ACCESS_TTL" envDefault:"15m"`
	RefreshTTL  time.Duration `env:"REFRESH_TTL" envDefault:"720h"`
	CookieMode  bool          `env:"COOKIE_MODE" envDefault:"false"`
	AuditLog    bool          `env:"AUDIT_LOG" envDefault:"true"`
	FailClosed  bool          `env:"REVOCATION_FAIL_CLOSED" envDefault:"false"`
}

// logSender writes passcodes to the log instead of delivering mail. The
// real deployment injects an SMTP or queue-backed sender here.
type logSender struct {
	logger *slog.Logger
}

func (s logSender) Send(_ context.Context, email, code string, purpose campusauth.PasscodePurpose) error {
	s.logger.Info("passcode issued", "email", email, "purpose", string(purpose), "code", code)
	return nil
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	var cfg serverConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{cfg.RedisAddr},
		DB:    cfg.RedisDB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	var credentials campusauth.CredentialStore
	if cfg.PostgresDSN != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return fmt.Errorf("postgres pool: %w", err)
		}
		defer pool.Close()
		if _, err := pool.Exec(ctx, postgres.Schema); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
		credentials = postgres.NewIdentityStore(pool)
	} else {
		logger.Warn("POSTGRES_DSN not set, using in-memory identity store")
		credentials = memory.NewIdentityStore()
	}

	engineCfg := campusauth.DefaultConfig()
	engineCfg.Token.PrivateKey = []byte(cfg.SigningKey)
	engineCfg.Token.Issuer = cfg.Issuer
	engineCfg.Token.AccessTTL = cfg.AccessTTL
	engineCfg.Token.RefreshTTL = cfg.RefreshTTL
	engineCfg.Token.SigningMethod = token.MethodHS256
	engineCfg.Session.TTL = cfg.RefreshTTL
	engineCfg.Revocation.DefaultTTL = cfg.RefreshTTL
	if cfg.FailClosed {
		engineCfg.Revocation.FailureMode = campusauth.FailClosed
	}

	builder := campusauth.New().
		WithConfig(engineCfg).
		WithRedis(redisClient).
		WithCredentialStore(credentials).
		WithPasscodeSender(logSender{logger: logger}).
		WithLogger(logger)
	if cfg.AuditLog {
		builder = builder.WithAuditSink(campusauth.NewJSONWriterSink(os.Stdout))
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	api := httpapi.NewServer(engine, httpapi.Config{CookieMode: cfg.CookieMode})
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
