// Package campusauth implements the authentication and session lifecycle
// engine for a multi-tenant campus management backend.
//
// The engine composes five parts: a passcode manager (OTP issuance and
// bounded-attempt verification), a token codec (signed access, refresh and
// temporary tokens), a session registry (multi-device sessions with
// refresh-token rotation), a revocation ledger (immediate blacklist of
// subjects and individual tokens), and the orchestrator itself, which runs
// the signup, signin, refresh, logout and password-reset flows on top of
// those parts.
//
// Redis backs all ephemeral state (passcodes, sessions, revocations). The
// durable identity record lives behind the CredentialStore interface; a
// pgx-backed implementation ships in store/postgres and an in-memory one in
// store/memory.
//
// Construct an Engine through the Builder:
//
//	engine, err := campusauth.New().
//		WithConfig(cfg).
//		WithRedis(redisClient).
//		WithCredentialStore(identities).
//		WithPasscodeSender(mailer).
//		Build()
//
// All Engine methods are safe for concurrent use.
package campusauth
