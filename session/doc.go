// Package session implements the Redis-backed session registry: one record
// per authenticated device, a per-subject index for multi-device enumeration,
// and atomic refresh-fingerprint rotation.
//
// Every session is a Redis hash whose TTL equals the refresh token lifetime.
// The rotation protocol is a Lua compare-and-swap: under concurrent refresh
// calls for one session exactly one caller observes the current fingerprint
// and replaces it; the loser gets a mismatch. A mismatch also destroys the
// session, since presentation of a superseded refresh token means the token
// leaked.
package session
