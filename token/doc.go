// Package token implements the signed token codec: minting and decoding of
// access, refresh, and purpose-scoped temporary tokens.
//
// The codec is a pure function of the signing key and the claims. Decode
// performs cryptographic and structural validation only; revocation and
// session-liveness checks are layered on top by the engine so this package
// stays side-effect free.
package token
