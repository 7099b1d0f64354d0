package token

import "errors"

var (
	// ErrTokenGeneration indicates token signing failed
	ErrTokenGeneration = errors.New("failed to generate token")

	// ErrInvalidToken covers every verification failure: bad signature,
	// wrong issuer or audience, expiry, wrong category. Callers map it to a
	// uniform 401/403 and must never learn which check failed.
	ErrInvalidToken = errors.New("invalid token")

	// ErrUnknownDomain indicates an unregistered signing domain
	ErrUnknownDomain = errors.New("unknown signing domain")
)
