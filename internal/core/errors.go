package core

import "errors"

// Error taxonomy of the trust layer. Handlers collapse these to generic
// problem responses at the HTTP boundary; the fine-grained kind only ever
// reaches the logs.
var (
	// ErrNoToken indicates no bearer token was found in the request.
	ErrNoToken = errors.New("no bearer token present")

	// ErrMalformedToken indicates the token could not be parsed at all.
	ErrMalformedToken = errors.New("malformed token")

	// ErrUnknownSigningKey indicates no key in the key set matches the
	// token's kid, even after a refresh.
	ErrUnknownSigningKey = errors.New("unknown signing key")

	// ErrInvalidSignature covers every signature mismatch. "Wrong key" and
	// "tampered payload" are deliberately indistinguishable to callers.
	ErrInvalidSignature = errors.New("invalid token signature")

	// ErrTokenExpired indicates the token's expiry has elapsed.
	ErrTokenExpired = errors.New("token expired")

	// ErrInsufficientRole indicates the principal lacks the required role.
	ErrInsufficientRole = errors.New("insufficient role")

	// ErrRoleLookupUnavailable indicates the role directory could not be
	// reached. Callers must treat this as a denial, never as a grant.
	ErrRoleLookupUnavailable = errors.New("role lookup unavailable")

	// ErrWrongDecryptionKey indicates the supplied secret does not match
	// the envelope's key fingerprint.
	ErrWrongDecryptionKey = errors.New("wrong decryption key")

	// ErrCorruptedEnvelope indicates the envelope bytes are truncated,
	// inconsistent, or failed authenticated decryption.
	ErrCorruptedEnvelope = errors.New("corrupted envelope")

	// ErrUnsupportedEnvelopeVersion indicates an envelope version this
	// build cannot decode.
	ErrUnsupportedEnvelopeVersion = errors.New("unsupported envelope version")

	// ErrInvalidRequestTransition indicates a sharing request transition
	// that the state machine forbids.
	ErrInvalidRequestTransition = errors.New("invalid sharing request transition")

	// ErrRequestNotFound indicates an unknown sharing request id.
	ErrRequestNotFound = errors.New("sharing request not found")
)
