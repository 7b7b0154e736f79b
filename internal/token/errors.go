package token

import "errors"

// Sentinel errors for the tokenization core. Callers match them with errors.Is;
// the HTTP layer maps them onto response codes without exposing internal state.
var (
	// ErrInvalidFormat means the token string is malformed. Raised before any
	// store lookup happens.
	ErrInvalidFormat = errors.New("invalid token format")

	// ErrUnknownTokenType means the prefix is not one of STU/TCH/CRS/SEC/ASN.
	ErrUnknownTokenType = errors.New("unknown token type")

	// ErrTokenNotFound means the value is well-formed but no row matches it.
	ErrTokenNotFound = errors.New("token not found")

	// ErrTokenInactive means the row exists but its status is not ACTIVE.
	ErrTokenInactive = errors.New("token is not active")

	// ErrTokenExpired means the row is ACTIVE but past its expiry. Distinct from
	// ErrTokenInactive so callers know rotation, not re-authentication, is the fix.
	ErrTokenExpired = errors.New("token has expired")

	// ErrTokenTypeMismatch means the resolved token is not of the expected type.
	ErrTokenTypeMismatch = errors.New("token type mismatch")

	// ErrDuplicateToken is a store-level value collision. Retried internally by
	// generation; never surfaces to callers.
	ErrDuplicateToken = errors.New("duplicate token value")

	// ErrGenerationExhausted means 100 consecutive collisions. Fatal: implies
	// charset exhaustion or a store malfunction, and should page an operator.
	ErrGenerationExhausted = errors.New("token generation exhausted")

	// ErrInvalidState means a lifecycle transition was attempted on a row whose
	// status does not allow it (e.g. rotating a revoked token).
	ErrInvalidState = errors.New("invalid token state for operation")

	// ErrRemoteUnavailable is internal to the bridge. It triggers local fallback
	// and never reaches a caller.
	ErrRemoteUnavailable = errors.New("remote tokenization authority unavailable")
)
