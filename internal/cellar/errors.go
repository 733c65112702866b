package cellar

import "errors"

// Rejection reasons surfaced to callers. Handlers map these onto HTTP
// statuses; anything else bubbling out of the engine is an infra error.
var (
	// Issuance
	ErrNotFound           = errors.New("purchase not found or not confirmed")
	ErrInvalidPourSize    = errors.New("invalid pour size")
	ErrInsufficientVolume = errors.New("insufficient volume remaining")
	ErrBottleExpired      = errors.New("bottle has expired")

	// Settlement
	ErrInvalidToken   = errors.New("invalid QR code")
	ErrAlreadyUsed    = errors.New("QR code already used")
	ErrTokenExpired   = errors.New("QR code expired")
	ErrTokenCancelled = errors.New("QR code cancelled")
)

// IsRejection reports whether err is a domain rejection rather than an
// infrastructure failure. Rejections are safe to return verbatim to the
// customer or bartender.
func IsRejection(err error) bool {
	for _, rejection := range []error{
		ErrNotFound,
		ErrInvalidPourSize,
		ErrInsufficientVolume,
		ErrBottleExpired,
		ErrInvalidToken,
		ErrAlreadyUsed,
		ErrTokenExpired,
		ErrTokenCancelled,
	} {
		if errors.Is(err, rejection) {
			return true
		}
	}
	return false
}
