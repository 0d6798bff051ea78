package entitlement

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fleet-server/fleet-server-pro/internal/storage"
)

// Error taxonomy. Every error here is terminal for the caller except
// ErrConflict, which the engine retries internally with bounded attempts
// before surfacing. Anything not in this set is an internal error and must
// be treated as a denial.
var (
	// ErrNotFound means a referenced entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrConfiguration means resolution hit an impossible state, such as a
	// user with no resolvable role. Never silently grant or deny on it.
	ErrConfiguration = errors.New("configuration error")

	// ErrCapacityExceeded means a count would exceed its effective limit
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrNotActive means the campaign or subscription is unusable for the
	// requested operation
	ErrNotActive = errors.New("not active")

	// ErrAlreadyEnrolled means the company already has an active campaign
	ErrAlreadyEnrolled = errors.New("already enrolled")

	// ErrConflict means a concurrent atomic update won the race
	ErrConflict = errors.New("conflict")

	// ErrInUse means the role still has assigned users
	ErrInUse = errors.New("role in use")

	// ErrForbidden means the operation targets an immutable system role
	ErrForbidden = errors.New("forbidden")

	// ErrInternal wraps persistence failures without leaking storage detail
	ErrInternal = errors.New("internal error")
)

// wrapStoreErr maps storage errors into the engine taxonomy. Persistence
// detail never leaks past here: unknown failures become a generic internal
// error, which callers must treat as a denial.
func wrapStoreErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrLimitReached):
		return ErrCapacityExceeded
	case errors.Is(err, storage.ErrConflict):
		return ErrConflict
	default:
		log.Error().Err(err).Str("op", op).Msg("Storage failure")
		return fmt.Errorf("%s: %w", op, ErrInternal)
	}
}
