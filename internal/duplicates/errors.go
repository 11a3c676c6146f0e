package duplicates

import "errors"

var (
	ErrInvalidGroupID          = errors.New("invalid group id")
	ErrNoKeptEntry             = errors.New("at least one entry must be kept")
	ErrMissingArchiveTarget    = errors.New("archive resolution requires an archive target")
	ErrInvalidArchiveTarget    = errors.New("archive target must be an entry kept in the same group")
	ErrUnexpectedArchiveTarget = errors.New("keep resolution must not set an archive target")
	ErrDuplicateResolution     = errors.New("entry appears more than once in resolution")
	ErrInvalidAction           = errors.New("invalid resolution action")
	ErrEntryNotInGroup         = errors.New("entry is not a member of the group")
	ErrTooFewMembers           = errors.New("a duplicate group needs at least two members")
)

// IsValidationError reports whether err was caused by a malformed resolution
// or dismissal rather than by the catalog.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidGroupID,
		ErrNoKeptEntry,
		ErrMissingArchiveTarget,
		ErrInvalidArchiveTarget,
		ErrUnexpectedArchiveTarget,
		ErrDuplicateResolution,
		ErrInvalidAction,
		ErrEntryNotInGroup,
		ErrTooFewMembers,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
