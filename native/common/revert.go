package common

import (
	"errors"
	"fmt"
)

// RevertError is the typed failure returned by every state transition that
// rejects a call. The Reason mirrors the on-chain revert string so callers can
// assert on it.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	if e == nil {
		return ""
	}
	return "execution reverted: " + e.Reason
}

// Revert constructs a RevertError carrying the supplied reason.
func Revert(reason string) error {
	return &RevertError{Reason: reason}
}

// Revertf formats a reason before wrapping it into a RevertError.
func Revertf(format string, args ...any) error {
	return &RevertError{Reason: fmt.Sprintf(format, args...)}
}

// ReasonOf extracts the revert reason from err. The boolean is false when err
// is not a revert.
func ReasonOf(err error) (string, bool) {
	var revert *RevertError
	if errors.As(err, &revert) && revert != nil {
		return revert.Reason, true
	}
	return "", false
}

// IsRevert reports whether err carries the given revert reason.
func IsRevert(err error, reason string) bool {
	got, ok := ReasonOf(err)
	return ok && got == reason
}

var (
	ErrOverflow          = Revert("overflow")
	ErrInvalidAmount     = Revert("invalid amount")
	ErrNotAuthorized     = Revert("!authorized")
	ErrNotGovernance     = Revert("!governance")
	ErrInvalidBasisPoint = Revert("invalid basis points")
)
