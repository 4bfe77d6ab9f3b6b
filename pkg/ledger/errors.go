package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrAccessDenied      = errors.New("access denied")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAllowanceExceeded = errors.New("allowance exceeded")
	ErrReplayedNonce     = errors.New("replayed nonce")
	ErrOverflow          = errors.New("uint256 overflow")
	ErrLastAdmin         = errors.New("last admin")
	ErrNilAmount         = errors.New("nil amount")
)

// RevertError is returned when a contract call is rejected. Reason carries the
// human readable revert string, Err the sentinel used for errors.Is checks.
type RevertError struct {
	Reason string
	Err    error
}

func (e *RevertError) Error() string {
	return "execution reverted: " + e.Reason
}

func (e *RevertError) Unwrap() error {
	return e.Err
}

func revert(err error, format string, args ...any) error {
	return &RevertError{Reason: fmt.Sprintf(format, args...), Err: err}
}

// Reason returns the revert reason of err, or an empty string when err is not
// a contract rejection.
func Reason(err error) string {
	var rErr *RevertError
	if errors.As(err, &rErr) {
		return rErr.Reason
	}
	return ""
}
