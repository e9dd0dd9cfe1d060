package domain

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Message prefixes callers match on. Keep them here so they never drift.
const (
	MsgInvalidUsername  = "Invalid username."
	MsgInvalidPlayerID  = "Invalid player id."
	MsgUpdateFailed     = "Failed to update:"
	MsgImportTooSoon    = "Imported too soon"
	MsgNotTracked       = "is not being tracked yet."
	MsgHiscoresFailed   = "Failed to load hiscores:"
	MsgHistoryFailed    = "Failed to load history from CML."
	MsgValidationFailed = "Validation error:"
)

const MsgUsernameLength = "Username must be between 1 and 12 characters"

var (
	ErrInvalidFormat       = errors.New("invalid format")
	ErrValidation          = errors.New("validation failure")
	ErrNotFound            = errors.New("not found")
	ErrPlayerNotFound      = errors.New("player not found upstream")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrHistoryUnavailable  = errors.New("history unavailable")
	ErrTooSoon             = errors.New("too soon")
	ErrImportTooSoon       = errors.New("import too soon")
	ErrUpdateFailed        = errors.New("update failed")
)

// Error is a failure with a user-visible message. errors.Is matches it against its kind
// and, through Unwrap, against the kind of any wrapped cause.
type Error struct {
	kind  error
	msg   string
	cause error
}

func (e *Error) Error() string {
	return e.msg
}

func (e *Error) Is(target error) bool {
	return target == e.kind
}

func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Kind() error {
	return e.kind
}

func newError(kind error, cause error, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...), cause: cause}
}

func InvalidUsername() error {
	return newError(ErrInvalidFormat, nil, MsgInvalidUsername)
}

func InvalidPlayerID() error {
	return newError(ErrInvalidFormat, nil, MsgInvalidPlayerID)
}

func ValidationFailed(detail string, cause error) error {
	return newError(ErrValidation, cause, "%s %s", MsgValidationFailed, detail)
}

func NotTracked(username string) error {
	return newError(ErrNotFound, nil, "%s %s", username, MsgNotTracked)
}

func NotTrackedID(id int64) error {
	return newError(ErrNotFound, nil, "Player of id %d %s", id, MsgNotTracked)
}

func PlayerNotFound(cause error) error {
	return newError(ErrPlayerNotFound, cause, "%s Invalid username", MsgHiscoresFailed)
}

func UpstreamUnavailable(cause error) error {
	return newError(ErrUpstreamUnavailable, cause, "%s %v", MsgHiscoresFailed, cause)
}

func HistoryUnavailable(cause error) error {
	return newError(ErrHistoryUnavailable, cause, MsgHistoryFailed)
}

func TooSoon(since, remaining time.Duration) error {
	return newError(ErrTooSoon, nil, "Last update was %d seconds ago, please wait another %d seconds.",
		int(since.Seconds()), ceil(remaining.Seconds()))
}

func ImportTooSoon(remaining time.Duration) error {
	return newError(ErrImportTooSoon, nil, "%s, please wait another %d minutes.", MsgImportTooSoon, ceil(remaining.Minutes()))
}

// UpdateFailed wraps any tracker-stage failure under the "Failed to update:" prefix.
func UpdateFailed(cause error) error {
	return newError(ErrUpdateFailed, cause, "%s %s", MsgUpdateFailed, cause.Error())
}

func ceil(v float64) int {
	return int(math.Ceil(v))
}
