package admission

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrCodeNotFound     = errors.New("meeting code not found")
	ErrMeetingNotFound  = errors.New("meeting not found")
	ErrBadUserType      = errors.New("user type must be employee or guardian")
	ErrIdentityMismatch = errors.New("user is not the expected participant for this meeting")
)

// WindowError rejects a join attempt outside the admission window. The two
// sides are distinct so clients can tell "come back later" from "you missed
// it".
type WindowError struct {
	TooEarly bool
	OpensAt  time.Time
	ClosedAt time.Time
}

func (e *WindowError) Error() string {
	if e.TooEarly {
		return fmt.Sprintf("meeting not yet joinable, window opens at %s", e.OpensAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("meeting window closed at %s", e.ClosedAt.Format(time.RFC3339))
}

// IsWindowError reports whether err is an admission-window rejection.
func IsWindowError(err error) bool {
	var we *WindowError
	return errors.As(err, &we)
}
