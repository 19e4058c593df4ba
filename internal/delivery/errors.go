package delivery

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lukasdietrich/briefsend/internal/dnsauth"
)

var (
	// ErrConnectionFailed is returned if the relay could not be reached or the session broke.
	ErrConnectionFailed = errors.New("delivery: connection to relay failed")
	// ErrTLSUnavailable is returned if STARTTLS is required, but not advertised by the relay.
	ErrTLSUnavailable = errors.New("delivery: relay does not support STARTTLS")
	// ErrAuthFailed is returned if the relay rejects the credentials.
	ErrAuthFailed = errors.New("delivery: authentication failed")
	// ErrRejected is matched by every *RejectedError.
	ErrRejected = errors.New("delivery: rejected by relay")
	// ErrNotAuthorized is matched by every *ValidationError.
	ErrNotAuthorized = errors.New("delivery: sender domain not authorized")
	// ErrInvalidMode is returned for unknown validation modes.
	ErrInvalidMode = errors.New("delivery: invalid validation mode")
)

// RejectedError is an smtp reply with a 4xx or 5xx code during a session.
type RejectedError struct {
	// Stage is the smtp command that was rejected (MAIL, RCPT or DATA).
	Stage        string
	Recipient    string
	Code         int
	EnhancedCode string
	Message      string
}

func (e *RejectedError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s: %s", ErrRejected, e.Stage)

	if e.Recipient != "" {
		fmt.Fprintf(&b, " <%s>", e.Recipient)
	}

	fmt.Fprintf(&b, ": %d", e.Code)

	if e.EnhancedCode != "" {
		fmt.Fprintf(&b, " %s", e.EnhancedCode)
	}

	fmt.Fprintf(&b, " %s", e.Message)

	return b.String()
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// Temporary reports whether the relay signaled a transient failure.
func (e *RejectedError) Temporary() bool {
	return e.Code >= 400 && e.Code < 500
}

// ValidationError carries the report of a sender domain, that is not authorized to send through
// the relay.
type ValidationError struct {
	Report *dnsauth.Report
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s failed for %s",
		ErrNotAuthorized,
		strings.Join(e.Report.Failures(), " and "),
		e.Report.Domain)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrNotAuthorized
}
