package chomikuj

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind identifies why a call to the site failed.
type ErrorKind int

const (
	// KindRequestFailed means the response did not pass validation or the
	// request could not be sent at all.
	KindRequestFailed ErrorKind = iota + 1
	// KindWeirdResponse means the response passed validation but its
	// contents could not be read.
	KindWeirdResponse
	KindTokenNotFound
	KindWrongFilePath
	KindFileIsEmpty
	KindUploadURL
	KindUsernameNotFound
	KindUnexpectedStatus
)

var kindMessages = map[ErrorKind]string{
	KindRequestFailed:    "Request failed.",
	KindWeirdResponse:    "Response looks valid, but could not be read (reason unknown).",
	KindTokenNotFound:    "Token could not be found.",
	KindWrongFilePath:    "Wrong file path / no access to file.",
	KindFileIsEmpty:      "File is empty.",
	KindUploadURL:        "Could not get upload URL.",
	KindUsernameNotFound: "Username not found.",
}

func (k ErrorKind) String() string {
	if k == KindUnexpectedStatus {
		return "unexpected status"
	}
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is returned by every failing Client, TickCache and extractor call.
type Error struct {
	Kind ErrorKind
	// Status is the HTTP status code involved, if any.
	Status int
	// Err is the underlying cause, e.g. a transport error.
	Err error
}

func (e *Error) Error() string {
	if e.Kind == KindUnexpectedStatus {
		return fmt.Sprintf("Status code is not 200 (%d returned).", e.Status)
	}
	msg := e.Kind.String()
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is match any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind ErrorKind) *Error {
	return &Error{Kind: kind}
}

// IsKind reports whether err is, or wraps, an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
