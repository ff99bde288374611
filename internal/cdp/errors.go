package cdp

import (
	"errors"
	"fmt"
)

// Error kinds. Callers branch on these with errors.Is rather than
// matching message text.
var (
	// ErrDirectoryUnreachable means the debug endpoint's target directory
	// could not be reached (connection refused, DNS failure, timeout).
	ErrDirectoryUnreachable = errors.New("target directory unreachable")

	// ErrDirectoryMalformed means the directory responded with something
	// other than a well-formed target list.
	ErrDirectoryMalformed = errors.New("target directory malformed")

	// ErrAttachFailed means the websocket connection to a target could
	// not be established.
	ErrAttachFailed = errors.New("attach failed")

	// ErrSessionClosed means the session's connection closed before the
	// command resolved. Pending commands on a closing connection all fail
	// with this kind.
	ErrSessionClosed = errors.New("session closed")

	// ErrCommandTimeout means no response with a matching id arrived
	// within the command's bounded interval.
	ErrCommandTimeout = errors.New("command timed out")

	// ErrCommand is the kind wrapped by RemoteError for errors the remote
	// end reported against a specific command.
	ErrCommand = errors.New("command error")
)

// RemoteError is a protocol-reported command failure, carrying the code
// and message the remote end returned.
type RemoteError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error %d: %s", e.Code, e.Message)
}

func (e *RemoteError) Unwrap() error {
	return ErrCommand
}
