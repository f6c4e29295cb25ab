package engage

import "fmt"

// PreconditionError rejects an operation before any mutation or remote
// call: missing identity, empty content, unknown post.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return "precondition failed: " + e.Reason
}

// RemoteWriteError reports a failed confirm step of an optimistic
// operation. The local delta has already been reverted when the caller
// sees this error.
type RemoteWriteError struct {
	Op     string
	PostID string
	Err    error
}

func (e *RemoteWriteError) Error() string {
	if e.PostID == "" {
		return fmt.Sprintf("remote %s write failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("remote %s write failed for post %s: %v", e.Op, e.PostID, e.Err)
}

func (e *RemoteWriteError) Unwrap() error {
	return e.Err
}
