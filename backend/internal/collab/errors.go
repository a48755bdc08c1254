package collab

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeDocumentNotFound         ErrorCode = "DOCUMENT_NOT_FOUND"
	CodeSaveFailed               ErrorCode = "SAVE_FAILED"
	CodeLockFailed               ErrorCode = "LOCK_FAILED"
	CodeOperationFailed          ErrorCode = "OPERATION_FAILED"
	CodeOperationDisabled        ErrorCode = "OPERATION_DISABLED"
	CodeConflictResolutionFailed ErrorCode = "CONFLICT_RESOLUTION_FAILED"
)

// Error carries the failure code plus the document/user the operation was
// acting on, so callers can render contextual feedback.
type Error struct {
	Code   ErrorCode
	DocID  string
	UserID uint64
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (doc=%s user=%d): %v", e.Code, e.DocID, e.UserID, e.Err)
	}
	return fmt.Sprintf("%s (doc=%s user=%d)", e.Code, e.DocID, e.UserID)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(code ErrorCode, docID string, userID uint64, cause error) *Error {
	return &Error{Code: code, DocID: docID, UserID: userID, Err: cause}
}

// CodeOf extracts the collaboration error code, or "" for foreign errors.
func CodeOf(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

var (
	ErrRevisionConflict      = errors.New("REVISION_CONFLICT")
	ErrDuplicateOrOutOfOrder = errors.New("DUPLICATE_OR_OUT_OF_ORDER")
)
