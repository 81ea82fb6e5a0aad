package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies service failures for the HTTP layer.
type ErrorKind int

const (
	KindNotFound ErrorKind = iota + 1
	KindValidation
	KindInvalidState
	KindConflict
)

// Error is the typed failure every service operation returns for expected
// conditions. Code follows the five-digit business numbering used across
// the API envelope.
type Error struct {
	Kind    ErrorKind
	Code    int
	Message string
}

func (e *Error) Error() string { return e.Message }

func NotFoundf(code int, format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validationf(code int, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

func InvalidStatef(code int, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInvalidState, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Conflictf(code int, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

// AsError unwraps err into a *Error if it is one.
func AsError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

func IsKind(err error, kind ErrorKind) bool {
	se, ok := AsError(err)
	return ok && se.Kind == kind
}

// Business codes. 404xx not found, 400xx validation, 409xx state/conflict.
const (
	CodeUnitNotFound       = 40401
	CodeCheckpointNotFound = 40402
	CodeItemNotFound       = 40403
	CodeIssueNotFound      = 40404
	CodeCommentNotFound    = 40405
	CodeActivityNotFound   = 40406
	CodeTemplateNotFound   = 40407
	CodeProjectNotFound    = 40408
	CodeUserNotFound       = 40409

	CodeDuplicateCode    = 40001
	CodeBadInput         = 40002
	CodeItemSetMismatch  = 40003
	CodeDuplicateCatalog = 40004
	CodeCrossIssueParent = 40005
	CodeNotYourComment   = 40006

	CodeCheckpointFinalized = 40901
	CodeIssueOutOfOrder     = 40902
	CodeReviewConflict      = 40903
	CodeGateBlocked         = 40904
	CodeCommentDeleted      = 40905
	CodeAccountDisabled     = 40906
)
