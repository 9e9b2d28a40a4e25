package errors

import "fmt"

var (
	// Authorization errors. Surfaced as explicit rejections, never silent.
	ErrNotAMember = fmt.Errorf("not a member of this group")
	ErrNotAdmin   = fmt.Errorf("only group admins may perform this action")

	// Invariant violations. State is left unchanged.
	ErrLastAdmin = fmt.Errorf("cannot remove the last admin of a group")

	// Not-found errors.
	ErrGroupNotFound        = fmt.Errorf("group not found")
	ErrConversationNotFound = fmt.Errorf("conversation not found")

	// Account errors.
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrTokenInvalid       = fmt.Errorf("token is invalid or expired")

	// Collaborator failures.
	ErrBotUnavailable       = fmt.Errorf("assistant is unavailable")
	ErrTranslateUnavailable = fmt.Errorf("translation service unavailable")

	// Runtime errors.
	ErrWorkerPanic    = fmt.Errorf("worker panic")
	ErrInvalidPayload = fmt.Errorf("invalid event payload")
	ErrEmptyWordList  = fmt.Errorf("no censored words have been found")
)
