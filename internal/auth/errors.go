package auth

import "fmt"

// Wire error codes. The numbering is part of the external contract and is
// shared with the services sitting behind the gateway.
const (
	CodeSuccess               = 0
	CodeServerError           = 1
	CodeValidationError       = 3
	CodeUnauthorizedService   = 4
	CodeInvalidAuthentication = 5
	CodeIPNotAllowed          = 6
	CodeDataNotFound          = 7
)

// Wire error messages paired with the codes above.
const (
	MessageSuccess               = "Success"
	MessageServerError           = "Internal Server Error, Please Try Again Later."
	MessageValidationError       = "Invalid Validation Structure Found."
	MessageUnauthorizedService   = "Service authentication Failed."
	MessageInvalidAuthentication = "Invalid Session Found. Please Try After Some Time."
	MessageIPNotAllowed          = "You Are Not Allowed To Perform This Action."
	MessageDataNotFound          = "Data Not Found."
	MessageClientAuthFailed      = "Client authentication failed. Invalid API key"
)

// Error is an authentication failure carrying the wire error code and
// message that end up in the response envelope.
type Error struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("auth error %d: %s", e.Code, e.Message)
}

// Is reports whether target is an *Error with the same code and message,
// so sentinel comparisons work through errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// Authentication failure sentinels.
var (
	// ErrInvalidCredentialInput indicates blank or missing service
	// credential headers, detected before any store access.
	ErrInvalidCredentialInput = &Error{Code: CodeInvalidAuthentication, Message: MessageInvalidAuthentication}

	// ErrCredentialNotFound indicates no active credential matched the
	// presented service code and auth key.
	ErrCredentialNotFound = &Error{Code: CodeUnauthorizedService, Message: MessageUnauthorizedService}

	// ErrIPNotAllowed indicates the client IP is outside the allow-list.
	ErrIPNotAllowed = &Error{Code: CodeIPNotAllowed, Message: MessageIPNotAllowed}

	// ErrSessionInvalid indicates a missing, rejected or unverifiable
	// session token.
	ErrSessionInvalid = &Error{Code: CodeInvalidAuthentication, Message: MessageInvalidAuthentication}

	// ErrClientAuthFailed indicates a blank or unrecognized API key.
	ErrClientAuthFailed = &Error{Code: CodeUnauthorizedService, Message: MessageClientAuthFailed}

	// ErrInternal is the envelope for failures the caller must not learn
	// details of.
	ErrInternal = &Error{Code: CodeServerError, Message: MessageServerError}
)
