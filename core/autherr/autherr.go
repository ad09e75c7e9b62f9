// Package autherr defines the closed error union surfaced by every engine
// operation, together with its wire envelope and HTTP status mapping.
package autherr

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Kind enumerates every error the engine can surface. The set is closed: the
// HTTP layer serializes errors as {"type":"<Kind>", ...fields} and maps them
// to status codes with Error.Status.
type Kind string

const (
	KindIncorrectData        Kind = "IncorrectData"
	KindMissingHeaders       Kind = "MissingHeaders"
	KindCaptchaFailed        Kind = "CaptchaFailed"
	KindBlockedByShield      Kind = "BlockedByShield"
	KindMissingInvite        Kind = "MissingInvite"
	KindInvalidInvite        Kind = "InvalidInvite"
	KindCompromisedPassword  Kind = "CompromisedPassword"
	KindShortPassword        Kind = "ShortPassword"
	KindTotpAlreadyEnabled   Kind = "TotpAlreadyEnabled"
	KindDisallowedMFAMethod  Kind = "DisallowedMFAMethod"
	KindInvalidSession       Kind = "InvalidSession"
	KindInvalidCredentials   Kind = "InvalidCredentials"
	KindInvalidToken         Kind = "InvalidToken"
	KindBlacklisted          Kind = "Blacklisted"
	KindUnverifiedAccount    Kind = "UnverifiedAccount"
	KindLockedOut            Kind = "LockedOut"
	KindUnknownUser          Kind = "UnknownUser"
	KindEmailInUse           Kind = "EmailInUse"
	KindDatabaseError        Kind = "DatabaseError"
	KindInternalError        Kind = "InternalError"
	KindOperationFailed      Kind = "OperationFailed"
	KindRenderFail           Kind = "RenderFail"
	KindEmailFailed          Kind = "EmailFailed"
	KindStateMismatch        Kind = "StateMismatch"
	KindInvalidRequest       Kind = "InvalidRequest"
	KindInvalidClient        Kind = "InvalidClient"
	KindInvalidGrant         Kind = "InvalidGrant"
	KindUnauthorizedClient   Kind = "UnauthorizedClient"
	KindUnsupportedGrantType Kind = "UnsupportedGrantType"
	KindInvalidScope         Kind = "InvalidScope"
	KindRequestFailed        Kind = "RequestFailed"
	KindContentTypeMismatch  Kind = "ContentTypeMismatch"
	KindInvalidUserinfo      Kind = "InvalidUserinfo"
)

// Error is the closed tagged union surfaced by every engine operation.
// Messages never carry sensitive material (passwords, tokens).
type Error struct {
	Type      Kind   `json:"type"`
	With      string `json:"with,omitempty"`      // offending field for IncorrectData
	Operation string `json:"operation,omitempty"` // failing operation for DatabaseError
	Email     string `json:"email,omitempty"`     // support contact for Blacklisted
	Note      string `json:"note,omitempty"`      // support note for Blacklisted
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.With != "" {
		return string(e.Type) + ": " + e.With
	}
	return string(e.Type)
}

// Status returns the HTTP status code for the error kind.
func (e *Error) Status() int {
	switch e.Type {
	case KindIncorrectData, KindMissingHeaders, KindCaptchaFailed, KindBlockedByShield,
		KindMissingInvite, KindInvalidInvite, KindCompromisedPassword, KindShortPassword,
		KindTotpAlreadyEnabled, KindDisallowedMFAMethod, KindEmailInUse,
		KindInvalidRequest, KindInvalidClient, KindInvalidGrant,
		KindUnauthorizedClient, KindUnsupportedGrantType, KindInvalidScope:
		return http.StatusBadRequest
	case KindInvalidSession, KindInvalidCredentials, KindInvalidToken,
		KindBlacklisted, KindStateMismatch:
		return http.StatusUnauthorized
	case KindUnverifiedAccount, KindLockedOut:
		return http.StatusForbidden
	case KindUnknownUser:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// MarshalJSON renders the wire envelope. Blacklisted uses the special
// support-contact body instead of its kind name.
func (e *Error) MarshalJSON() ([]byte, error) {
	type envelope Error
	out := envelope(*e)
	if e.Type == KindBlacklisted {
		out.Type = "DisallowedContactSupport"
	}
	return json.Marshal(out)
}

// Field-less kinds as shared sentinels. Treat as immutable.
var (
	ErrMissingHeaders       = &Error{Type: KindMissingHeaders}
	ErrCaptchaFailed        = &Error{Type: KindCaptchaFailed}
	ErrBlockedByShield      = &Error{Type: KindBlockedByShield}
	ErrMissingInvite        = &Error{Type: KindMissingInvite}
	ErrInvalidInvite        = &Error{Type: KindInvalidInvite}
	ErrCompromisedPassword  = &Error{Type: KindCompromisedPassword}
	ErrShortPassword        = &Error{Type: KindShortPassword}
	ErrTotpAlreadyEnabled   = &Error{Type: KindTotpAlreadyEnabled}
	ErrDisallowedMFAMethod  = &Error{Type: KindDisallowedMFAMethod}
	ErrInvalidSession       = &Error{Type: KindInvalidSession}
	ErrInvalidCredentials   = &Error{Type: KindInvalidCredentials}
	ErrInvalidToken         = &Error{Type: KindInvalidToken}
	ErrUnverifiedAccount    = &Error{Type: KindUnverifiedAccount}
	ErrLockedOut            = &Error{Type: KindLockedOut}
	ErrUnknownUser          = &Error{Type: KindUnknownUser}
	ErrEmailInUse           = &Error{Type: KindEmailInUse}
	ErrInternalError        = &Error{Type: KindInternalError}
	ErrOperationFailed      = &Error{Type: KindOperationFailed}
	ErrEmailFailed          = &Error{Type: KindEmailFailed}
	ErrStateMismatch        = &Error{Type: KindStateMismatch}
	ErrInvalidRequest       = &Error{Type: KindInvalidRequest}
	ErrInvalidClient        = &Error{Type: KindInvalidClient}
	ErrInvalidGrant         = &Error{Type: KindInvalidGrant}
	ErrUnauthorizedClient   = &Error{Type: KindUnauthorizedClient}
	ErrUnsupportedGrantType = &Error{Type: KindUnsupportedGrantType}
	ErrInvalidScope         = &Error{Type: KindInvalidScope}
	ErrRequestFailed        = &Error{Type: KindRequestFailed}
	ErrContentTypeMismatch  = &Error{Type: KindContentTypeMismatch}
	ErrInvalidUserinfo      = &Error{Type: KindInvalidUserinfo}
)

// NewIncorrectData flags a single bad input field.
func NewIncorrectData(with string) *Error {
	return &Error{Type: KindIncorrectData, With: with}
}

// NewDatabaseError wraps a failed store call at the service edge.
func NewDatabaseError(operation, with string) *Error {
	return &Error{Type: KindDatabaseError, Operation: operation, With: with}
}

// NewBlacklisted builds the support-contact error for blocked email domains.
func NewBlacklisted(supportEmail, note string) *Error {
	return &Error{Type: KindBlacklisted, Email: supportEmail, Note: note}
}

// IsKind reports whether err is an engine Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == kind
}

// AsError converts any error to an engine Error, collapsing unknown errors
// into InternalError so the closed union holds at the HTTP edge.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrInternalError
}
