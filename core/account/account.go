// Package account owns the account aggregate and its lifecycle state
// machines: email verification and move, password reset, scheduled deletion,
// and brute-force lockout accounting.
package account

import (
	"time"
)

// VerificationStatus discriminates the verification union.
type VerificationStatus string

const (
	// VerificationVerified means the account's email is confirmed.
	VerificationVerified VerificationStatus = "Verified"
	// VerificationPending means the initial verification mail is outstanding.
	VerificationPending VerificationStatus = "Pending"
	// VerificationMoving means a move to a new address awaits confirmation.
	VerificationMoving VerificationStatus = "Moving"
)

// Verification is the email verification state. Token and Expiry are set for
// Pending and Moving; NewEmail only for Moving.
type Verification struct {
	Status   VerificationStatus `bson:"status" json:"status"`
	Token    string             `bson:"token,omitempty" json:"-"`
	Expiry   time.Time          `bson:"expiry,omitempty" json:"expiry,omitzero"`
	NewEmail string             `bson:"new_email,omitempty" json:"new_email,omitempty"`
}

// PasswordReset is an in-flight password reset token.
type PasswordReset struct {
	Token  string    `bson:"token" json:"-"`
	Expiry time.Time `bson:"expiry" json:"expiry"`
}

// DeletionStatus discriminates the deletion union.
type DeletionStatus string

const (
	// DeletionWaitingForVerification means the confirmation mail is outstanding.
	DeletionWaitingForVerification DeletionStatus = "WaitingForVerification"
	// DeletionScheduled means deletion is confirmed and runs after After.
	DeletionScheduled DeletionStatus = "Scheduled"
	// DeletionDeleted marks an account already destroyed by the worker.
	DeletionDeleted DeletionStatus = "Deleted"
)

// Deletion is the scheduled-deletion state machine.
type Deletion struct {
	Status DeletionStatus `bson:"status" json:"status"`
	Token  string         `bson:"token,omitempty" json:"-"`
	Expiry time.Time      `bson:"expiry,omitempty" json:"expiry,omitzero"`
	After  time.Time      `bson:"after,omitempty" json:"after,omitzero"`
}

// Lockout tracks consecutive failed password attempts. Expiry is nil while
// the attempt count is below the lock threshold.
type Lockout struct {
	Attempts int        `bson:"attempts" json:"attempts"`
	Expiry   *time.Time `bson:"expiry,omitempty" json:"expiry,omitempty"`
}

// Active reports whether the lockout currently blocks password attempts.
func (l *Lockout) Active(now time.Time) bool {
	return l != nil && l.Expiry != nil && now.Before(*l.Expiry)
}

// TotpStatus discriminates the TOTP enrollment union.
type TotpStatus string

const (
	TotpDisabled TotpStatus = "Disabled"
	TotpPending  TotpStatus = "Pending"
	TotpEnabled  TotpStatus = "Enabled"
)

// Totp is the TOTP enrollment state. Secret is set for Pending and Enabled
// and never serialized to clients.
type Totp struct {
	Status TotpStatus `bson:"status" json:"status"`
	Secret string     `bson:"secret,omitempty" json:"-"`
}

// MFA holds an account's multi-factor configuration.
type MFA struct {
	Totp          Totp     `bson:"totp" json:"totp"`
	RecoveryCodes []string `bson:"recovery_codes,omitempty" json:"-"`
}

// Account is the root aggregate: one persistent identity record per user.
type Account struct {
	ID              string         `bson:"_id" json:"_id"`
	Email           string         `bson:"email" json:"email"`
	EmailNormalised string         `bson:"email_normalised" json:"email_normalised"`
	PasswordHash    string         `bson:"password_hash" json:"-"`
	Disabled        bool           `bson:"disabled" json:"disabled"`
	Verification    Verification   `bson:"verification" json:"verification"`
	PasswordReset   *PasswordReset `bson:"password_reset,omitempty" json:"password_reset,omitempty"`
	Deletion        *Deletion      `bson:"deletion,omitempty" json:"deletion,omitempty"`
	Lockout         *Lockout       `bson:"lockout,omitempty" json:"lockout,omitempty"`
	MFA             MFA            `bson:"mfa" json:"mfa"`
}

// Verified reports whether the account may log in without completing email
// verification. Moving keeps the old address usable until confirmed.
func (a *Account) Verified() bool {
	return a.Verification.Status != VerificationPending
}

// Invite is a single-use registration invite.
type Invite struct {
	ID        string `bson:"_id" json:"_id"`
	Used      bool   `bson:"used" json:"used"`
	ClaimedBy string `bson:"claimed_by,omitempty" json:"claimed_by,omitempty"`
}
