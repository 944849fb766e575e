package override

import (
	"time"

	"github.com/google/uuid"
)

// DenialReason categorizes why an override was refused. The UI explains
// denials with these; the lockout policy itself is the only defense the
// categories are allowed to leak against PIN guessing.
type DenialReason string

const (
	ReasonNotPrivileged DenialReason = "NOT_PRIVILEGED"
	ReasonLocked        DenialReason = "LOCKED"
	ReasonInvalidPIN    DenialReason = "INVALID_PIN"
)

// Audit outcomes.
const (
	OutcomeGranted       = "GRANTED"
	OutcomeNotPrivileged = "DENIED_NOT_PRIVILEGED"
	OutcomeLocked        = "DENIED_LOCKED"
	OutcomeInvalidPIN    = "DENIED_INVALID_PIN"
)

// AuthorizeRequest asks for a privileged action to be approved by the
// target operator keying their PIN.
type AuthorizeRequest struct {
	TargetCode string `json:"target_code"`
	PIN        string `json:"pin"`
	Action     string `json:"action"`
	Reason     string `json:"reason,omitempty"`
}

// Decision is the outcome of an authorization attempt. Expected denials are
// decisions, not errors.
type Decision struct {
	Granted      bool         `json:"granted"`
	TargetID     *uuid.UUID   `json:"target_id,omitempty"`
	TargetName   string       `json:"target_name,omitempty"`
	DenialReason DenialReason `json:"denial_reason,omitempty"`
	LockedUntil  *time.Time   `json:"locked_until,omitempty"`
}

// AuditRecord captures one override attempt. One is written for every
// attempt regardless of outcome, including denials that never reach the
// PIN check.
type AuditRecord struct {
	ID          uuid.UUID  `json:"id"`
	TenantID    uuid.UUID  `json:"tenant_id"`
	RequesterID uuid.UUID  `json:"requester_id"`
	TargetCode  string     `json:"target_code"`
	TargetID    *uuid.UUID `json:"target_id,omitempty"`
	Action      string     `json:"action"`
	Reason      string     `json:"reason,omitempty"`
	Outcome     string     `json:"outcome"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Lockout escalation: consecutive failures 1-2 leave the credential
// unlocked, 3-4 lock for 30s, 5-9 for 5 minutes, 10 and beyond
// indefinitely. A successful verification resets the counter.
const (
	shortLockThreshold      = 3
	mediumLockThreshold     = 5
	indefiniteLockThreshold = 10

	shortLockDuration  = 30 * time.Second
	mediumLockDuration = 5 * time.Minute
)

// lockAfter returns the lock window earned by the given consecutive
// failure count. indefinite means no window length applies.
func lockAfter(failures int) (d time.Duration, indefinite bool) {
	switch {
	case failures >= indefiniteLockThreshold:
		return 0, true
	case failures >= mediumLockThreshold:
		return mediumLockDuration, false
	case failures >= shortLockThreshold:
		return shortLockDuration, false
	default:
		return 0, false
	}
}

// isLocked reports whether a credential with the given state refuses PIN
// checks at the given instant.
func isLocked(failures int, lockedUntil *time.Time, now time.Time) bool {
	if failures >= indefiniteLockThreshold {
		return true
	}
	return lockedUntil != nil && now.Before(*lockedUntil)
}
