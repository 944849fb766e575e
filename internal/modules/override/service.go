package override

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Mani87-nq/yardbooks-web-sub005/internal/metrics"
	"github.com/Mani87-nq/yardbooks-web-sub005/internal/modules/roster"
)

// Service defines the manager override authorization logic.
type Service interface {
	// Authorize validates an elevated-privilege PIN for a sensitive
	// terminal action. Expected denials (wrong role, locked credential,
	// bad PIN) come back as a Decision; errors are infrastructure only.
	Authorize(ctx context.Context, tenantID, requesterID uuid.UUID, req AuthorizeRequest) (*Decision, error)
}

type service struct {
	operators roster.Repository
	repo      Repository
	now       func() time.Time
}

// NewService creates a new override authorizer.
func NewService(operators roster.Repository, repo Repository) Service {
	return &service{operators: operators, repo: repo, now: time.Now}
}

// ErrValidation marks a malformed request that must be corrected
// client-side, as opposed to an infrastructure failure.
type ErrValidation struct{ msg string }

func (e *ErrValidation) Error() string { return e.msg }

func (s *service) Authorize(ctx context.Context, tenantID, requesterID uuid.UUID, req AuthorizeRequest) (*Decision, error) {
	if req.TargetCode == "" || req.Action == "" {
		return nil, &ErrValidation{msg: "target_code and action are required"}
	}

	audit := &AuditRecord{
		ID:          uuid.New(),
		TenantID:    tenantID,
		RequesterID: requesterID,
		TargetCode:  req.TargetCode,
		Action:      req.Action,
		Reason:      req.Reason,
		CreatedAt:   s.now().UTC(),
	}

	target, err := s.operators.GetByCode(ctx, tenantID, req.TargetCode)
	if err != nil {
		// An unknown target reads the same as an unprivileged one so the
		// response does not reveal which operators exist.
		return s.deny(ctx, audit, OutcomeNotPrivileged, &Decision{DenialReason: ReasonNotPrivileged})
	}
	audit.TargetID = &target.ID

	if target.Role != roster.RoleManager || !target.Capabilities.CanOverride || !target.IsActive {
		return s.deny(ctx, audit, OutcomeNotPrivileged, &Decision{DenialReason: ReasonNotPrivileged})
	}

	now := s.now()
	if isLocked(target.FailedPINAttempts, target.LockedUntil, now) {
		// No PIN check is consumed against a locked credential.
		d := &Decision{DenialReason: ReasonLocked, LockedUntil: target.LockedUntil}
		return s.deny(ctx, audit, OutcomeLocked, d)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(target.PINDigest), []byte(req.PIN)); err != nil {
		failures, ferr := s.repo.RecordFailure(ctx, tenantID, target.ID)
		if ferr != nil {
			return nil, fmt.Errorf("record pin failure: %w", ferr)
		}
		// A count at or past the indefinite threshold is itself the lock;
		// only finite windows get a timestamp.
		if dur, indefinite := lockAfter(failures); !indefinite && dur > 0 {
			until := now.Add(dur)
			if lerr := s.repo.SetLock(ctx, tenantID, target.ID, until); lerr != nil {
				return nil, fmt.Errorf("set lock: %w", lerr)
			}
		}
		return s.deny(ctx, audit, OutcomeInvalidPIN, &Decision{DenialReason: ReasonInvalidPIN})
	}

	if err := s.repo.ResetLockout(ctx, tenantID, target.ID); err != nil {
		return nil, fmt.Errorf("reset lockout: %w", err)
	}

	audit.Outcome = OutcomeGranted
	if err := s.repo.CreateAudit(ctx, audit); err != nil {
		return nil, fmt.Errorf("write audit record: %w", err)
	}
	metrics.OverrideAttemptsTotal.WithLabelValues("granted").Inc()

	return &Decision{Granted: true, TargetID: &target.ID, TargetName: target.Name}, nil
}

// deny writes the audit record for a refused attempt and returns the
// decision. Audit persistence is not optional: a failed write is an
// infrastructure error, not a silent drop.
func (s *service) deny(ctx context.Context, audit *AuditRecord, outcome string, d *Decision) (*Decision, error) {
	audit.Outcome = outcome
	if err := s.repo.CreateAudit(ctx, audit); err != nil {
		return nil, fmt.Errorf("write audit record: %w", err)
	}
	switch outcome {
	case OutcomeNotPrivileged:
		metrics.OverrideAttemptsTotal.WithLabelValues("not_privileged").Inc()
	case OutcomeLocked:
		metrics.OverrideAttemptsTotal.WithLabelValues("locked").Inc()
	case OutcomeInvalidPIN:
		metrics.OverrideAttemptsTotal.WithLabelValues("invalid_pin").Inc()
	}
	return d, nil
}
