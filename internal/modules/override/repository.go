package override

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the lockout-state and audit persistence the
// authorizer needs.
type Repository interface {
	// RecordFailure atomically increments the consecutive-failure counter
	// and returns the new count. The increment must not lose updates under
	// concurrent attempts from multiple terminals.
	RecordFailure(ctx context.Context, tenantID, operatorID uuid.UUID) (int, error)

	// SetLock stamps the lock-until time on the credential.
	SetLock(ctx context.Context, tenantID, operatorID uuid.UUID, until time.Time) error

	// ResetLockout clears the failure counter and any lock window.
	ResetLockout(ctx context.Context, tenantID, operatorID uuid.UUID) error

	// CreateAudit persists one attempt record.
	CreateAudit(ctx context.Context, rec *AuditRecord) error
}
