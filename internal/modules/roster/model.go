package roster

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Operator roles.
const (
	RoleManager = "MANAGER"
	RoleCashier = "CASHIER"
)

// Operator is a terminal user within a tenant. The PIN digest is shipped to
// terminals so offline PIN checks are possible; it is a bcrypt hash, not a
// recoverable secret. Lockout fields are server-side only and never leave
// the roster feed.
type Operator struct {
	ID           uuid.UUID    `json:"id"`
	TenantID     uuid.UUID    `json:"tenant_id"`
	Code         string       `json:"code"`
	Name         string       `json:"name"`
	Role         string       `json:"role"`
	PINDigest    string       `json:"pin_digest"`
	Capabilities Capabilities `json:"capabilities"`
	IsActive     bool         `json:"is_active"`

	FailedPINAttempts int        `json:"-"`
	LockedUntil       *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Capabilities is the fixed set of terminal permissions. Permission data
// arrives as a loose JSON object; it is decoded into this struct at the
// boundary so unknown keys never propagate into business logic.
type Capabilities struct {
	CanVoid        bool `json:"can_void"`
	CanDiscount    bool `json:"can_discount"`
	CanOpenDrawer  bool `json:"can_open_drawer"`
	CanRefund      bool `json:"can_refund"`
	CanOverride    bool `json:"can_override"`
	MaxDiscountBps int  `json:"max_discount_bps"`
}

// DecodeCapabilities parses a raw permission object. Malformed input and
// missing keys default to no permission rather than failing the caller.
func DecodeCapabilities(raw []byte) Capabilities {
	var c Capabilities
	if len(raw) == 0 {
		return c
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return Capabilities{}
	}
	if c.MaxDiscountBps < 0 {
		c.MaxDiscountBps = 0
	}
	return c
}

// CreateOperatorRequest is the payload for adding an operator.
type CreateOperatorRequest struct {
	Code         string       `json:"code"`
	Name         string       `json:"name"`
	Role         string       `json:"role"`
	PIN          string       `json:"pin"`
	Capabilities Capabilities `json:"capabilities"`
}

// DeltaResponse is the incremental-pull envelope consumed by terminals.
type DeltaResponse struct {
	Operators     []*Operator `json:"operators"`
	Count         int         `json:"count"`
	SyncTimestamp time.Time   `json:"sync_timestamp"`
}
