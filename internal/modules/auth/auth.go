package auth

import (
	"context"
)

// Service defines the interface for terminal authentication logic.
type Service interface {
	// Login verifies an operator PIN and returns a signed session token
	// for the terminal to attach to sync and override requests.
	Login(ctx context.Context, req LoginRequest) (string, error)
}

// LoginRequest is the terminal login payload.
type LoginRequest struct {
	TenantID string `json:"tenant_id"`
	Code     string `json:"code"`
	PIN      string `json:"pin"`
}
