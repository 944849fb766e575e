package roster

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service defines roster business logic.
type Service interface {
	CreateOperator(ctx context.Context, tenantID uuid.UUID, req CreateOperatorRequest) (*Operator, error)
	GetOperator(ctx context.Context, tenantID uuid.UUID, id string) (*Operator, error)
	Delta(ctx context.Context, tenantID uuid.UUID, since *time.Time) (*DeltaResponse, error)
	DeactivateOperator(ctx context.Context, tenantID uuid.UUID, id string) error
}

type service struct{ repo Repository }

// NewService creates a new roster service.
func NewService(repo Repository) Service { return &service{repo: repo} }

func (s *service) CreateOperator(ctx context.Context, tenantID uuid.UUID, req CreateOperatorRequest) (*Operator, error) {
	if req.Code == "" {
		return nil, fmt.Errorf("code is required")
	}
	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if len(req.PIN) < 4 {
		return nil, fmt.Errorf("pin must be at least 4 digits")
	}

	role := strings.ToUpper(req.Role)
	switch role {
	case RoleManager, RoleCashier:
	default:
		return nil, fmt.Errorf("invalid role: %s (allowed: MANAGER, CASHIER)", req.Role)
	}

	digest, err := bcrypt.GenerateFromPassword([]byte(req.PIN), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash pin: %w", err)
	}

	o := &Operator{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Code:         req.Code,
		Name:         req.Name,
		Role:         role,
		PINDigest:    string(digest),
		Capabilities: req.Capabilities,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to persist operator: %w", err)
	}
	return o, nil
}

func (s *service) GetOperator(ctx context.Context, tenantID uuid.UUID, id string) (*Operator, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

func (s *service) Delta(ctx context.Context, tenantID uuid.UUID, since *time.Time) (*DeltaResponse, error) {
	now := time.Now().UTC()
	ops, err := s.repo.ListSince(ctx, tenantID, since)
	if err != nil {
		return nil, err
	}
	return &DeltaResponse{Operators: ops, Count: len(ops), SyncTimestamp: now}, nil
}

func (s *service) DeactivateOperator(ctx context.Context, tenantID uuid.UUID, id string) error {
	return s.repo.SetActive(ctx, tenantID, id, false)
}
