package auth

import (
	"context"
	"errors"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Mani87-nq/yardbooks-web-sub005/internal/modules/roster"
)

// ErrInvalidCredentials is returned for any failed login, without
// distinguishing unknown operator from wrong PIN.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Claims are the session token claims. Subject is the operator ID.
type Claims struct {
	TenantID string `json:"tenant_id"`
	jwt.StandardClaims
}

type service struct {
	operatorRepo roster.Repository
	secret       []byte
	tokenTTL     time.Duration
}

// NewService creates a new auth service.
func NewService(operatorRepo roster.Repository, secret []byte) Service {
	return &service{operatorRepo: operatorRepo, secret: secret, tokenTTL: 12 * time.Hour}
}

func (s *service) Login(ctx context.Context, req LoginRequest) (string, error) {
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		return "", ErrInvalidCredentials
	}

	op, err := s.operatorRepo.GetByCode(ctx, tenantID, req.Code)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if !op.IsActive {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PINDigest), []byte(req.PIN)); err != nil {
		return "", ErrInvalidCredentials
	}

	claims := &Claims{
		TenantID: op.TenantID.String(),
		StandardClaims: jwt.StandardClaims{
			Subject:   op.ID.String(),
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: time.Now().Add(s.tokenTTL).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
