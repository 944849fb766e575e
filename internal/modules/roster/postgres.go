package roster

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type postgresRepo struct{ db *sql.DB }

// NewPostgresRepository creates a new PostgreSQL operator repository.
func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const operatorColumns = `id,tenant_id,code,name,role,pin_digest,capabilities,is_active,failed_pin_attempts,locked_until,created_at,updated_at`

func (r *postgresRepo) Create(ctx context.Context, o *Operator) error {
	caps, err := json.Marshal(o.Capabilities)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO operators
		  (id, tenant_id, code, name, role, pin_digest, capabilities, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		o.ID, o.TenantID, o.Code, o.Name, o.Role, o.PINDigest, caps, o.IsActive)
	return err
}

func scanOperator(scan func(...interface{}) error) (*Operator, error) {
	o := &Operator{}
	var caps []byte
	var lockedUntil sql.NullTime
	err := scan(&o.ID, &o.TenantID, &o.Code, &o.Name, &o.Role, &o.PINDigest,
		&caps, &o.IsActive, &o.FailedPINAttempts, &lockedUntil,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Capabilities = DecodeCapabilities(caps)
	if lockedUntil.Valid {
		t := lockedUntil.Time
		o.LockedUntil = &t
	}
	return o, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, tenantID uuid.UUID, id string) (*Operator, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE tenant_id=$1 AND id=$2`,
		tenantID, uid)
	return scanOperator(row.Scan)
}

func (r *postgresRepo) GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Operator, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+operatorColumns+` FROM operators WHERE tenant_id=$1 AND code=$2`,
		tenantID, code)
	return scanOperator(row.Scan)
}

func (r *postgresRepo) ListSince(ctx context.Context, tenantID uuid.UUID, since *time.Time) ([]*Operator, error) {
	query := `SELECT ` + operatorColumns + ` FROM operators WHERE tenant_id=$1`
	args := []interface{}{tenantID}
	if since != nil {
		query += ` AND updated_at > $2`
		args = append(args, *since)
	}
	query += ` ORDER BY updated_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var operators []*Operator
	for rows.Next() {
		o, err := scanOperator(rows.Scan)
		if err != nil {
			return nil, err
		}
		operators = append(operators, o)
	}
	return operators, rows.Err()
}

func (r *postgresRepo) SetActive(ctx context.Context, tenantID uuid.UUID, id string, active bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE operators SET is_active=$1, updated_at=NOW() WHERE tenant_id=$2 AND id=$3`,
		active, tenantID, id)
	return err
}
