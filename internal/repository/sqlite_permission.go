package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/wbs/internal/db"
	"github.com/alexanderramin/wbs/internal/domain"
)

const permissionColumns = `id, user_id, company_id, module_id, sub_module_id, access_level, created_at, updated_at`

// SQLitePermissionRepo implements PermissionRepo using a SQLite database.
type SQLitePermissionRepo struct {
	db db.DBTX
}

// NewSQLitePermissionRepo creates a new SQLitePermissionRepo.
func NewSQLitePermissionRepo(conn db.DBTX) *SQLitePermissionRepo {
	return &SQLitePermissionRepo{db: conn}
}

func (r *SQLitePermissionRepo) ListByUserCompany(ctx context.Context, userID, companyID string) ([]domain.UserPermission, error) {
	query := `SELECT ` + permissionColumns + ` FROM module_permissions
		WHERE user_id = ? AND company_id = ?
		ORDER BY module_id, COALESCE(sub_module_id, '')`
	rows, err := r.db.QueryContext(ctx, query, userID, companyID)
	if err != nil {
		return nil, fmt.Errorf("listing permissions: %w", err)
	}
	defer rows.Close()

	perms := []domain.UserPermission{}
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning permission: %w", err)
		}
		perms = append(perms, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating permissions: %w", err)
	}
	return perms, nil
}

// FindGrant returns the row for the exact (module, sub-module) tuple. A nil
// subModuleID selects the module-level row.
func (r *SQLitePermissionRepo) FindGrant(ctx context.Context, userID, companyID, moduleID string, subModuleID *string) (*domain.UserPermission, error) {
	sub := ""
	if subModuleID != nil {
		sub = *subModuleID
	}
	query := `SELECT ` + permissionColumns + ` FROM module_permissions
		WHERE user_id = ? AND company_id = ? AND module_id = ? AND COALESCE(sub_module_id, '') = ?`
	p, err := scanPermission(r.db.QueryRowContext(ctx, query, userID, companyID, moduleID, sub))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("no grant for %s/%s", moduleID, sub)
		}
		return nil, fmt.Errorf("finding permission: %w", err)
	}
	return p, nil
}

// Upsert inserts p or updates the access level of the existing row for the
// same tuple, in which case p.ID and p.CreatedAt take the stored values.
// Callers run it inside a transaction.
func (r *SQLitePermissionRepo) Upsert(ctx context.Context, p *domain.UserPermission) error {
	now := time.Now().UTC()
	existing, err := r.FindGrant(ctx, p.UserID, p.CompanyID, p.ModuleID, p.SubModuleID)
	if err != nil && !domain.IsCode(err, domain.CodeNotFound) {
		return err
	}

	if existing != nil {
		query := `UPDATE module_permissions SET access_level = ?, updated_at = ? WHERE id = ?`
		if _, err := r.db.ExecContext(ctx, query, string(p.AccessLevel), now.Format(timestampLayout), existing.ID); err != nil {
			return fmt.Errorf("updating permission: %w", err)
		}
		p.ID = existing.ID
		p.CreatedAt = existing.CreatedAt
		p.UpdatedAt = now
		return nil
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	query := `INSERT INTO module_permissions (` + permissionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		p.ID,
		p.UserID,
		p.CompanyID,
		p.ModuleID,
		nullableStringToValue(p.SubModuleID),
		string(p.AccessLevel),
		p.CreatedAt.Format(timestampLayout),
		p.UpdatedAt.Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting permission: %w", err)
	}
	return nil
}

func (r *SQLitePermissionRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM module_permissions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting permission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting permission: %w", err)
	}
	if n == 0 {
		return domain.NewNotFoundError("permission %s not found", id)
	}
	return nil
}

func scanPermission(row scanner) (*domain.UserPermission, error) {
	var p domain.UserPermission
	var sub sql.NullString
	var level, createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.UserID, &p.CompanyID, &p.ModuleID, &sub, &level, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.SubModuleID = nullStringPtr(sub)
	p.AccessLevel = domain.AccessLevel(level)

	var err error
	if p.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if p.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &p, nil
}
