package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"registrar/internal/users/models"
	id "registrar/pkg/domain"
	"registrar/pkg/requestcontext"
)

// Schema creates the users table. The dev server applies it on demand;
// production deployments run it through their migration pipeline.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	subject_id     TEXT PRIMARY KEY,
	tenant_id      TEXT NOT NULL,
	document_type  TEXT NOT NULL,
	role           TEXT NOT NULL,
	id_number      TEXT NOT NULL,
	name           TEXT NOT NULL,
	last_name      TEXT NOT NULL,
	phone          TEXT NOT NULL DEFAULT '',
	channel        TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS users_tenant_idx ON users (tenant_id);
CREATE INDEX IF NOT EXISTS users_id_number_idx ON users (id_number);
`

const uniqueViolation = "23505"

// PostgresStore persists user rows in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed user store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema applies the table definition. Idempotent.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure users schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, user *models.User) error {
	const query = `
		INSERT INTO users (subject_id, tenant_id, document_type, role, id_number,
			name, last_name, phone, channel, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query,
		user.SubjectID.String(), user.TenantID.String(), string(user.DocumentType),
		string(user.Role), user.IDNumber, user.Name, user.LastName, user.Phone,
		string(user.Channel), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("insert user %s: %w", user.SubjectID, err)
	}
	return nil
}

func (s *PostgresStore) FindBySubject(ctx context.Context, subjectID id.SubjectID) (*models.User, error) {
	const query = `
		SELECT subject_id, tenant_id, document_type, role, id_number,
			name, last_name, phone, channel, created_at, updated_at
		FROM users WHERE subject_id = $1
	`
	row := s.db.QueryRowContext(ctx, query, subjectID.String())
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user %s: %w", subjectID, err)
	}
	return user, nil
}

// Update applies a partial field set in a single statement so concurrent
// updates to disjoint fields cannot interleave a read-modify-write.
func (s *PostgresStore) Update(ctx context.Context, subjectID id.SubjectID, fields models.UpdateFields) (*models.User, error) {
	set := []string{"updated_at = $1"}
	args := []any{requestcontext.Now(ctx)}

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if fields.TenantID != nil {
		add("tenant_id", fields.TenantID.String())
	}
	if fields.DocumentType != nil {
		add("document_type", string(*fields.DocumentType))
	}
	if fields.Role != nil {
		add("role", string(*fields.Role))
	}
	if fields.IDNumber != nil {
		add("id_number", *fields.IDNumber)
	}
	if fields.Name != nil {
		add("name", *fields.Name)
	}
	if fields.LastName != nil {
		add("last_name", *fields.LastName)
	}
	if fields.Phone != nil {
		add("phone", *fields.Phone)
	}
	if fields.Channel != nil {
		add("channel", string(*fields.Channel))
	}

	args = append(args, subjectID.String())
	query := fmt.Sprintf(`
		UPDATE users SET %s WHERE subject_id = $%d
		RETURNING subject_id, tenant_id, document_type, role, id_number,
			name, last_name, phone, channel, created_at, updated_at
	`, strings.Join(set, ", "), len(args))

	row := s.db.QueryRowContext(ctx, query, args...)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update user %s: %w", subjectID, err)
	}
	return user, nil
}

func (s *PostgresStore) Delete(ctx context.Context, subjectID id.SubjectID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE subject_id = $1`, subjectID.String())
	if err != nil {
		return fmt.Errorf("delete user %s: %w", subjectID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user %s: %w", subjectID, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.Filter) ([]*models.User, error) {
	var where []string
	var args []any

	add := func(clause string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if !filter.TenantID.IsNil() {
		add("tenant_id = $%d", filter.TenantID.String())
	}
	if filter.DocumentType != "" {
		add("document_type = $%d", string(filter.DocumentType))
	}
	if filter.IDNumber != "" {
		add("id_number = $%d", filter.IDNumber)
	}
	if filter.Name != "" {
		add("name ILIKE $%d", "%"+filter.Name+"%")
	}
	if filter.LastName != "" {
		add("last_name ILIKE $%d", "%"+filter.LastName+"%")
	}

	query := `
		SELECT subject_id, tenant_id, document_type, role, id_number,
			name, last_name, phone, channel, created_at, updated_at
		FROM users
	`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY subject_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	var subjectID, tenantID, docType, role, channel string
	err := row.Scan(&subjectID, &tenantID, &docType, &role, &u.IDNumber,
		&u.Name, &u.LastName, &u.Phone, &channel, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.SubjectID = id.SubjectID(subjectID)
	u.TenantID = id.TenantID(tenantID)
	u.DocumentType = models.DocumentType(docType)
	u.Role = models.Role(role)
	u.Channel = models.Channel(channel)
	return &u, nil
}
