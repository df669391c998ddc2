package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/garyjia/erp-workflow/internal/application/port"
	"github.com/garyjia/erp-workflow/internal/domain/entity"
	"github.com/garyjia/erp-workflow/internal/infrastructure/persistence/sqldb"
	"go.uber.org/zap"
)

const userColumns = `id, name, email, department, lark_open_id`

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqldb.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert inserts a user or refreshes its display fields
func (r *UserRepository) Upsert(ctx context.Context, user *entity.User) error {
	// ON CONFLICT ... DO UPDATE is accepted by both SQLite (3.24+) and PostgreSQL.
	query := r.db.Rebind(`
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			department = excluded.department,
			lark_open_id = excluded.lark_open_id
	`)

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Department,
		user.LarkOpenID,
	)
	if err != nil {
		r.logger.Error("Failed to upsert user", zap.String("id", user.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)

	var u entity.User
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &u.Department, &u.LarkOpenID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &u, nil
}

// GetByIDs retrieves the users that exist among ids
func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*entity.User, error) {
	users := make(map[string]*entity.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	query := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE id IN (` + sqldb.Placeholders(len(ids)) + `)`)
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to get users by IDs", zap.Int("count", len(ids)), zap.Error(err))
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var u entity.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Department, &u.LarkOpenID); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users[u.ID] = &u
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// List retrieves all users ordered by ID
func (r *UserRepository) List(ctx context.Context) ([]*entity.User, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id ASC`)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*entity.User, 0)
	for rows.Next() {
		var u entity.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Department, &u.LarkOpenID); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
