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

// ApplicationCodeRepository implements port.ApplicationCodeRepository
type ApplicationCodeRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewApplicationCodeRepository creates a new application code repository
func NewApplicationCodeRepository(db *sqldb.DB, logger *zap.Logger) port.ApplicationCodeRepository {
	return &ApplicationCodeRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new application code
func (r *ApplicationCodeRepository) Create(ctx context.Context, code *entity.ApplicationCode) error {
	query := r.db.Rebind(`
		INSERT INTO application_codes (id, code, name, description, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		code.ID,
		code.Code,
		code.Name,
		code.Description,
		code.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create application code", zap.String("code", code.Code), zap.Error(err))
		return fmt.Errorf("failed to create application code: %w", err)
	}

	return nil
}

// GetByID retrieves an application code by ID
func (r *ApplicationCodeRepository) GetByID(ctx context.Context, id string) (*entity.ApplicationCode, error) {
	return r.getOne(ctx, "id", id)
}

// GetByCode retrieves an application code by its short code
func (r *ApplicationCodeRepository) GetByCode(ctx context.Context, code string) (*entity.ApplicationCode, error) {
	return r.getOne(ctx, "code", code)
}

func (r *ApplicationCodeRepository) getOne(ctx context.Context, column, value string) (*entity.ApplicationCode, error) {
	query := r.db.Rebind(`
		SELECT id, code, name, description, created_at
		FROM application_codes
		WHERE ` + column + ` = ?
	`)

	var code entity.ApplicationCode
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, value).Scan(
		&code.ID,
		&code.Code,
		&code.Name,
		&code.Description,
		&code.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get application code", zap.String(column, value), zap.Error(err))
		return nil, fmt.Errorf("failed to get application code: %w", err)
	}

	return &code, nil
}

// List retrieves all application codes ordered by code
func (r *ApplicationCodeRepository) List(ctx context.Context) ([]*entity.ApplicationCode, error) {
	query := `
		SELECT id, code, name, description, created_at
		FROM application_codes
		ORDER BY code ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list application codes", zap.Error(err))
		return nil, fmt.Errorf("failed to list application codes: %w", err)
	}
	defer rows.Close()

	codes := make([]*entity.ApplicationCode, 0)
	for rows.Next() {
		var code entity.ApplicationCode
		if err := rows.Scan(&code.ID, &code.Code, &code.Name, &code.Description, &code.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan application code: %w", err)
		}
		codes = append(codes, &code)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating application codes: %w", err)
	}

	return codes, nil
}

var _ port.ApplicationCodeRepository = (*ApplicationCodeRepository)(nil)
