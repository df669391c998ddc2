package repository

import (
	"context"
	"fmt"

	"github.com/garyjia/erp-workflow/internal/application/port"
	"github.com/garyjia/erp-workflow/internal/domain/entity"
	"github.com/garyjia/erp-workflow/internal/infrastructure/persistence/sqldb"
	"go.uber.org/zap"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sqldb.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new history record
func (r *HistoryRepository) Create(ctx context.Context, history *entity.ApprovalHistory) error {
	query := r.db.Rebind(`
		INSERT INTO approval_history (
			id, application_id, actor_id, action, from_status, to_status,
			level, comment, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		history.ID,
		history.ApplicationID,
		history.ActorID,
		history.Action,
		history.FromStatus,
		history.ToStatus,
		history.Level,
		history.Comment,
		history.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create history record", zap.String("application_id", history.ApplicationID), zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	return nil
}

// ListByApplication retrieves all history records for an application, oldest first
func (r *HistoryRepository) ListByApplication(ctx context.Context, applicationID string) ([]*entity.ApprovalHistory, error) {
	query := r.db.Rebind(`
		SELECT id, application_id, actor_id, action, from_status, to_status,
			level, comment, created_at
		FROM approval_history
		WHERE application_id = ?
		ORDER BY seq ASC
	`)

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, applicationID)
	if err != nil {
		r.logger.Error("Failed to get history by application ID", zap.String("application_id", applicationID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	records := make([]*entity.ApprovalHistory, 0)
	for rows.Next() {
		var record entity.ApprovalHistory
		err := rows.Scan(
			&record.ID,
			&record.ApplicationID,
			&record.ActorID,
			&record.Action,
			&record.FromStatus,
			&record.ToStatus,
			&record.Level,
			&record.Comment,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return records, nil
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
