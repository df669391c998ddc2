package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/garyjia/erp-workflow/internal/application/port"
	"github.com/garyjia/erp-workflow/internal/domain/entity"
	"github.com/garyjia/erp-workflow/internal/infrastructure/persistence/sqldb"
	"go.uber.org/zap"
)

const applicationColumns = `
	id, applicant_id, application_code_id, approval_route_id, form_data,
	status, current_level, approver_id, route_snapshot,
	submitted_at, approved_at, rejected_at, rejection_reason,
	created_at, updated_at`

// ApplicationRepository implements port.ApplicationRepository
type ApplicationRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewApplicationRepository creates a new application repository
func NewApplicationRepository(db *sqldb.DB, logger *zap.Logger) port.ApplicationRepository {
	return &ApplicationRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new application
func (r *ApplicationRepository) Create(ctx context.Context, app *entity.Application) error {
	snapshot, err := marshalJSON(snapshotOrEmpty(app.RouteSnapshot))
	if err != nil {
		return err
	}

	query := r.db.Rebind(`
		INSERT INTO applications (` + applicationColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err = r.db.Executor(ctx).ExecContext(ctx, query,
		app.ID,
		app.ApplicantID,
		app.ApplicationCodeID,
		app.ApprovalRouteID,
		formDataString(app.FormData),
		app.Status,
		app.CurrentLevel,
		nullString(app.ApproverID),
		snapshot,
		nullTime(app.SubmittedAt),
		nullTime(app.ApprovedAt),
		nullTime(app.RejectedAt),
		app.RejectionReason,
		app.CreatedAt,
		app.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create application", zap.String("id", app.ID), zap.Error(err))
		return fmt.Errorf("failed to create application: %w", err)
	}

	return nil
}

// GetByID retrieves an application by ID
func (r *ApplicationRepository) GetByID(ctx context.Context, id string) (*entity.Application, error) {
	query := r.db.Rebind(`SELECT ` + applicationColumns + ` FROM applications WHERE id = ?`)

	app, err := scanApplication(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get application by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get application: %w", err)
	}

	return app, nil
}

// List retrieves applications matching filter ordered by creation time
func (r *ApplicationRepository) List(ctx context.Context, filter port.ApplicationFilter) ([]*entity.Application, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.ApplicantID != "" {
		where = append(where, "applicant_id = ?")
		args = append(args, filter.ApplicantID)
	}
	if filter.ApproverID != "" {
		where = append(where, "approver_id = ?")
		args = append(args, filter.ApproverID)
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "status IN ("+sqldb.Placeholders(len(filter.Statuses))+")")
		for _, s := range filter.Statuses {
			args = append(args, s)
		}
	}

	query := `SELECT ` + applicationColumns + ` FROM applications`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := r.db.Executor(ctx).QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		r.logger.Error("Failed to list applications", zap.Error(err))
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	apps := make([]*entity.Application, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			r.logger.Error("Failed to scan application", zap.Error(err))
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, app)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating applications: %w", err)
	}

	return apps, nil
}

// UpdateIfCurrent writes next when the stored row still matches expected.
// The WHERE clause makes the check and the write one atomic statement.
func (r *ApplicationRepository) UpdateIfCurrent(ctx context.Context, next *entity.Application, expected port.ExpectedState) (bool, error) {
	snapshot, err := marshalJSON(snapshotOrEmpty(next.RouteSnapshot))
	if err != nil {
		return false, err
	}

	query := r.db.Rebind(`
		UPDATE applications SET
			form_data = ?, status = ?, current_level = ?, approver_id = ?,
			route_snapshot = ?, submitted_at = ?, approved_at = ?, rejected_at = ?,
			rejection_reason = ?, updated_at = ?
		WHERE id = ? AND status = ? AND current_level = ? AND COALESCE(approver_id, '') = ?
	`)

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		formDataString(next.FormData),
		next.Status,
		next.CurrentLevel,
		nullString(next.ApproverID),
		snapshot,
		nullTime(next.SubmittedAt),
		nullTime(next.ApprovedAt),
		nullTime(next.RejectedAt),
		next.RejectionReason,
		next.UpdatedAt,
		next.ID,
		expected.Status,
		expected.CurrentLevel,
		expected.ApproverID,
	)
	if err != nil {
		r.logger.Error("Failed to update application", zap.String("id", next.ID), zap.Error(err))
		return false, fmt.Errorf("failed to update application: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected == 1, nil
}

func scanApplication(row rowScanner) (*entity.Application, error) {
	var (
		app                               entity.Application
		formData, snapshot                string
		approverID                        sql.NullString
		submittedAt, approvedAt, rejected sql.NullTime
	)

	err := row.Scan(
		&app.ID,
		&app.ApplicantID,
		&app.ApplicationCodeID,
		&app.ApprovalRouteID,
		&formData,
		&app.Status,
		&app.CurrentLevel,
		&approverID,
		&snapshot,
		&submittedAt,
		&approvedAt,
		&rejected,
		&app.RejectionReason,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	app.FormData = json.RawMessage(formData)
	app.ApproverID = approverID.String
	app.SubmittedAt = timePtr(submittedAt)
	app.ApprovedAt = timePtr(approvedAt)
	app.RejectedAt = timePtr(rejected)
	if err := unmarshalJSON(snapshot, &app.RouteSnapshot); err != nil {
		return nil, err
	}
	if len(app.RouteSnapshot) == 0 {
		app.RouteSnapshot = nil
	}

	return &app, nil
}

func formDataString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

func snapshotOrEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

var _ port.ApplicationRepository = (*ApplicationRepository)(nil)
