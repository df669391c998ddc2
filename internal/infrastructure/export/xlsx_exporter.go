// Package export renders application list views as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/erp-workflow/internal/application/port"
	"github.com/garyjia/erp-workflow/internal/domain/entity"
)

const dateTimeLayout = "2006-01-02 15:04"

var headers = []string{
	"申請ID", "申請種別", "申請者", "ステータス", "承認段階",
	"承認者", "承認ルート", "申請日時", "完了日時", "却下理由", "更新日時",
}

var statusLabels = map[string]string{
	entity.StatusDraft:           "下書き",
	entity.StatusPendingApproval: "承認待ち",
	entity.StatusApproved:        "承認済み",
	entity.StatusRejected:        "却下",
}

// XLSXExporter implements port.ViewExporter with excelize
type XLSXExporter struct {
	sheetName string
	logger    *zap.Logger
}

// NewXLSXExporter creates a new exporter. sheetName defaults to "申請一覧" and a nil logger to a no-op.
func NewXLSXExporter(sheetName string, logger *zap.Logger) *XLSXExporter {
	if sheetName == "" {
		sheetName = "申請一覧"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &XLSXExporter{
		sheetName: sheetName,
		logger:    logger,
	}
}

// Export writes a workbook with a title row, a header row and one row per application
func (e *XLSXExporter) Export(w io.Writer, title string, rows []*entity.ApplicationWithDetails) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", e.sheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	sheet := e.sheetName

	e.setCell(f, sheet, "A1", title)

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 2)
		if err != nil {
			return err
		}
		e.setCell(f, sheet, cell, h)
	}

	for r, row := range rows {
		values := []interface{}{
			row.ID,
			row.TypeName(),
			row.ApplicantName(),
			statusLabel(row.Status),
			row.CurrentLevel,
			row.ApproverID,
			row.RouteName(),
			formatTime(row.SubmittedAt),
			formatTime(completedAt(row.Application)),
			row.RejectionReason,
			row.LastActivity().Format(dateTimeLayout),
		}
		cell, err := excelize.CoordinatesToCellName(1, r+3)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r+1, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      2,
		TopLeftCell: "A3",
		ActivePane:  "bottomLeft",
	}); err != nil {
		e.logger.Warn("Failed to freeze header row", zap.Error(err))
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("View exported", zap.String("title", title), zap.Int("rows", len(rows)))
	return nil
}

func (e *XLSXExporter) setCell(f *excelize.File, sheet, cell string, value interface{}) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		e.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}

func statusLabel(status string) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return status
}

func completedAt(app *entity.Application) *time.Time {
	if app.ApprovedAt != nil {
		return app.ApprovedAt
	}
	return app.RejectedAt
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateTimeLayout)
}

var _ port.ViewExporter = (*XLSXExporter)(nil)
