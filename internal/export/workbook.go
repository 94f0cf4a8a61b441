package export

import (
	"fmt"
	"io"
	"time"

	"github.com/kursadbilgin/campaign-dispatch/internal/domain"
	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "Delivery Logs"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var logColumns = []string{
	"id", "tenant_id", "campaign_id", "campaign_name", "trigger",
	"entity_kind", "entity_id", "status", "attempt_count", "max_attempts",
	"last_status_code", "last_error", "created_at", "completed_at",
}

// WriteDeliveryLogs renders the logs as a single-sheet xlsx workbook.
// Failed dispatches (EXHAUSTED, CANCELED) are highlighted.
func WriteDeliveryLogs(w io.Writer, logs []domain.DeliveryLog) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory workbook

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"D9D9D9"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	failedStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"F8CBAD"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create status style: %w", err)
	}

	header := make([]any, 0, len(logColumns))
	for _, column := range logColumns {
		header = append(header, column)
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	lastColumn, err := excelize.ColumnNumberToName(len(logColumns))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", lastColumn+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, log := range logs {
		rowNumber := i + 2
		cell, err := excelize.CoordinatesToCellName(1, rowNumber)
		if err != nil {
			return err
		}

		row := logRow(log)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write log %s: %w", log.ID, err)
		}

		if log.Status == domain.DeliveryExhausted || log.Status == domain.DeliveryCanceled {
			end := fmt.Sprintf("%s%d", lastColumn, rowNumber)
			if err := f.SetCellStyle(SheetName, cell, end, failedStyle); err != nil {
				return fmt.Errorf("failed to style log %s: %w", log.ID, err)
			}
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func logRow(log domain.DeliveryLog) []any {
	row := []any{
		log.ID,
		log.TenantID,
		log.CampaignID,
		log.CampaignName,
		log.TriggerName.String(),
		log.EntityKind.String(),
		log.EntityID,
		log.Status.String(),
		log.AttemptCount,
		log.MaxAttempts,
		"",
		"",
		log.CreatedAt.UTC().Format(time.RFC3339),
		"",
	}
	if log.LastStatusCode != nil {
		row[10] = *log.LastStatusCode
	}
	if log.LastError != nil {
		row[11] = *log.LastError
	}
	if log.CompletedAt != nil {
		row[13] = log.CompletedAt.UTC().Format(time.RFC3339)
	}
	return row
}
