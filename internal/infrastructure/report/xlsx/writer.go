package xlsx

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/medbrief/internal/core/domain"
)

const (
	sheetStats = "Stats"
	sheetUsers = "Users"
	sheetLogs  = "Logs"
)

// Writer renders the admin console data as a three-sheet workbook.
type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) WriteAdminReport(out io.Writer, stats domain.DashboardStats, users []domain.AdminUser, logs []domain.SystemLog) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetStats); err != nil {
		return fmt.Errorf("rename stats sheet: %w", err)
	}
	for _, name := range []string{sheetUsers, sheetLogs} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("create %s sheet: %w", name, err)
		}
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	statRows := [][]any{
		{"Metric", "Value"},
		{"Total summaries", stats.TotalSummaries},
		{"Active users", stats.ActiveUsers},
		{"Server status", string(stats.ServerStatus)},
		{"Average time", stats.AverageTime},
	}
	if err := writeRows(f, sheetStats, statRows, header); err != nil {
		return err
	}

	userRows := [][]any{{"ID", "Name", "Email", "Role", "Status", "Joined"}}
	for _, u := range users {
		userRows = append(userRows, []any{u.ID, u.Name, u.Email, string(u.Role), string(u.Status), u.JoinedAt})
	}
	if err := writeRows(f, sheetUsers, userRows, header); err != nil {
		return err
	}

	logRows := [][]any{{"ID", "Timestamp", "Action", "Details", "Status"}}
	for _, l := range logs {
		logRows = append(logRows, []any{l.ID, l.Timestamp, l.Action, l.Details, string(l.Status)})
	}
	if err := writeRows(f, sheetLogs, logRows, header); err != nil {
		return err
	}

	if err := f.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return fmt.Errorf("%s header: %w", sheet, err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("%s header style: %w", sheet, err)
	}
	return nil
}
