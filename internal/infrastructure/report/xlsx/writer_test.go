package xlsx

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/medbrief/internal/core/domain"
)

func TestWriteAdminReport(t *testing.T) {
	var buf bytes.Buffer
	err := NewWriter().WriteAdminReport(&buf,
		domain.DashboardStats{TotalSummaries: 12, ActiveUsers: 3, ServerStatus: domain.ServerOnline, AverageTime: "8.0s"},
		[]domain.AdminUser{{ID: "u-1", Name: "Dr. Ana", Email: "ana@clinic.example", Role: domain.RoleAdmin, Status: domain.AccountActive, JoinedAt: "2026-01-02"}},
		[]domain.SystemLog{{ID: "l-1", Timestamp: "2026-03-01T09:30:00Z", Action: "Summary Completed", Status: domain.LogSuccess}},
	)
	if err != nil {
		t.Fatalf("WriteAdminReport() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); len(got) != 3 || got[0] != sheetStats {
		t.Fatalf("unexpected sheets %v", got)
	}
	total, err := f.GetCellValue(sheetStats, "B2")
	if err != nil || total != "12" {
		t.Fatalf("stats B2 = %q, %v", total, err)
	}
	users, err := f.GetRows(sheetUsers)
	if err != nil {
		t.Fatalf("GetRows(users) error = %v", err)
	}
	if len(users) != 2 || users[1][2] != "ana@clinic.example" {
		t.Fatalf("unexpected users rows %v", users)
	}
	logs, err := f.GetRows(sheetLogs)
	if err != nil {
		t.Fatalf("GetRows(logs) error = %v", err)
	}
	if len(logs) != 2 || logs[1][2] != "Summary Completed" {
		t.Fatalf("unexpected logs rows %v", logs)
	}
}
