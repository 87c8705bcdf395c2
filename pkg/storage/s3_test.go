package storage

import "testing"

func TestReportKey(t *testing.T) {
	tests := []struct {
		date, category, want string
	}{
		{"2024-03-03", "general", "reports/attendance/2024-03-03/GENERAL.csv"},
		{"2024-03-03", "", "reports/attendance/2024-03-03/ALL.csv"},
		{"../2024-03-03", "../OD", "reports/attendance/2024-03-03/OD.csv"},
	}
	for _, tt := range tests {
		if got := ReportKey(tt.date, tt.category); got != tt.want {
			t.Errorf("ReportKey(%q, %q) = %q, want %q", tt.date, tt.category, got, tt.want)
		}
	}
}
