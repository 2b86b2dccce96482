package parser

import (
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func TestNormalizeDateSerials(t *testing.T) {
	tests := []struct {
		name   string
		serial float64
		format string
		want   string
	}{
		{"first day", 1, "yyyy-mm-dd", "1900-01-01"},
		{"day before phantom leap day", 59, "yyyy-mm-dd", "1900-02-28"},
		{"phantom leap day", 60, "yyyy-mm-dd", "1900-03-01"},
		{"day after phantom leap day", 61, "yyyy-mm-dd", "1900-03-01"},
		{"y2k", 36526, "yyyy-mm-dd", "2000-01-01"},
		{"modern date", 45000, "m/d/yy", "2023-03-15"},
		{"datetime", 36526.5, "yyyy-mm-dd hh:mm", "2000-01-01 12:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.serial, tt.format)
			if got != tt.want {
				t.Errorf("Normalize(%v, %q) = %q, want %q", tt.serial, tt.format, got, tt.want)
			}
		})
	}
}

func TestNormalizeSerials59And60Differ(t *testing.T) {
	a := Normalize(float64(59), "yyyy-mm-dd")
	b := Normalize(float64(60), "yyyy-mm-dd")
	if a == b {
		t.Errorf("serials 59 and 60 both normalized to %q", a)
	}
}

func TestNormalizeNumbers(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		format string
		want   string
	}{
		{"percent", 0.25, "0.00%", "25.00%"},
		{"thousands", 1234567.0, "#,##0", "1,234,567"},
		{"decimals", 3.14159, "0.00", "3.14"},
		{"dollar currency", 1234.0, "$#,##0", "$1,234"},
		{"yen currency", 1234567.0, "¥#,##0", "¥1,234,567"},
		{"negative thousands", -1234567.0, "#,##0", "-1,234,567"},
		{"general integer", 42.0, "", "42"},
		{"general fraction", 0.5, "", "0.5"},
		{"numeric string with date format", "36526", "yyyy/mm/dd", "2000-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.value, tt.format)
			if got != tt.want {
				t.Errorf("Normalize(%v, %q) = %q, want %q", tt.value, tt.format, got, tt.want)
			}
		})
	}
}

func TestNormalizeNonNumeric(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		format string
		want   string
	}{
		{"nil", nil, "", ""},
		{"plain text", "hello", "", "hello"},
		{"numeric text without format", "0012", "", "0012"},
		{"bool true", true, "", "TRUE"},
		{"bool false", false, "", "FALSE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.value, tt.format)
			if got != tt.want {
				t.Errorf("Normalize(%v, %q) = %q, want %q", tt.value, tt.format, got, tt.want)
			}
		})
	}
}

func TestNormalizeTimeValues(t *testing.T) {
	ts := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	if got := Normalize(ts, "m/d/yy"); got != "2024-05-01" {
		t.Errorf("date-only format: got %q", got)
	}
	if got := Normalize(ts, "m/d/yy h:mm"); got != "2024-05-01 09:30:00" {
		t.Errorf("datetime format: got %q", got)
	}
}

func TestFormatCode(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := "Sheet1"

	if err := f.SetCellValue(sheet, "A1", 45000); err != nil {
		t.Fatal(err)
	}
	style, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellStyle(sheet, "A1", "A1", style); err != nil {
		t.Fatal(err)
	}

	code := FormatCode(f, sheet, "A1")
	if code != "m/d/yy" {
		t.Errorf("FormatCode for builtin 14 = %q, want %q", code, "m/d/yy")
	}
	isDate, _ := detectDateTokens(code)
	if !isDate {
		t.Errorf("builtin date format %q not classified as date", code)
	}

	custom := "yyyy\"年\"m\"月\"d\"日\""
	style2, err := f.NewStyle(&excelize.Style{CustomNumFmt: &custom})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellValue(sheet, "B1", 45000); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellStyle(sheet, "B1", "B1", style2); err != nil {
		t.Fatal(err)
	}
	if got := FormatCode(f, sheet, "B1"); got != custom {
		t.Errorf("FormatCode custom = %q, want %q", got, custom)
	}
}

func TestDetectDateTokens(t *testing.T) {
	tests := []struct {
		code      string
		isDate    bool
		wantsTime bool
	}{
		{"yyyy-mm-dd", true, false},
		{"yyyy-mm-dd hh:mm:ss", true, true},
		{"h:mm:ss", false, false},
		{"0.00", false, false},
		{"\"today\" yyyy", true, false},
		{"[$-411]ge.m.d", true, false},
		{"mmm-yy", true, false},
	}
	for _, tt := range tests {
		isDate, wantsTime := detectDateTokens(tt.code)
		if isDate != tt.isDate || wantsTime != tt.wantsTime {
			t.Errorf("detectDateTokens(%q) = (%v, %v), want (%v, %v)",
				tt.code, isDate, wantsTime, tt.isDate, tt.wantsTime)
		}
	}
}
