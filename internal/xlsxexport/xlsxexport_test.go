package xlsxexport

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func TestNormalizeSKU(t *testing.T) {
	cases := []struct{ in, want string }{
		{"AB-123(T) 60X60-5", "AB-123"},
		{"AB-123 BTE", "AB-123"},
		{"AB-123", "AB-123"},
		{"AB-123(T)", "AB-123"},
	}
	for _, c := range cases {
		if got := NormalizeSKU(c.in); got != c.want {
			t.Errorf("NormalizeSKU(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestProductionMonth_WrapsDecemberToJanuary(t *testing.T) {
	departure := time.Date(2026, time.December, 15, 0, 0, 0, 0, time.UTC)
	if got := ProductionMonth(departure); got != "ENERO" {
		t.Errorf("ProductionMonth(December) = %q, want ENERO", got)
	}
}

func TestProductionMonth_NextMonth(t *testing.T) {
	departure := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	if got := ProductionMonth(departure); got != "ABRIL" {
		t.Errorf("ProductionMonth(March) = %q, want ABRIL", got)
	}
}

func TestBuild_SkipsZeroQuantityLines(t *testing.T) {
	lines := []Line{
		{SKU: "A-1", M2: decimal.NewFromInt(1000), Pallets: 8},
		{SKU: "A-2", M2: decimal.Zero},
	}
	orderDate := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	departure := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

	raw, err := Build(lines, orderDate, departure)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to reopen generated workbook: %v", err)
	}
	defer f.Close()

	a8, _ := f.GetCellValue(sheetName, "A8")
	if a8 != "A" {
		t.Errorf("A8 = %q, want A (first product line, SKU normalized from A-1)", a8)
	}
	a10, _ := f.GetCellValue(sheetName, "A10")
	if a10 != "TOTAL" {
		t.Errorf("A10 = %q, want TOTAL (zero-quantity line skipped, no row consumed for it)", a10)
	}
}

func TestBuild_ContainerFooterRounding(t *testing.T) {
	lines := []Line{{SKU: "A-1", M2: decimal.NewFromInt(134), Pallets: 1}} // under one pallet's worth by a hair
	orderDate := time.Now()
	departure := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

	raw, err := Build(lines, orderDate, departure)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to reopen generated workbook: %v", err)
	}
	defer f.Close()
	footer, _ := f.GetCellValue(sheetName, "A12")
	if footer != "1 CONTENEDORES" {
		t.Errorf("footer = %q, want \"1 CONTENEDORES\"", footer)
	}
}

// TestBuild_ContainerFooterUsesTruePalletCount guards against re-deriving
// the footer's pallet count from rounded m2: 14 pallets are 1881.6 m2,
// which rounds to 1882 m2, and ceil(1882/134.4) = 15 pallets = 2
// containers if naively re-derived, but the true input (14 pallets) fits
// in a single container.
func TestBuild_ContainerFooterUsesTruePalletCount(t *testing.T) {
	lines := []Line{{SKU: "A-1", M2: decimal.NewFromFloat(1881.6), Pallets: 14}}
	orderDate := time.Now()
	departure := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

	raw, err := Build(lines, orderDate, departure)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to reopen generated workbook: %v", err)
	}
	defer f.Close()
	footer, _ := f.GetCellValue(sheetName, "A12")
	if footer != "1 CONTENEDORES" {
		t.Errorf("footer = %q, want \"1 CONTENEDORES\" (14 pallets, not a re-derived 15)", footer)
	}
}
