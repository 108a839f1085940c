// Package xlsxexport renders a factory order as the bit-exact "PEDIDO
// TARRAGONA" workbook the Guatemala factory expects (spec §6.2).
package xlsxexport

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Line is one requested product line for the export. Pallets is the
// caller's true input pallet count — the container footer sums it
// directly rather than re-deriving pallets from M2 (which is itself
// rounded for display), per ground-truth `export_service.py`'s
// `total_pallets += pallets`.
type Line struct {
	SKU     string
	M2      decimal.Decimal
	Pallets int
}

const sheetName = "PEDIDO TARRAGONA"

var spanishMonths = [...]string{
	"ENERO", "FEBRERO", "MARZO", "ABRIL", "MAYO", "JUNIO",
	"JULIO", "AGOSTO", "SEPTIEMBRE", "OCTUBRE", "NOVIEMBRE", "DICIEMBRE",
}

var (
	formatSuffixPattern = regexp.MustCompile(`(?i)\s+\d+X\d+(-\d+)?$`)
	trailingDashNumber  = regexp.MustCompile(`-\d$`)
	trailingBTEPattern  = regexp.MustCompile(`(?i)\s+BTE$`)
)

// NormalizeSKU applies the five-step normalization from spec §6.2.
func NormalizeSKU(sku string) string {
	s := strings.ReplaceAll(sku, "(T)", "")
	s = trailingBTEPattern.ReplaceAllString(s, "")
	s = formatSuffixPattern.ReplaceAllString(s, "")
	s = trailingDashNumber.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// ProductionMonth returns the Spanish uppercase name of month(departure)+1,
// wrapping December to January (spec §6.2).
func ProductionMonth(departure time.Time) string {
	return spanishMonths[int(departure.Month())%12]
}

// Build renders the factory-order workbook for the given lines and
// departure date, skipping zero-quantity lines, and returns the raw XLSX
// bytes.
func Build(lines []Line, orderDate, departure time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	boldTitle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	if err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 1}},
	})
	if err != nil {
		return nil, err
	}
	numberStyle, err := f.NewStyle(&excelize.Style{NumFmt: 3}) // "#,##0"
	if err != nil {
		return nil, err
	}

	f.SetCellValue(sheetName, "A1", "Pedido Tarragona Guatemala")
	f.SetCellStyle(sheetName, "A1", "A1", boldTitle)

	f.SetCellValue(sheetName, "A3", "Fecha de pedido:")
	f.SetCellValue(sheetName, "B3", orderDate.Format("02/01/2006"))

	f.SetCellValue(sheetName, "A5", "Fabricacion para:")
	f.SetCellValue(sheetName, "B5", ProductionMonth(departure))
	f.SetCellStyle(sheetName, "B5", "B5", bold)

	f.SetCellValue(sheetName, "A7", "Referencia")
	f.SetCellValue(sheetName, "B7", "Formato")
	f.SetCellValue(sheetName, "C7", "M2 solicitados")
	f.SetCellStyle(sheetName, "A7", "C7", headerStyle)

	row := 8
	total := decimal.Zero
	totalPallets := 0
	for _, l := range lines {
		if l.M2.IsZero() {
			continue
		}
		rounded := l.M2.Round(0)
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), NormalizeSKU(l.SKU))
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), "51X51")
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), roundedInt(rounded))
		f.SetCellStyle(sheetName, fmt.Sprintf("C%d", row), fmt.Sprintf("C%d", row), numberStyle)
		total = total.Add(rounded)
		totalPallets += l.Pallets
		row++
	}

	row++ // blank row
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), "TOTAL")
	f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), roundedInt(total))
	f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("A%d", row), bold)
	f.SetCellStyle(sheetName, fmt.Sprintf("C%d", row), fmt.Sprintf("C%d", row), bold)

	row += 2 // blank row, then container count
	containers := ceilDiv(totalPallets, 14)
	f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("%d CONTENEDORES", containers))

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func roundedInt(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

func ceilDiv(a, b int) int {
	if b == 0 {
		return 0
	}
	if a%b == 0 {
		return a / b
	}
	return a/b + 1
}
