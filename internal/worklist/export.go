package worklist

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/cardio-insights-server/internal/domain"
)

// ExportHeader is the column layout of worklist spreadsheets.
var ExportHeader = []string{
	"MRN",
	"Name",
	"Age",
	"Sex",
	"Service Line",
	"EF (%)",
	"QRS (ms)",
	"NYHA",
	"Ferritin (ng/mL)",
	"TSAT (%)",
	"Missing GDMT",
	"Last Encounter",
}

var exportColumnWidths = []float64{14, 24, 8, 6, 22, 9, 10, 7, 16, 10, 36, 16}

// sheetNameLimit is the maximum sheet name length Excel accepts.
const sheetNameLimit = 31

// WriteXLSX renders a worklist as a single-sheet workbook.
func WriteXLSX(w io.Writer, wl domain.Worklist) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := string(wl.Filter)
	if len(sheetName) > sheetNameLimit {
		sheetName = sheetName[:sheetNameLimit]
	}
	if sheetName == "" {
		sheetName = "Worklist"
	}

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if sheetName != "Sheet1" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("failed to delete default sheet: %w", err)
		}
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range ExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}

		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheetName, name, name, exportColumnWidths[col]); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	for i, p := range wl.Patients {
		values := []interface{}{
			p.MRN,
			p.Name,
			p.Age,
			p.Sex,
			string(p.ServiceLine),
			p.EjectionFraction,
			p.QRSDurationMS,
			p.NYHAClass,
			p.Ferritin,
			p.TransferrinSaturation,
			strings.Join(p.GDMT.MissingPillars(), ", "),
			p.LastEncounter.Format("2006-01-02"),
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
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
