package history

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Scans"

var exportHeaders = []string{
	"Scanned At",
	"Source",
	"Outcome",
	"Servings Per Container",
	"Sugars (g)",
	"Total Sugar (g)",
	"Sugar Category",
	"Recommendation",
	"Scan ID",
}

// ExportXLSX writes every stored scan, newest first, as an XLSX workbook to
// w and returns the number of rows written.
func (s *Store) ExportXLSX(ctx context.Context, w io.Writer) (int, error) {
	start := time.Now()
	recs, err := s.List(ctx, 0)
	if err != nil {
		return 0, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return 0, err
	}
	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportSheet, cell, h)
	}

	for i, r := range recs {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(exportSheet, cell, v)
		}
		write(1, r.CreatedAt.Format(time.RFC3339))
		write(2, r.Source)
		write(3, string(r.Outcome))
		writeFloat(write, 4, r.Servings)
		writeFloat(write, 5, r.Sugars)
		writeFloat(write, 6, r.TotalSugar)
		write(7, r.SugarCategory)
		write(8, r.Recommendation)
		write(9, r.ID)
	}

	_ = f.SetColWidth(exportSheet, "A", "A", 22)
	_ = f.SetColWidth(exportSheet, "B", "B", 40)
	_ = f.SetColWidth(exportSheet, "C", "F", 14)
	_ = f.SetColWidth(exportSheet, "G", "H", 20)
	_ = f.SetColWidth(exportSheet, "I", "I", 38)

	if _, err := f.WriteTo(w); err != nil {
		return 0, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("History exported", "rows", len(recs), "elapsed_ms", time.Since(start).Milliseconds())
	return len(recs), nil
}

func writeFloat(write func(int, any), col int, v *float64) {
	if v == nil {
		write(col, "")
		return
	}
	write(col, *v)
}
