package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/avolkov/filingdesk/internal/core/domain"
)

const sheetName = "Directories"

// WriteCatalog renders the directory catalog as an xlsx workbook, one row per
// directory with its derived aggregate. Rows follow the order of dirs, so the
// caller controls sorting.
func WriteCatalog(w io.Writer, dirs []domain.Directory, aggs map[string]domain.DirectoryAggregate) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := []interface{}{
		"Name", "Shared", "Has DRHP", "Has RHP", "Linked",
		"Summaries", "Reports", "Last Activity",
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, dir := range dirs {
		agg := aggs[dir.ID]
		row := []interface{}{
			dir.Name,
			yesNo(dir.IsShared),
			yesNo(agg.HasDrhp),
			yesNo(agg.HasRhp),
			yesNo(agg.IsLinked),
			agg.SummaryCount,
			agg.ReportCount,
			formatActivity(agg.MostRecentActivity),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("row coordinates: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func formatActivity(at *time.Time) string {
	if at == nil {
		return ""
	}
	return at.UTC().Format("2006-01-02 15:04")
}
