// pkg/export/xlsx.go
package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/360EntSecGroup-Skylar/excelize/v2"

	"github.com/David-Botos/customer-data-platform/pkg/converter"
	"github.com/David-Botos/customer-data-platform/pkg/model"
)

// ContentType is the MIME type of an XLSX workbook
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const defaultSheet = "Sheet1"

// Exporter writes tables as XLSX workbooks
type Exporter struct {
	converter *converter.TypeConverter
}

// NewExporter creates an exporter; a nil converter gets the default one
func NewExporter(tc *converter.TypeConverter) *Exporter {
	if tc == nil {
		tc = converter.NewTypeConverter(nil)
	}
	return &Exporter{converter: tc}
}

// FileName returns the download name of a table export
func FileName(table string) string {
	return table + ".xlsx"
}

// Workbook builds a single sheet workbook named after the table: a header
// row with the columns, then one row per record. Missing values are empty
// cells, times are RFC3339 text and nested documents JSON.
func (e *Exporter) Workbook(t *model.Table) (*excelize.File, error) {
	if t == nil {
		return nil, errors.New("table cannot be nil")
	}

	f := excelize.NewFile()
	sheet := sheetName(t.Name)
	f.SetSheetName(defaultSheet, sheet)

	header := make([]interface{}, len(t.Columns))
	for i, col := range t.Columns {
		header[i] = col
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range t.Rows {
		cells := make([]interface{}, len(t.Columns))
		for j, col := range t.Columns {
			cells[j] = e.converter.ToCellValue(row[col])
		}
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to address row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(sheet, axis, &cells); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	return f, nil
}

// Write streams the workbook of a table to w
func (e *Exporter) Write(w io.Writer, t *model.Table) error {
	f, err := e.Workbook(t)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Bytes returns the workbook of a table as a byte slice
func (e *Exporter) Bytes(t *model.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Write(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sheetName trims a table name to Excel's 31 character sheet limit
func sheetName(name string) string {
	if name == "" {
		return defaultSheet
	}
	if len(name) > 31 {
		return name[:31]
	}
	return name
}
