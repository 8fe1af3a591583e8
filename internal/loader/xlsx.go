package loader

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/geosample/internal/model"
)

// XLSXOptions selects the worksheet to read. The sheet's first row is the
// header the mapping resolves against.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// XLSX reads occurrence rows from a spreadsheet and assembles them into a
// dataset.
func XLSX(path string, m Mapping, crs model.CRS, opts XLSXOptions) (*model.Dataset, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open xlsx %s", path)
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("loader: xlsx sheet %q is empty", sheet.Name)
	}

	idx, err := m.resolve(rowToStrings(sheet.Rows[0]))
	if err != nil {
		return nil, err
	}

	var occs []model.Occurrence
	for i, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		if blankRow(cells) {
			continue
		}
		occ, err := rowToOccurrence(cells, idx)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: xlsx row %d", i+2)
		}
		occs = append(occs, occ)
	}

	zap.L().Debug("xlsx loaded",
		zap.String("path", path),
		zap.String("sheet", sheet.Name),
		zap.Int("records", len(occs)),
	)
	return model.NewDataset(crs, occs), nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("loader: xlsx sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("loader: xlsx sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, c := range row.Cells {
		cells[j] = c.String()
	}
	return cells
}

// blankRow reports whether every cell is empty. Trailing blank rows are
// common in hand-edited spreadsheets and are not data.
func blankRow(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
