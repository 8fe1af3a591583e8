// Package loader reads occurrence records from CSV, shapefile, and XLSX
// sources into the typed occurrence model. Column mappings are resolved
// once against the source header; rows are parsed with explicit field
// selectors rather than positional assumptions.
package loader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Mapping names the source columns for each occurrence field. Taxon, X,
// and Y are required. An empty Site column derives site IDs from the exact
// coordinate pair, for sources that were not gridded upstream.
type Mapping struct {
	Taxon      string
	Site       string
	X          string
	Y          string
	Collection string
	Reference  string
}

// colIndex holds resolved column positions; -1 means absent.
type colIndex struct {
	taxon, site, x, y, coll, ref int
}

// resolve matches the mapping against a header row, case-insensitively.
func (m Mapping) resolve(header []string) (colIndex, error) {
	if m.Taxon == "" || m.X == "" || m.Y == "" {
		return colIndex{}, eris.New("loader: mapping requires taxon, x, and y columns")
	}

	find := func(name string) int {
		if name == "" {
			return -1
		}
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
		return -1
	}

	idx := colIndex{
		taxon: find(m.Taxon),
		site:  find(m.Site),
		x:     find(m.X),
		y:     find(m.Y),
		coll:  find(m.Collection),
		ref:   find(m.Reference),
	}
	if idx.taxon < 0 {
		return colIndex{}, eris.Errorf("loader: taxon column %q not in header", m.Taxon)
	}
	if idx.x < 0 {
		return colIndex{}, eris.Errorf("loader: x column %q not in header", m.X)
	}
	if idx.y < 0 {
		return colIndex{}, eris.Errorf("loader: y column %q not in header", m.Y)
	}
	if m.Site != "" && idx.site < 0 {
		return colIndex{}, eris.Errorf("loader: site column %q not in header", m.Site)
	}
	return idx, nil
}

// parseCoord parses one coordinate cell.
func parseCoord(cell string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return 0, eris.Wrapf(err, "loader: parse coordinate %q", cell)
	}
	return v, nil
}

// coordSiteID is the fallback site key when no site column exists: records
// at the exact same point share a site.
func coordSiteID(x, y float64) string {
	return fmt.Sprintf("%v,%v", x, y)
}

// cell returns the column value, tolerating short rows.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
