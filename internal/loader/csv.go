package loader

import (
	"context"
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geosample/internal/model"
)

// CSVOptions configures the CSV reader. The first row is always treated as
// the header the mapping resolves against.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
}

// CSV reads occurrence rows from a delimited stream and assembles them into
// a dataset. Rows are parsed in order, so the dataset's site pool preserves
// the source's first-seen site order.
func CSV(ctx context.Context, r io.Reader, m Mapping, crs model.CRS, opts CSVOptions) (*model.Dataset, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1 // allow variable fields

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("loader: csv stream is empty")
	}
	if err != nil {
		return nil, eris.Wrap(err, "loader: read csv header")
	}
	idx, err := m.resolve(header)
	if err != nil {
		return nil, err
	}

	var occs []model.Occurrence
	line := 1
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "loader: csv read cancelled")
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "loader: read csv row")
		}
		line++

		occ, err := rowToOccurrence(row, idx)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: csv line %d", line)
		}
		occs = append(occs, occ)
	}

	zap.L().Debug("csv loaded",
		zap.Int("records", len(occs)),
	)
	return model.NewDataset(crs, occs), nil
}

// rowToOccurrence parses one source row through the resolved column index.
// Rows missing a taxon or coordinates are errors, not skips: a silently
// shrinking dataset would bias every downstream subsample.
func rowToOccurrence(row []string, idx colIndex) (model.Occurrence, error) {
	taxon := cell(row, idx.taxon)
	if taxon == "" {
		return model.Occurrence{}, eris.New("loader: empty taxon")
	}

	x, err := parseCoord(cell(row, idx.x))
	if err != nil {
		return model.Occurrence{}, err
	}
	y, err := parseCoord(cell(row, idx.y))
	if err != nil {
		return model.Occurrence{}, err
	}

	siteID := cell(row, idx.site)
	if siteID == "" {
		siteID = coordSiteID(x, y)
	}

	return model.Occurrence{
		TaxonID:      taxon,
		SiteID:       siteID,
		X:            x,
		Y:            y,
		CollectionID: cell(row, idx.coll),
		ReferenceID:  cell(row, idx.ref),
	}, nil
}
