package loader

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geosample/internal/model"
)

// ShpMapping names the DBF attribute fields for each non-spatial occurrence
// field. Coordinates always come from the point geometry, so the mapping
// has no X or Y selectors. An empty Site field derives site IDs from the
// point coordinates.
type ShpMapping struct {
	Taxon      string
	Site       string
	Collection string
	Reference  string
}

// Shapefile reads point occurrences from a shapefile, pairing each point
// geometry with its DBF attributes. Non-point shapes are rejected: an
// occurrence dataset has no meaningful polygon or polyline records.
func Shapefile(path string, m ShpMapping, crs model.CRS) (*model.Dataset, error) {
	if m.Taxon == "" {
		return nil, eris.New("loader: shapefile mapping requires a taxon field")
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	taxonIdx := fieldIndex(reader, m.Taxon)
	if taxonIdx < 0 {
		return nil, eris.Errorf("loader: taxon field %q not in shapefile", m.Taxon)
	}
	siteIdx := -1
	if m.Site != "" {
		siteIdx = fieldIndex(reader, m.Site)
		if siteIdx < 0 {
			return nil, eris.Errorf("loader: site field %q not in shapefile", m.Site)
		}
	}
	collIdx := fieldIndex(reader, m.Collection)
	refIdx := fieldIndex(reader, m.Reference)

	var occs []model.Occurrence
	n := 0
	for reader.Next() {
		n++
		_, shape := reader.Shape()
		x, y, err := pointCoords(shape)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: shapefile record %d", n)
		}

		taxon := strings.TrimSpace(reader.Attribute(taxonIdx))
		if taxon == "" {
			return nil, eris.Errorf("loader: shapefile record %d: empty taxon", n)
		}

		siteID := ""
		if siteIdx >= 0 {
			siteID = strings.TrimSpace(reader.Attribute(siteIdx))
		}
		if siteID == "" {
			siteID = coordSiteID(x, y)
		}

		occ := model.Occurrence{TaxonID: taxon, SiteID: siteID, X: x, Y: y}
		if collIdx >= 0 {
			occ.CollectionID = strings.TrimSpace(reader.Attribute(collIdx))
		}
		if refIdx >= 0 {
			occ.ReferenceID = strings.TrimSpace(reader.Attribute(refIdx))
		}
		occs = append(occs, occ)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrap(err, "loader: read shapefile")
	}

	zap.L().Debug("shapefile loaded",
		zap.String("path", path),
		zap.Int("records", len(occs)),
	)
	return model.NewDataset(crs, occs), nil
}

// pointCoords extracts coordinates from any of the point shape variants.
func pointCoords(s shp.Shape) (float64, float64, error) {
	switch p := s.(type) {
	case *shp.Point:
		return p.X, p.Y, nil
	case *shp.PointZ:
		return p.X, p.Y, nil
	case *shp.PointM:
		return p.X, p.Y, nil
	default:
		return 0, 0, eris.Errorf("loader: unsupported shape type %T, expected point", s)
	}
}

// fieldIndex returns the index of a named DBF field, or -1 if not found.
// DBF field names are NUL-padded to 11 bytes.
func fieldIndex(reader *shp.Reader, name string) int {
	if name == "" {
		return -1
	}
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}
