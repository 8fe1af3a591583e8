// Package export serializes subsample site geometry to GeoJSON and EWKB
// for GIS consumers.
package export

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/geosample/internal/model"
)

// SRIDGeographic is the SRID stamped on geographic (WGS84) geometry.
const SRIDGeographic = 4326

// SubsampleGeoJSON renders a subsample as a GeoJSON FeatureCollection of
// site points. Each feature carries the site ID; the seed site, when
// present, is marked with a "seed" property.
func SubsampleGeoJSON(sub *model.Subsample) ([]byte, error) {
	if sub == nil {
		return nil, eris.New("export: nil subsample")
	}

	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(sub.Sites))}
	for _, site := range sub.Sites {
		props := map[string]interface{}{"site_id": site.ID}
		if sub.Seed != nil && site.ID == sub.Seed.ID {
			props["seed"] = true
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:         site.ID,
			Geometry:   geom.NewPointFlat(geom.XY, []float64{site.X, site.Y}),
			Properties: props,
		})
	}

	data, err := json.Marshal(fc)
	if err != nil {
		return nil, eris.Wrap(err, "export: marshal feature collection")
	}
	return data, nil
}

// CollectionGeoJSON renders every valid subsample of a collection, one
// FeatureCollection per draw, keyed by draw index. Omitted draws are
// absent.
func CollectionGeoJSON(coll model.Collection) (map[int]json.RawMessage, error) {
	out := make(map[int]json.RawMessage, len(coll.Draws))
	for _, draw := range coll.Draws {
		if draw.Omitted != "" {
			continue
		}
		data, err := SubsampleGeoJSON(draw.Subsample)
		if err != nil {
			return nil, eris.Wrapf(err, "export: draw %d", draw.Index)
		}
		out[draw.Index] = data
	}
	return out, nil
}

// SiteEWKB encodes one site as an EWKB point with the given SRID. Pass 0
// for planar data with no registered reference system.
func SiteEWKB(site model.Site, srid int) ([]byte, error) {
	p := geom.NewPointFlat(geom.XY, []float64{site.X, site.Y})
	if srid != 0 {
		p = p.SetSRID(srid)
	}

	data, err := ewkb.Marshal(p, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrapf(err, "export: encode site %s", site.ID)
	}
	return data, nil
}

// SRIDFor maps a coordinate reference system to its export SRID.
func SRIDFor(crs model.CRS) int {
	if crs == model.CRSGeographic {
		return SRIDGeographic
	}
	return 0
}
