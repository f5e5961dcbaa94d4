// Package report exports scene-level records for downstream filtering and
// bookkeeping: a CSV inventory of processed scenes and a GeoJSON footprint
// per scene.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/terrawatch/landsat-pipeline-poc/internal/calibration"
	"github.com/terrawatch/landsat-pipeline-poc/internal/scene"
)

type SceneRecord struct {
	SceneID    string  `csv:"scene_id"`
	Sensor     string  `csv:"sensor"`
	TileID     string  `csv:"tile"`
	Date       string  `csv:"date"`
	CenterLat  float64 `csv:"center_lat"`
	CenterLon  float64 `csv:"center_lon"`
	CloudCover float64 `csv:"cloud_cover"`
	Products   string  `csv:"products"`
}

// NewSceneRecord flattens one processed scene into an inventory row.
// Product ids are sorted so rows are stable across runs.
func NewSceneRecord(a scene.Asset, meta *calibration.SceneMetadata, produced map[string]string) SceneRecord {
	ids := make([]string, 0, len(produced))
	for id := range produced {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return SceneRecord{
		SceneID:    a.SceneID,
		Sensor:     a.Sensor,
		TileID:     a.TileID,
		Date:       meta.Time.DateTime.Format("2006-01-02"),
		CenterLat:  meta.Geometry.Lat,
		CenterLon:  meta.Geometry.Lon,
		CloudCover: meta.CloudCover,
		Products:   strings.Join(ids, " "),
	}
}

// WriteInventory writes the scene records as CSV.
func WriteInventory(path string, records []SceneRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating inventory %s: %w", path, err)
	}
	defer f.Close()
	return gocsv.MarshalFile(&records, f)
}

// Footprint builds the scene's ground footprint as a GeoJSON feature from
// the corner coordinates.
func Footprint(a scene.Asset, meta *calibration.SceneMetadata) *geojson.Feature {
	lats := meta.Geometry.CornerLats
	lons := meta.Geometry.CornerLons
	// corners arrive UL, UR, LL, LR; the ring walks the perimeter
	ring := orb.Ring{
		{lons[0], lats[0]},
		{lons[1], lats[1]},
		{lons[3], lats[3]},
		{lons[2], lats[2]},
		{lons[0], lats[0]},
	}
	f := geojson.NewFeature(orb.Polygon{ring})
	f.Properties["scene_id"] = a.SceneID
	f.Properties["sensor"] = a.Sensor
	f.Properties["date"] = meta.Time.DateTime.Format("2006-01-02")
	f.Properties["cloud_cover"] = meta.CloudCover
	return f
}

// WriteFootprints writes one feature collection covering all scenes.
func WriteFootprints(path string, features []*geojson.Feature) error {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		fc.Append(f)
	}
	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
