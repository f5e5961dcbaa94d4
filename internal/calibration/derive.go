// Package calibration turns canonical MTL metadata into the numeric
// parameters needed to calibrate a scene: per-band linear gain/offset,
// scene geometry and acquisition time facts.
package calibration

import (
	"fmt"
	"math"
	"time"

	"github.com/terrawatch/landsat-pipeline-poc/internal/mtl"
	"github.com/terrawatch/landsat-pipeline-poc/internal/sensors"
)

// Band holds the calibration parameters for one band, in sensor band order.
// Linear radiance is gain*DN + offset.
type Band struct {
	ID       string
	Gain     float64
	Offset   float64
	DNMin    int
	DNMax    int
	Filename string
}

// Geometry holds the solar and viewing geometry of a scene. Viewing zenith
// and azimuth are fixed for nadir-looking Landsat acquisitions.
type Geometry struct {
	SolarZenith  float64
	SolarAzimuth float64
	Zenith       float64
	Azimuth      float64
	Lat          float64
	Lon          float64

	// corner coordinates in UL, UR, LL, LR order
	CornerLats [4]float64
	CornerLons [4]float64
}

// SceneTime holds the acquisition timestamp and its derived forms.
type SceneTime struct {
	DateTime    time.Time
	JulianDay   int
	DecimalTime float64
}

// SceneMetadata is the immutable per-scene calibration record, built once
// per processing invocation and never mutated in place.
type SceneMetadata struct {
	Sensor     sensors.Descriptor
	Bands      []Band
	Geometry   Geometry
	Time       SceneTime
	CloudCover float64
}

// Filenames returns the per-band source filenames in sensor band order.
func (m *SceneMetadata) Filenames() []string {
	out := make([]string, len(m.Bands))
	for i, b := range m.Bands {
		out[i] = b.Filename
	}
	return out
}

// AdjustedEsun returns the solar irradiance constant for band i corrected
// for sun-earth distance and solar zenith angle on the acquisition date.
func (m *SceneMetadata) AdjustedEsun(i int) float64 {
	theta := math.Pi * m.Geometry.SolarZenith / 180.0
	sundist := 1.0 - 0.016728*math.Cos(math.Pi*0.9856*(float64(m.Time.JulianDay)-4.0)/180.0)
	return m.Sensor.Esun[i] * math.Cos(theta) / (math.Pi * sundist * sundist)
}

var cornerOrder = []string{"UL", "UR", "LL", "LR"}

// Derive builds SceneMetadata from a canonical metadata document. Any
// missing corner or per-band tag is fatal; radiometric calibration cannot
// substitute defaults. Cloud cover alone defaults to zero when absent or
// unparsable.
func Derive(doc mtl.Document, sensor sensors.Descriptor) (*SceneMetadata, error) {
	meta := &SceneMetadata{Sensor: sensor}

	var lats, lons [4]float64
	for i, c := range cornerOrder {
		var err error
		if lats[i], err = doc.Float("CORNER_" + c + "_LAT_PRODUCT"); err != nil {
			return nil, err
		}
		if lons[i], err = doc.Float("CORNER_" + c + "_LON_PRODUCT"); err != nil {
			return nil, err
		}
	}

	sunElev, err := doc.Float("SUN_ELEVATION")
	if err != nil {
		return nil, err
	}
	sunAzim, err := doc.Float("SUN_AZIMUTH")
	if err != nil {
		return nil, err
	}
	meta.Geometry = Geometry{
		SolarZenith:  90.0 - sunElev,
		SolarAzimuth: sunAzim,
		Zenith:       0.0,
		Azimuth:      180.0,
		Lat:          (minOf(lats) + maxOf(lats)) / 2.0,
		Lon:          (minOf(lons) + maxOf(lons)) / 2.0,
		CornerLats:   lats,
		CornerLons:   lons,
	}

	date, err := doc.Get("DATE_ACQUIRED")
	if err != nil {
		return nil, err
	}
	clock, err := doc.Get("SCENE_CENTER_TIME")
	if err != nil {
		return nil, err
	}
	if len(clock) > 2 {
		// the source time carries an extra precision digit plus a zone
		// suffix; both are discarded
		clock = clock[:len(clock)-2]
	}
	dt, err := time.Parse("2006-01-02 15:04:05.999999", date+" "+clock)
	if err != nil {
		return nil, fmt.Errorf("parsing scene timestamp %q: %w", date+" "+clock, err)
	}
	sec := float64(dt.Second()) + float64(dt.Nanosecond())/1e9
	meta.Time = SceneTime{
		DateTime:    dt,
		JulianDay:   dt.YearDay(),
		DecimalTime: float64(dt.Hour()) + float64(dt.Minute())/60.0 + sec/3600.0,
	}

	if clouds, err := doc.Float("CLOUD_COVER"); err == nil {
		meta.CloudCover = clouds
	}

	for _, b := range sensor.Bands {
		dnMin, err := doc.Int("QUANTIZE_CAL_MIN_BAND_" + b)
		if err != nil {
			return nil, err
		}
		dnMax, err := doc.Int("QUANTIZE_CAL_MAX_BAND_" + b)
		if err != nil {
			return nil, err
		}
		radMin, err := doc.Float("RADIANCE_MINIMUM_BAND_" + b)
		if err != nil {
			return nil, err
		}
		radMax, err := doc.Float("RADIANCE_MAXIMUM_BAND_" + b)
		if err != nil {
			return nil, err
		}
		filename, err := doc.Get("FILE_NAME_BAND_" + b)
		if err != nil {
			return nil, err
		}
		meta.Bands = append(meta.Bands, Band{
			ID:       b,
			Gain:     (radMax - radMin) / float64(dnMax-dnMin),
			Offset:   radMin,
			DNMin:    dnMin,
			DNMax:    dnMax,
			Filename: filename,
		})
	}
	return meta, nil
}

func minOf(v [4]float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		m = math.Min(m, x)
	}
	return m
}

func maxOf(v [4]float64) float64 {
	m := v[0]
	for _, x := range v[1:] {
		m = math.Max(m, x)
	}
	return m
}
