// Package mtl normalizes Landsat MTL metadata documents into a canonical
// key space. Older processing systems emitted different tag vocabularies per
// sensor generation; everything downstream works against the current names.
package mtl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/terrawatch/landsat-pipeline-poc/internal/sensors"
)

// Document is a flat canonical tag → value mapping parsed from MTL text.
type Document map[string]string

// MissingKeyError reports a required metadata tag absent from the document.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("metadata key %q missing", e.Key)
}

// global renames, independent of sensor generation
var globalRenames = [][2]string{
	{"ACQUISITION_DATE", "DATE_ACQUIRED"},
	{"SCENE_CENTER_SCAN_TIME", "SCENE_CENTER_TIME"},
}

// per-band tag families: legacy prefix/suffix form → canonical prefix
var bandFamilies = []struct {
	oldPrefix string
	oldSuffix string
	newPrefix string
}{
	{"LMIN_BAND", "", "RADIANCE_MINIMUM_BAND_"},
	{"LMAX_BAND", "", "RADIANCE_MAXIMUM_BAND_"},
	{"QCALMIN_BAND", "", "QUANTIZE_CAL_MIN_BAND_"},
	{"QCALMAX_BAND", "", "QUANTIZE_CAL_MAX_BAND_"},
	{"BAND", "_FILE_NAME", "FILE_NAME_BAND_"},
}

var (
	cornerAxes    = []string{"LAT", "LON", "MAPX", "MAPY"}
	cornerCorners = []string{"UL", "UR", "LL", "LR"}
)

// Rewrite translates legacy tag names in raw MTL text to the canonical
// vocabulary. Band renames are word-boundary-safe so band "1" never rewrites
// inside a band "11" or "61" token. Rewriting canonical text is a no-op.
func Rewrite(text string, sensor sensors.Descriptor) string {
	for _, r := range globalRenames {
		text = strings.ReplaceAll(text, r[0], r[1])
	}
	for i, ob := range sensor.OldBands {
		nb := sensor.Bands[i]
		for _, fam := range bandFamilies {
			old := regexp.MustCompile(`\b` + regexp.QuoteMeta(fam.oldPrefix+ob+fam.oldSuffix) + `\b`)
			text = old.ReplaceAllString(text, fam.newPrefix+nb)
		}
	}
	for _, axis := range cornerAxes {
		for _, c := range cornerCorners {
			text = strings.ReplaceAll(text,
				"PRODUCT_"+c+"_CORNER_"+axis,
				"CORNER_"+c+"_"+axis+"_PRODUCT")
		}
	}
	return strings.ReplaceAll(text, "\x00", "")
}

// Normalize rewrites raw MTL text to the canonical vocabulary and parses it
// into a Document. Lines that are not KEY = "VALUE" pairs, and the
// GROUP/END_GROUP structure markers, are discarded without error; missing
// required tags surface later, at the point of use.
func Normalize(text string, sensor sensors.Descriptor) Document {
	doc := Document{}
	for _, line := range strings.Split(Rewrite(text, sensor), "\n") {
		line = strings.TrimSpace(strings.ReplaceAll(line, `"`, ""))
		parts := strings.SplitN(line, "=", 2)
		if len(parts) < 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" || key == "GROUP" || key == "END_GROUP" {
			continue
		}
		doc[key] = strings.TrimSpace(parts[1])
	}
	return doc
}

// Get returns the value for a required tag.
func (d Document) Get(key string) (string, error) {
	v, ok := d[key]
	if !ok {
		return "", &MissingKeyError{Key: key}
	}
	return v, nil
}

// Float parses a required tag as a float.
func (d Document) Float(key string) (float64, error) {
	s, err := d.Get(key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("metadata key %q: %w", key, err)
	}
	return v, nil
}

// Int parses a required tag as an integer, tolerating a float form as some
// MTL files quantize calibration bounds as "255.0".
func (d Document) Int(key string) (int, error) {
	v, err := d.Float(key)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}
