package mtl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrawatch/landsat-pipeline-poc/internal/sensors"
)

const legacyLE7 = `GROUP = L1_METADATA_FILE
  ACQUISITION_DATE = "2002-03-21"
  SCENE_CENTER_SCAN_TIME = "16:46:06.1509043Z"
  PRODUCT_UL_CORNER_LAT = 10.0
  PRODUCT_UR_CORNER_LAT = 20.0
  PRODUCT_LL_CORNER_LAT = 5.0
  PRODUCT_LR_CORNER_LAT = 30.0
  LMIN_BAND1 = -1.0
  LMAX_BAND1 = 25.4
  QCALMIN_BAND1 = 0.0
  QCALMAX_BAND1 = 255.0
  BAND1_FILE_NAME = "scene_B1.TIF"
  LMIN_BAND61 = 0.0
  LMAX_BAND61 = 17.04
  QCALMIN_BAND61 = 1.0
  QCALMAX_BAND61 = 255.0
  BAND61_FILE_NAME = "scene_B61.TIF"
END_GROUP = L1_METADATA_FILE
`

func TestRewriteLegacyTags(t *testing.T) {
	le7, err := sensors.Lookup("LE7")
	require.NoError(t, err)

	doc := Normalize(legacyLE7, le7)

	assert.Equal(t, "2002-03-21", doc["DATE_ACQUIRED"])
	assert.Equal(t, "16:46:06.1509043Z", doc["SCENE_CENTER_TIME"])
	assert.Equal(t, "10.0", doc["CORNER_UL_LAT_PRODUCT"])
	assert.Equal(t, "30.0", doc["CORNER_LR_LAT_PRODUCT"])
	assert.Equal(t, "-1.0", doc["RADIANCE_MINIMUM_BAND_1"])
	assert.Equal(t, "scene_B1.TIF", doc["FILE_NAME_BAND_1"])

	// legacy band 61 maps to the current 6_VCID_1 identifier
	assert.Equal(t, "0.0", doc["RADIANCE_MINIMUM_BAND_6_VCID_1"])
	assert.Equal(t, "scene_B61.TIF", doc["FILE_NAME_BAND_6_VCID_1"])

	// the GROUP markers and legacy names must be gone
	assert.NotContains(t, doc, "GROUP")
	assert.NotContains(t, doc, "END_GROUP")
	assert.NotContains(t, doc, "LMIN_BAND1")
	assert.NotContains(t, doc, "ACQUISITION_DATE")
}

func TestRewriteDoesNotCrossSubstituteAmbiguousBands(t *testing.T) {
	// synthetic descriptor where band "1" is a textual prefix of band "11"
	d := sensors.Descriptor{
		Bands:    []string{"1", "11"},
		OldBands: []string{"1", "11"},
	}
	text := "LMIN_BAND1 = 1.0\nLMIN_BAND11 = 11.0\nBAND1_FILE_NAME = \"a\"\nBAND11_FILE_NAME = \"b\"\n"
	doc := Normalize(text, d)

	assert.Equal(t, "1.0", doc["RADIANCE_MINIMUM_BAND_1"])
	assert.Equal(t, "11.0", doc["RADIANCE_MINIMUM_BAND_11"])
	assert.Equal(t, "a", doc["FILE_NAME_BAND_1"])
	assert.Equal(t, "b", doc["FILE_NAME_BAND_11"])
}

func TestRewriteIsIdempotent(t *testing.T) {
	le7, err := sensors.Lookup("LE7")
	require.NoError(t, err)

	once := Rewrite(legacyLE7, le7)
	twice := Rewrite(once, le7)
	assert.Equal(t, once, twice)

	// and parsing canonical text yields the same document
	assert.Equal(t, Normalize(legacyLE7, le7), Normalize(once, le7))
}

func TestNormalizeDiscardsJunk(t *testing.T) {
	lt5, err := sensors.Lookup("LT5")
	require.NoError(t, err)

	text := "garbage line without separator\n\x00\x00\n  SUN_ELEVATION = 43.8 \n"
	doc := Normalize(text, lt5)
	assert.Equal(t, Document{"SUN_ELEVATION": "43.8"}, doc)
}

func TestDocumentAccessors(t *testing.T) {
	doc := Document{"SUN_AZIMUTH": "140.5", "QUANTIZE_CAL_MAX_BAND_1": "255.0"}

	v, err := doc.Float("SUN_AZIMUTH")
	require.NoError(t, err)
	assert.Equal(t, 140.5, v)

	n, err := doc.Int("QUANTIZE_CAL_MAX_BAND_1")
	require.NoError(t, err)
	assert.Equal(t, 255, n)

	_, err = doc.Get("CLOUD_COVER")
	var missing *MissingKeyError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "CLOUD_COVER", missing.Key)
}
