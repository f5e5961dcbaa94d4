package atmosphere

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrawatch/landsat-pipeline-poc/internal/calibration"
	"github.com/terrawatch/landsat-pipeline-poc/internal/sensors"
)

func rayleighMeta(t *testing.T) *calibration.SceneMetadata {
	t.Helper()
	lt5, err := sensors.Lookup("LT5")
	require.NoError(t, err)
	return &calibration.SceneMetadata{
		Sensor: lt5,
		Geometry: calibration.Geometry{
			SolarZenith: 46.2,
			Azimuth:     180.0,
		},
		Time: calibration.SceneTime{JulianDay: 80},
	}
}

func TestRayleighVisibleBand(t *testing.T) {
	meta := rayleighMeta(t)
	p, err := Rayleigh{}.Correct(0, meta) // blue, strongest scattering
	require.NoError(t, err)

	assert.Greater(t, p.Transmittance, 0.0)
	assert.Less(t, p.Transmittance, 1.0)
	assert.Greater(t, p.PathRadiance, 0.0)
}

func TestRayleighScatteringDropsWithWavelength(t *testing.T) {
	meta := rayleighMeta(t)
	blue, err := Rayleigh{}.Correct(0, meta)
	require.NoError(t, err)
	red, err := Rayleigh{}.Correct(2, meta)
	require.NoError(t, err)

	assert.Greater(t, red.Transmittance, blue.Transmittance)
}

func TestRayleighThermalBandUncorrected(t *testing.T) {
	meta := rayleighMeta(t)
	p, err := Rayleigh{}.Correct(5, meta) // LWIR at 11.45um
	require.NoError(t, err)

	assert.Equal(t, Params{Transmittance: 1.0}, p)
}
