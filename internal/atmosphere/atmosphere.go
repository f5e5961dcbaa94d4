// Package atmosphere defines the per-band atmospheric correction contract.
// The radiative-transfer physics lives behind the Model interface; the
// pipeline only needs one parameter set per band per scene.
package atmosphere

import (
	"math"

	"github.com/terrawatch/landsat-pipeline-poc/internal/calibration"
)

// Params is the correction parameter set for one band. Corrected radiance
// is (L - PathRadiance) / Transmittance.
type Params struct {
	Transmittance float64
	PathRadiance  float64
	SkyIrradiance float64
}

// Model computes correction parameters for a zero-based band index from
// scene geometry and time. Implementations are called once per band per
// processing run.
type Model interface {
	Correct(band int, meta *calibration.SceneMetadata) (Params, error)
}

// Rayleigh is a built-in single-scattering approximation. It stands in for
// a full radiative-transfer run and only accounts for molecular scattering
// along the sun-target-sensor path.
type Rayleigh struct{}

func (Rayleigh) Correct(band int, meta *calibration.SceneMetadata) (Params, error) {
	w := meta.Sensor.Wavelengths[band]
	if w > 3.0 {
		// thermal bands pass through uncorrected
		return Params{Transmittance: 1.0}, nil
	}

	// Rayleigh optical depth after Hansen & Travis (1974)
	tau := 0.008569 * math.Pow(w, -4) * (1 + 0.0113*math.Pow(w, -2) + 0.00013*math.Pow(w, -4))

	solar := math.Pi * meta.Geometry.SolarZenith / 180.0
	view := math.Pi * meta.Geometry.Zenith / 180.0
	airmass := 1/math.Cos(solar) + 1/math.Cos(view)

	trans := math.Exp(-tau * airmass)
	esun := meta.AdjustedEsun(band)
	path := esun * (1 - math.Exp(-tau/math.Cos(solar))) / (4 * math.Pi)

	return Params{
		Transmittance: trans,
		PathRadiance:  path,
		SkyIrradiance: esun * (1 - trans),
	}, nil
}
