// Package imagery is the band I/O and band-algebra engine boundary. The
// pipeline talks to the Engine/Image interfaces; the GDAL-backed
// implementation lives in this package, test stubs live with the tests
// that use them.
package imagery

import (
	"github.com/terrawatch/landsat-pipeline-poc/internal/atmosphere"
)

// BandSetup carries everything needed to calibrate one band of a loaded
// image. Esun is already adjusted for sun-earth distance and solar zenith.
type BandSetup struct {
	Color  string
	Gain   float64
	Offset float64
	DNMin  int
	DNMax  int
	Esun   float64
	K1     float64
	K2     float64
}

// Image is one loaded multi-band scene. Band indices are zero-based and
// follow sensor band order.
type Image interface {
	NumBands() int
	SetNoData(v float64)
	SetUnits(units string)
	SetBand(i int, s BandSetup) error

	// ApplyAtmosphere attaches correction parameters to band i; a nil
	// params pointer clears them.
	ApplyAtmosphere(i int, p *atmosphere.Params) error
	ClearAtmosphere()

	Close() error
}

// CloudMaskParams are the geometry and morphology inputs of the cloud
// cover assessment.
type CloudMaskParams struct {
	SolarAzimuth   float64
	SolarElevation float64
	Erosion        int
	Dilation       int
	CloudHeight    int
}

// Engine loads scenes and computes products from them. Every computation
// returns the path of the artifact it produced.
type Engine interface {
	Load(paths []string) (Image, error)
	Radiance(img Image, outPath string) (string, error)
	Reflectance(img Image, outPath string) (string, error)
	CloudMask(img Image, outPath string, p CloudMaskParams) (string, error)

	// Indices computes all requested spectral indices in one pass; keys
	// are uppercased product identifiers mapped to output paths.
	Indices(img Image, outputs map[string]string) (map[string]string, error)
}
