package sensors

import (
	"errors"
	"fmt"
)

// ErrUnknownSensor is returned when a sensor code has no descriptor.
var ErrUnknownSensor = errors.New("unknown sensor code")

// Descriptor holds the static per-generation band catalogue. All per-band
// slices have the same length; Validate enforces it and the registry is
// checked in tests.
type Descriptor struct {
	Code        string
	Description string

	// Bands holds the current band identifiers, OldBands the identifiers
	// used by older metadata files for the same physical bands.
	Bands    []string
	OldBands []string
	Colors   []string

	// Wavelengths and Bandwidths are in micrometers.
	Wavelengths []float64
	Bandwidths  []float64

	// Esun is the exo-atmospheric solar irradiance per band; K1/K2 are the
	// thermal conversion constants, zero for non-thermal bands.
	Esun []float64
	K1   []float64
	K2   []float64
}

var registry = map[string]Descriptor{
	"LT5": {
		Code:        "LT5",
		Description: "Landsat 5",
		Bands:       []string{"1", "2", "3", "4", "5", "6", "7"},
		OldBands:    []string{"1", "2", "3", "4", "5", "6", "7"},
		Colors:      []string{"BLUE", "GREEN", "RED", "NIR", "SWIR1", "LWIR", "SWIR2"},
		Wavelengths: []float64{0.4825, 0.565, 0.66, 0.825, 1.65, 11.45, 2.22},
		Bandwidths:  []float64{0.065, 0.08, 0.06, 0.15, 0.2, 2.1, 0.26},
		Esun:        []float64{1983, 1796, 1536, 1031, 220.0, 0, 83.44},
		K1:          []float64{0, 0, 0, 0, 0, 607.76, 0},
		K2:          []float64{0, 0, 0, 0, 0, 1260.56, 0},
	},
	"LE7": {
		Code:        "LE7",
		Description: "Landsat 7",
		Bands:       []string{"1", "2", "3", "4", "5", "6_VCID_1", "7"},
		OldBands:    []string{"1", "2", "3", "4", "5", "61", "7"},
		Colors:      []string{"BLUE", "GREEN", "RED", "NIR", "SWIR1", "LWIR", "SWIR2"},
		Wavelengths: []float64{0.4825, 0.565, 0.66, 0.825, 1.65, 11.45, 2.22},
		Bandwidths:  []float64{0.065, 0.08, 0.06, 0.15, 0.2, 2.1, 0.26},
		Esun:        []float64{1997, 1812, 1533, 1039, 230.8, 0, 84.90},
		K1:          []float64{0, 0, 0, 0, 0, 666.09, 0},
		K2:          []float64{0, 0, 0, 0, 0, 1282.71, 0},
	},
	"LC8": {
		Code:        "LC8",
		Description: "Landsat 8",
		Bands:       []string{"1", "2", "3", "4", "5", "6", "7", "9"},
		OldBands:    []string{"1", "2", "3", "4", "5", "6", "7", "9"},
		Colors:      []string{"COASTAL", "BLUE", "GREEN", "RED", "NIR", "SWIR1", "SWIR2", "CIRRUS"},
		Wavelengths: []float64{0.443, 0.4825, 0.5625, 0.655, 0.865, 1.610, 2.2, 1.375},
		Bandwidths:  []float64{0.01, 0.0325, 0.0375, 0.025, 0.02, 0.05, 0.1, 0.015},
		Esun:        []float64{2638.35, 2031.08, 1821.09, 2075.48, 1272.96, 246.94, 90.61, 369.36},
		K1:          []float64{0, 0, 0, 0, 0, 0, 0, 0},
		K2:          []float64{0, 0, 0, 0, 0, 0, 0, 0},
	},
}

// Lookup returns the descriptor for a 3-character sensor code.
func Lookup(code string) (Descriptor, error) {
	d, ok := registry[code]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownSensor, code)
	}
	return d, nil
}

// All returns every registered descriptor.
func All() []Descriptor {
	out := make([]Descriptor, 0, len(registry))
	for _, d := range registry {
		out = append(out, d)
	}
	return out
}

// NumBands returns the band count of the descriptor.
func (d Descriptor) NumBands() int {
	return len(d.Bands)
}

// Validate checks that every per-band slice has the same length.
func (d Descriptor) Validate() error {
	n := len(d.Bands)
	for name, l := range map[string]int{
		"old bands":   len(d.OldBands),
		"colors":      len(d.Colors),
		"wavelengths": len(d.Wavelengths),
		"bandwidths":  len(d.Bandwidths),
		"esun":        len(d.Esun),
		"k1":          len(d.K1),
		"k2":          len(d.K2),
	} {
		if l != n {
			return fmt.Errorf("sensor %s: %s has %d entries, want %d", d.Code, name, l, n)
		}
	}
	return nil
}
