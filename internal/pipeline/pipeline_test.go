package pipeline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/terrawatch/landsat-pipeline-poc/internal/atmosphere"
	"github.com/terrawatch/landsat-pipeline-poc/internal/calibration"
	"github.com/terrawatch/landsat-pipeline-poc/internal/imagery"
	"github.com/terrawatch/landsat-pipeline-poc/internal/products"
	"github.com/terrawatch/landsat-pipeline-poc/internal/sensors"
)

type stubImage struct {
	bands   int
	applied []*atmosphere.Params
	cleared int
}

func newStubImage(bands int) *stubImage {
	return &stubImage{bands: bands, applied: make([]*atmosphere.Params, bands)}
}

func (s *stubImage) NumBands() int                        { return s.bands }
func (s *stubImage) SetNoData(float64)                    {}
func (s *stubImage) SetUnits(string)                      {}
func (s *stubImage) SetBand(int, imagery.BandSetup) error { return nil }
func (s *stubImage) Close() error                         { return nil }

func (s *stubImage) ApplyAtmosphere(i int, p *atmosphere.Params) error {
	s.applied[i] = p
	return nil
}

func (s *stubImage) ClearAtmosphere() {
	s.cleared++
	for i := range s.applied {
		s.applied[i] = nil
	}
}

type stubEngine struct {
	failProducts map[string]error

	radianceCalls    int
	reflectanceCalls int
	cloudMaskCalls   int
	indicesCalls     int

	lastCloudMask imagery.CloudMaskParams
	lastIndices   map[string]string

	// snapshot of the atmosphere state of the image at dispatch time
	correctedAt map[string]bool
}

func newStubEngine() *stubEngine {
	return &stubEngine{failProducts: map[string]error{}, correctedAt: map[string]bool{}}
}

func (e *stubEngine) Load([]string) (imagery.Image, error) { return newStubImage(1), nil }

func (e *stubEngine) snapshot(name string, img imagery.Image) {
	s := img.(*stubImage)
	corrected := false
	for _, p := range s.applied {
		if p != nil {
			corrected = true
		}
	}
	e.correctedAt[name] = corrected
}

func (e *stubEngine) Radiance(img imagery.Image, out string) (string, error) {
	e.radianceCalls++
	e.snapshot("rad", img)
	if err := e.failProducts["rad"]; err != nil {
		return "", err
	}
	return out, nil
}

func (e *stubEngine) Reflectance(img imagery.Image, out string) (string, error) {
	e.reflectanceCalls++
	e.snapshot("ref", img)
	if err := e.failProducts["ref"]; err != nil {
		return "", err
	}
	return out, nil
}

func (e *stubEngine) CloudMask(img imagery.Image, out string, p imagery.CloudMaskParams) (string, error) {
	e.cloudMaskCalls++
	e.snapshot("acca", img)
	e.lastCloudMask = p
	if err := e.failProducts["acca"]; err != nil {
		return "", err
	}
	return out, nil
}

func (e *stubEngine) Indices(img imagery.Image, outputs map[string]string) (map[string]string, error) {
	e.indicesCalls++
	e.snapshot("indices", img)
	e.lastIndices = outputs
	if err := e.failProducts["indices"]; err != nil {
		return nil, err
	}
	return outputs, nil
}

type countingModel struct {
	calls int
	err   error
}

func (m *countingModel) Correct(int, *calibration.SceneMetadata) (atmosphere.Params, error) {
	m.calls++
	return atmosphere.Params{Transmittance: 0.9}, m.err
}

func testMeta(t *testing.T) *calibration.SceneMetadata {
	t.Helper()
	lt5, err := sensors.Lookup("LT5")
	require.NoError(t, err)
	return &calibration.SceneMetadata{
		Sensor: lt5,
		Geometry: calibration.Geometry{
			SolarZenith:  46.2,
			SolarAzimuth: 140.5,
			Azimuth:      180.0,
		},
		Time: calibration.SceneTime{JulianDay: 80},
	}
}

func TestRunProducesAllRequestedProducts(t *testing.T) {
	eng := newStubEngine()
	model := &countingModel{}
	p := New(eng, model, zap.NewNop())
	img := newStubImage(7)

	res, err := p.Run(img, products.Request{
		"rad":  {"out/rad.tif"},
		"ref":  {"out/ref.tif"},
		"ndvi": {"out/ndvi.tif"},
		"sti":  {"out/sti.tif"},
	}, testMeta(t))
	require.NoError(t, err)

	assert.True(t, res.Complete())
	assert.Equal(t, map[string]string{
		"rad":  "out/rad.tif",
		"ref":  "out/ref.tif",
		"ndvi": "out/ndvi.tif",
		"sti":  "out/sti.tif",
	}, res.Products)
	assert.Equal(t, 1, eng.indicesCalls)
}

func TestRunIsolatesProductFailure(t *testing.T) {
	eng := newStubEngine()
	boom := errors.New("band algebra exploded")
	eng.failProducts["ref"] = boom

	p := New(eng, &countingModel{}, zap.NewNop())
	res, err := p.Run(newStubImage(7), products.Request{
		"rad":  {"out/rad.tif"},
		"ref":  {"out/ref.tif"},
		"ndvi": {"out/ndvi.tif"},
	}, testMeta(t))
	require.NoError(t, err)

	assert.False(t, res.Complete())
	assert.Len(t, res.Failures, 1)
	assert.ErrorIs(t, res.Failures["ref"], boom)
	assert.Equal(t, "out/rad.tif", res.Products["rad"])
	assert.Equal(t, "out/ndvi.tif", res.Products["ndvi"])
}

func TestAtmosphereSkippedForTOAOnlyRequests(t *testing.T) {
	eng := newStubEngine()
	model := &countingModel{}
	p := New(eng, model, zap.NewNop())

	res, err := p.Run(newStubImage(7), products.Request{
		"acca": {"out/acca.tif"},
		"rad":  {"out/rad.tif", "toa"},
	}, testMeta(t))
	require.NoError(t, err)

	assert.True(t, res.Complete())
	assert.Zero(t, model.calls)
	assert.False(t, eng.correctedAt["rad"])
	assert.False(t, eng.correctedAt["acca"])
}

func TestAtmosphereComputedOncePerBandNotPerProduct(t *testing.T) {
	eng := newStubEngine()
	model := &countingModel{}
	p := New(eng, model, zap.NewNop())
	img := newStubImage(7)

	res, err := p.Run(img, products.Request{
		"rad": {"out/rad.tif", "toa"},
		"ref": {"out/ref.tif"},
	}, testMeta(t))
	require.NoError(t, err)

	assert.True(t, res.Complete())
	assert.Equal(t, img.NumBands(), model.calls)
	assert.True(t, eng.correctedAt["ref"])
	assert.False(t, eng.correctedAt["rad"])
}

func TestAtmosphereModelFailureIsFatal(t *testing.T) {
	model := &countingModel{err: errors.New("radiative transfer failed")}
	p := New(newStubEngine(), model, zap.NewNop())

	_, err := p.Run(newStubImage(7), products.Request{"ref": {"out/ref.tif"}}, testMeta(t))
	assert.ErrorContains(t, err, "radiative transfer failed")
}

func TestIndicesBatchedAndUppercased(t *testing.T) {
	eng := newStubEngine()
	p := New(eng, &countingModel{}, zap.NewNop())

	res, err := p.Run(newStubImage(7), products.Request{
		"ndvi": {"out/ndvi.tif"},
		"lswi": {"out/lswi.tif"},
		"crc":  {"out/crc.tif"},
	}, testMeta(t))
	require.NoError(t, err)

	assert.Equal(t, 1, eng.indicesCalls)
	assert.Equal(t, map[string]string{
		"NDVI": "out/ndvi.tif",
		"LSWI": "out/lswi.tif",
		"CRC":  "out/crc.tif",
	}, eng.lastIndices)
	assert.True(t, eng.correctedAt["indices"])
	assert.True(t, res.Complete())
}

func TestIndicesFailureRecordedPerProduct(t *testing.T) {
	eng := newStubEngine()
	boom := errors.New("index pass failed")
	eng.failProducts["indices"] = boom

	p := New(eng, &countingModel{}, zap.NewNop())
	res, err := p.Run(newStubImage(7), products.Request{
		"ndvi": {"out/ndvi.tif"},
		"sti":  {"out/sti.tif"},
		"rad":  {"out/rad.tif"},
	}, testMeta(t))
	require.NoError(t, err)

	assert.Equal(t, "out/rad.tif", res.Products["rad"])
	assert.ErrorIs(t, res.Failures["ndvi"], boom)
	assert.ErrorIs(t, res.Failures["sti"], boom)
}

func TestCloudMaskGeometryAndMorphologyDefaults(t *testing.T) {
	eng := newStubEngine()
	p := New(eng, &countingModel{}, zap.NewNop())
	meta := testMeta(t)

	res, err := p.Run(newStubImage(7), products.Request{"acca": {"out/acca.tif"}}, meta)
	require.NoError(t, err)
	require.True(t, res.Complete())

	mp := eng.lastCloudMask
	assert.Equal(t, meta.Geometry.SolarAzimuth, mp.SolarAzimuth)
	assert.InDelta(t, 90.0-meta.Geometry.SolarZenith, mp.SolarElevation, 1e-9)
	assert.Equal(t, 5, mp.Erosion)
	assert.Equal(t, 10, mp.Dilation)
	assert.Equal(t, 4000, mp.CloudHeight)
}

func TestCloudMaskMorphologyOverrides(t *testing.T) {
	eng := newStubEngine()
	p := New(eng, &countingModel{}, zap.NewNop())

	res, err := p.Run(newStubImage(7),
		products.Request{"acca": {"out/acca.tif", "3", "7", "2500"}}, testMeta(t))
	require.NoError(t, err)
	require.True(t, res.Complete())

	mp := eng.lastCloudMask
	assert.Equal(t, 3, mp.Erosion)
	assert.Equal(t, 7, mp.Dilation)
	assert.Equal(t, 2500, mp.CloudHeight)
}

func TestCloudMaskBadOverrideFailsOnlyThatProduct(t *testing.T) {
	eng := newStubEngine()
	p := New(eng, &countingModel{}, zap.NewNop())

	res, err := p.Run(newStubImage(7), products.Request{
		"acca": {"out/acca.tif", "not-a-number"},
		"rad":  {"out/rad.tif"},
	}, testMeta(t))
	require.NoError(t, err)

	assert.Contains(t, res.Failures, "acca")
	assert.Equal(t, "out/rad.tif", res.Products["rad"])
	assert.Zero(t, eng.cloudMaskCalls)
}

func TestUnknownProductAbortsRun(t *testing.T) {
	p := New(newStubEngine(), &countingModel{}, zap.NewNop())
	_, err := p.Run(newStubImage(7), products.Request{"rgb": {"out/rgb.tif"}}, testMeta(t))
	assert.ErrorIs(t, err, products.ErrUnknownProduct)
}
