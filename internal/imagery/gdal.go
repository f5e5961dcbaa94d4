package imagery

import (
	"fmt"
	"math"
	"strings"

	"github.com/airbusgeo/godal"

	"github.com/terrawatch/landsat-pipeline-poc/internal/atmosphere"
)

// GDALEngine implements Engine on top of godal. Each band of a scene lives
// in its own single-band source file, as delivered in Landsat archives.
type GDALEngine struct{}

// NewGDALEngine registers the GDAL drivers and returns an engine.
func NewGDALEngine() *GDALEngine {
	godal.RegisterAll()
	return &GDALEngine{}
}

// GeoImage is a multi-band scene assembled from per-band datasets.
type GeoImage struct {
	datasets []*godal.Dataset
	setups   []BandSetup
	atmos    []*atmosphere.Params
	noData   float64
	units    string
}

func (e *GDALEngine) Load(paths []string) (Image, error) {
	img := &GeoImage{
		setups: make([]BandSetup, len(paths)),
		atmos:  make([]*atmosphere.Params, len(paths)),
	}
	for _, p := range paths {
		ds, err := godal.Open(p)
		if err != nil {
			img.Close()
			return nil, fmt.Errorf("opening band file %s: %w", p, err)
		}
		img.datasets = append(img.datasets, ds)
	}
	return img, nil
}

func (g *GeoImage) NumBands() int         { return len(g.datasets) }
func (g *GeoImage) SetNoData(v float64)   { g.noData = v }
func (g *GeoImage) SetUnits(units string) { g.units = units }

func (g *GeoImage) SetBand(i int, s BandSetup) error {
	if i < 0 || i >= len(g.setups) {
		return fmt.Errorf("band index %d out of range", i)
	}
	g.setups[i] = s
	return nil
}

func (g *GeoImage) ApplyAtmosphere(i int, p *atmosphere.Params) error {
	if i < 0 || i >= len(g.atmos) {
		return fmt.Errorf("band index %d out of range", i)
	}
	g.atmos[i] = p
	return nil
}

func (g *GeoImage) ClearAtmosphere() {
	for i := range g.atmos {
		g.atmos[i] = nil
	}
}

func (g *GeoImage) Close() error {
	var first error
	for _, ds := range g.datasets {
		if ds == nil {
			continue
		}
		if err := ds.Close(); err != nil && first == nil {
			first = err
		}
	}
	g.datasets = nil
	return first
}

func (g *GeoImage) size() (int, int) {
	s := g.datasets[0].Structure()
	return s.SizeX, s.SizeY
}

// readDN reads the raw digital numbers of band i.
func (g *GeoImage) readDN(i int) ([]float64, error) {
	band := g.datasets[i].Bands()[0]
	st := band.Structure()
	data := make([]float64, st.SizeX*st.SizeY)
	if err := band.Read(0, 0, data, st.SizeX, st.SizeY); err != nil {
		return nil, fmt.Errorf("reading band %d: %w", i+1, err)
	}
	return data, nil
}

// radiance reads band i as calibrated radiance, honoring any attached
// atmosphere parameters. NoData pixels stay NoData.
func (g *GeoImage) radiance(i int) ([]float64, error) {
	data, err := g.readDN(i)
	if err != nil {
		return nil, err
	}
	s := g.setups[i]
	p := g.atmos[i]
	for j, dn := range data {
		if dn == g.noData {
			continue
		}
		rad := s.Gain*dn + s.Offset
		if p != nil {
			rad = (rad - p.PathRadiance) / p.Transmittance
		}
		data[j] = rad
	}
	return data, nil
}

// reflectance reads band i as reflectance; thermal bands yield brightness
// temperature instead.
func (g *GeoImage) reflectance(i int) ([]float64, error) {
	data, err := g.radiance(i)
	if err != nil {
		return nil, err
	}
	s := g.setups[i]
	for j, rad := range data {
		if rad == g.noData {
			continue
		}
		if s.K1 > 0 {
			data[j] = s.K2 / math.Log(s.K1/rad+1.0)
		} else if s.Esun > 0 {
			data[j] = math.Pi * rad / s.Esun
		}
	}
	return data, nil
}

func (g *GeoImage) bandByColor(color string) (int, error) {
	for i, s := range g.setups {
		if s.Color == color {
			return i, nil
		}
	}
	return 0, fmt.Errorf("image has no %s band", color)
}

// write creates a float32 GeoTIFF carrying the scene's georeferencing.
func (g *GeoImage) write(path string, layers [][]float64) (*godal.Dataset, error) {
	w, h := g.size()
	out, err := godal.Create(godal.GTiff, path, len(layers), godal.Float32, w, h)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	if gt, err := g.datasets[0].GeoTransform(); err == nil {
		if err := out.SetGeoTransform(gt); err != nil {
			out.Close()
			return nil, err
		}
	}
	if proj := g.datasets[0].Projection(); proj != "" {
		if err := out.SetProjection(proj); err != nil {
			out.Close()
			return nil, err
		}
	}
	for i, layer := range layers {
		band := out.Bands()[i]
		if err := band.SetNoData(g.noData); err != nil {
			out.Close()
			return nil, err
		}
		if err := band.Write(0, 0, layer, w, h); err != nil {
			out.Close()
			return nil, fmt.Errorf("writing band %d of %s: %w", i+1, path, err)
		}
	}
	return out, nil
}

func (e *GDALEngine) Radiance(img Image, outPath string) (string, error) {
	g, err := geoImage(img)
	if err != nil {
		return "", err
	}
	layers := make([][]float64, g.NumBands())
	for i := range layers {
		if layers[i], err = g.radiance(i); err != nil {
			return "", err
		}
	}
	out, err := g.write(outPath, layers)
	if err != nil {
		return "", err
	}
	return outPath, out.Close()
}

func (e *GDALEngine) Reflectance(img Image, outPath string) (string, error) {
	g, err := geoImage(img)
	if err != nil {
		return "", err
	}
	layers := make([][]float64, g.NumBands())
	for i := range layers {
		if layers[i], err = g.reflectance(i); err != nil {
			return "", err
		}
	}
	out, err := g.write(outPath, layers)
	if err != nil {
		return "", err
	}
	return outPath, out.Close()
}

func (e *GDALEngine) CloudMask(img Image, outPath string, p CloudMaskParams) (string, error) {
	g, err := geoImage(img)
	if err != nil {
		return "", err
	}
	red, err := g.reflBand("RED")
	if err != nil {
		return "", err
	}
	green, err := g.reflBand("GREEN")
	if err != nil {
		return "", err
	}
	swir1, err := g.reflBand("SWIR1")
	if err != nil {
		return "", err
	}
	var thermal []float64
	if ti, err := g.bandByColor("LWIR"); err == nil {
		if thermal, err = g.reflectance(ti); err != nil {
			return "", err
		}
	}

	w, h := g.size()
	mask := make([]float64, len(red))
	for i := range mask {
		if red[i] == g.noData {
			continue
		}
		// brightness, snow and temperature filters of the automated
		// cloud cover assessment
		ndsi := normalizedDiff(green[i], swir1[i])
		cloudy := red[i] > 0.08 && ndsi < 0.7
		if cloudy && thermal != nil {
			cloudy = thermal[i] < 300.0
		}
		if cloudy {
			mask[i] = 1
		}
	}

	mask = erode(mask, w, h, p.Erosion)
	mask = dilate(mask, w, h, p.Dilation)
	mask = addShadows(mask, w, h, p, g.pixelSize())

	out, err := g.write(outPath, [][]float64{mask})
	if err != nil {
		return "", err
	}
	return outPath, out.Close()
}

// index formulas over reflectance bands, keyed by uppercased product id
var indexFormulas = map[string]struct {
	needs   []string
	compute func(b map[string]float64) float64
}{
	"NDVI": {[]string{"NIR", "RED"}, func(b map[string]float64) float64 {
		return normalizedDiff(b["NIR"], b["RED"])
	}},
	"EVI": {[]string{"NIR", "RED", "BLUE"}, func(b map[string]float64) float64 {
		den := b["NIR"] + 6*b["RED"] - 7.5*b["BLUE"] + 1
		if den == 0 {
			return 0
		}
		return 2.5 * (b["NIR"] - b["RED"]) / den
	}},
	"LSWI": {[]string{"NIR", "SWIR1"}, func(b map[string]float64) float64 {
		return normalizedDiff(b["NIR"], b["SWIR1"])
	}},
	"NDSI": {[]string{"GREEN", "SWIR1"}, func(b map[string]float64) float64 {
		return normalizedDiff(b["GREEN"], b["SWIR1"])
	}},
	"BI": {[]string{"BLUE", "NIR"}, func(b map[string]float64) float64 {
		return 0.5 * (b["BLUE"] + b["NIR"])
	}},
	"SATVI": {[]string{"SWIR1", "RED", "SWIR2"}, func(b map[string]float64) float64 {
		den := b["SWIR1"] + b["RED"] + 0.5
		if den == 0 {
			return 0
		}
		return 1.5*(b["SWIR1"]-b["RED"])/den - b["SWIR2"]/2.0
	}},
	"NDTI": {[]string{"SWIR1", "SWIR2"}, func(b map[string]float64) float64 {
		return normalizedDiff(b["SWIR1"], b["SWIR2"])
	}},
	"CRC": {[]string{"SWIR1", "GREEN"}, func(b map[string]float64) float64 {
		return normalizedDiff(b["SWIR1"], b["GREEN"])
	}},
	"STI": {[]string{"SWIR1", "SWIR2"}, func(b map[string]float64) float64 {
		if b["SWIR2"] == 0 {
			return 0
		}
		return b["SWIR1"] / b["SWIR2"]
	}},
	"ISTI": {[]string{"SWIR1", "SWIR2"}, func(b map[string]float64) float64 {
		if b["SWIR1"] == 0 {
			return 0
		}
		return b["SWIR2"] / b["SWIR1"]
	}},
}

func (e *GDALEngine) Indices(img Image, outputs map[string]string) (map[string]string, error) {
	g, err := geoImage(img)
	if err != nil {
		return nil, err
	}

	// read each needed color once, shared across all requested indices
	colors := map[string][]float64{}
	for id := range outputs {
		f, ok := indexFormulas[strings.ToUpper(id)]
		if !ok {
			return nil, fmt.Errorf("no formula for index %q", id)
		}
		for _, c := range f.needs {
			if _, done := colors[c]; done {
				continue
			}
			bi, err := g.bandByColor(c)
			if err != nil {
				return nil, err
			}
			if colors[c], err = g.reflectance(bi); err != nil {
				return nil, err
			}
		}
	}

	produced := map[string]string{}
	px := map[string]float64{}
	for id, path := range outputs {
		f := indexFormulas[strings.ToUpper(id)]
		first := colors[f.needs[0]]
		layer := make([]float64, len(first))
		for i := range layer {
			if first[i] == g.noData {
				layer[i] = g.noData
				continue
			}
			for _, c := range f.needs {
				px[c] = colors[c][i]
			}
			layer[i] = f.compute(px)
		}
		out, err := g.write(path, [][]float64{layer})
		if err != nil {
			return produced, err
		}
		if err := out.Close(); err != nil {
			return produced, err
		}
		produced[strings.ToUpper(id)] = path
	}
	return produced, nil
}

func (g *GeoImage) reflBand(color string) ([]float64, error) {
	i, err := g.bandByColor(color)
	if err != nil {
		return nil, err
	}
	return g.reflectance(i)
}

// pixelSize returns the ground size of one pixel from the geotransform,
// falling back to the 30 m Landsat default.
func (g *GeoImage) pixelSize() float64 {
	if gt, err := g.datasets[0].GeoTransform(); err == nil && gt[1] != 0 {
		return math.Abs(gt[1])
	}
	return 30.0
}

func geoImage(img Image) (*GeoImage, error) {
	g, ok := img.(*GeoImage)
	if !ok {
		return nil, fmt.Errorf("image %T was not loaded by this engine", img)
	}
	if len(g.datasets) == 0 {
		return nil, fmt.Errorf("image has no bands")
	}
	return g, nil
}

func normalizedDiff(a, b float64) float64 {
	if a+b == 0 {
		return 0
	}
	return (a - b) / (a + b)
}

func erode(mask []float64, w, h, radius int) []float64 {
	return morph(mask, w, h, radius, func(all bool, _ bool) float64 {
		if all {
			return 1
		}
		return 0
	})
}

func dilate(mask []float64, w, h, radius int) []float64 {
	return morph(mask, w, h, radius, func(_ bool, any bool) float64 {
		if any {
			return 1
		}
		return 0
	})
}

func morph(mask []float64, w, h, radius int, pick func(all, any bool) float64) []float64 {
	if radius <= 0 {
		return mask
	}
	out := make([]float64, len(mask))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			all, any := true, false
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					if mask[ny*w+nx] > 0 {
						any = true
					} else {
						all = false
					}
				}
			}
			out[y*w+x] = pick(all, any)
		}
	}
	return out
}

// addShadows projects each cloud pixel along the solar azimuth by the
// assumed cloud height and marks the landing pixel as shadow.
func addShadows(mask []float64, w, h int, p CloudMaskParams, pixelSize float64) []float64 {
	elev := p.SolarElevation * math.Pi / 180.0
	if elev <= 0 || p.CloudHeight <= 0 {
		return mask
	}
	dist := float64(p.CloudHeight) / math.Tan(elev) / pixelSize
	az := p.SolarAzimuth * math.Pi / 180.0
	dx := int(math.Round(-dist * math.Sin(az)))
	dy := int(math.Round(dist * math.Cos(az)))

	out := append([]float64(nil), mask...)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask[y*w+x] == 0 {
				continue
			}
			sx, sy := x+dx, y+dy
			if sx < 0 || sy < 0 || sx >= w || sy >= h {
				continue
			}
			if out[sy*w+sx] == 0 {
				out[sy*w+sx] = 2
			}
		}
	}
	return out
}
