package scene

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/terrawatch/landsat-pipeline-poc/internal/atmosphere"
	"github.com/terrawatch/landsat-pipeline-poc/internal/calibration"
	"github.com/terrawatch/landsat-pipeline-poc/internal/imagery"
	"github.com/terrawatch/landsat-pipeline-poc/internal/mtl"
	"github.com/terrawatch/landsat-pipeline-poc/internal/pipeline"
	"github.com/terrawatch/landsat-pipeline-poc/internal/products"
	"github.com/terrawatch/landsat-pipeline-poc/internal/sensors"
)

// Tile is one acquisition staged for processing. The working directory and
// extracted files are private to the tile, so independent tiles can be
// processed concurrently by an outer scheduler.
type Tile struct {
	Asset   Asset
	Sensor  sensors.Descriptor
	WorkDir string

	engine imagery.Engine
	atmos  atmosphere.Model
	log    *zap.Logger

	meta      *calibration.SceneMetadata
	extracted []string
}

// NewTile stages an archive for processing. Unknown sensor codes abort
// scene construction.
func NewTile(assetPath, workDir string, engine imagery.Engine, model atmosphere.Model, log *zap.Logger) (*Tile, error) {
	asset, err := NewAsset(assetPath)
	if err != nil {
		return nil, err
	}
	sensor, err := sensors.Lookup(asset.Sensor)
	if err != nil {
		return nil, err
	}
	return &Tile{
		Asset:   asset,
		Sensor:  sensor,
		WorkDir: workDir,
		engine:  engine,
		atmos:   model,
		log:     log.With(zap.String("scene", asset.SceneID)),
	}, nil
}

// ScratchDir is the tile's transient working subdirectory. It is removed
// by cleanup along with the extracted files.
func (t *Tile) ScratchDir() string {
	return filepath.Join(t.WorkDir, "scratch")
}

// Meta derives the scene's calibration metadata, at most once per tile.
func (t *Tile) Meta() (*calibration.SceneMetadata, error) {
	if t.meta != nil {
		return t.meta, nil
	}

	files, err := t.Asset.DataFiles()
	if err != nil {
		return nil, &ParseError{Path: t.Asset.Path, Err: err}
	}
	var mtlName string
	for _, f := range files {
		if strings.Contains(f, "MTL.txt") {
			mtlName = f
			break
		}
	}
	if mtlName == "" {
		return nil, &ParseError{Path: t.Asset.Path, Err: fmt.Errorf("archive has no MTL metadata file")}
	}

	paths, err := t.Asset.Extract([]string{mtlName}, t.WorkDir)
	t.extracted = append(t.extracted, paths...)
	if err != nil {
		return nil, &ParseError{Path: t.Asset.Path, Err: err}
	}
	raw, err := os.ReadFile(paths[0])
	if err != nil {
		return nil, &ParseError{Path: paths[0], Err: err}
	}

	doc := mtl.Normalize(string(raw), t.Sensor)
	meta, err := calibration.Derive(doc, t.Sensor)
	if err != nil {
		return nil, err
	}
	t.meta = meta
	return meta, nil
}

// Filter reports whether the tile passes a cloud-cover threshold. A
// threshold of 100 or more accepts everything without touching metadata.
func (t *Tile) Filter(maxClouds float64) (bool, error) {
	if maxClouds < 100 {
		meta, err := t.Meta()
		if err != nil {
			return false, err
		}
		if meta.CloudCover > maxClouds {
			return false, nil
		}
	}
	return true, nil
}

// ReadRaw extracts the band files and loads them as one calibrated image,
// bands in sensor order.
func (t *Tile) ReadRaw() (imagery.Image, error) {
	meta, err := t.Meta()
	if err != nil {
		return nil, err
	}
	paths, err := t.Asset.Extract(meta.Filenames(), t.WorkDir)
	t.extracted = append(t.extracted, paths...)
	if err != nil {
		return nil, err
	}

	img, err := t.engine.Load(paths)
	if err != nil {
		return nil, err
	}
	img.SetNoData(0)
	img.SetUnits("radiance")
	for i, b := range meta.Bands {
		setup := imagery.BandSetup{
			Color:  t.Sensor.Colors[i],
			Gain:   b.Gain,
			Offset: b.Offset,
			DNMin:  b.DNMin,
			DNMax:  b.DNMax,
			Esun:   meta.AdjustedEsun(i),
			K1:     t.Sensor.K1[i],
			K2:     t.Sensor.K2[i],
		}
		if err := img.SetBand(i, setup); err != nil {
			img.Close()
			return nil, err
		}
	}
	return img, nil
}

// Process generates the requested products for this tile. Extracted files
// and the scratch directory are removed on the way out regardless of
// product outcomes.
func (t *Tile) Process(req products.Request) (pipeline.Result, error) {
	defer t.Cleanup()

	meta, err := t.Meta()
	if err != nil {
		return pipeline.Result{}, err
	}
	img, err := t.ReadRaw()
	if err != nil {
		return pipeline.Result{}, err
	}
	defer img.Close()

	return pipeline.New(t.engine, t.atmos, t.log).Run(img, req, meta)
}

// Cleanup deletes exactly the paths extraction produced, plus the scratch
// directory. Failures are logged, never raised.
func (t *Tile) Cleanup() {
	for _, p := range t.extracted {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			t.log.Warn("cleanup failed", zap.String("path", p), zap.Error(err))
		}
	}
	t.extracted = nil
	if err := os.RemoveAll(t.ScratchDir()); err != nil {
		t.log.Warn("cleanup failed", zap.String("path", t.ScratchDir()), zap.Error(err))
	}
}
