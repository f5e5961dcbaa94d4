// Package pipeline sequences product generation for one loaded scene. The
// expensive atmospheric correction is computed at most once per run and
// shared by every product that needs it; per-product failures are isolated
// so one broken product never aborts the batch.
package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/terrawatch/landsat-pipeline-poc/internal/atmosphere"
	"github.com/terrawatch/landsat-pipeline-poc/internal/calibration"
	"github.com/terrawatch/landsat-pipeline-poc/internal/imagery"
	"github.com/terrawatch/landsat-pipeline-poc/internal/products"
)

// default cloud mask morphology, overridable per request
const (
	defaultErosion     = 5
	defaultDilation    = 10
	defaultCloudHeight = 4000
)

// Pipeline holds the external collaborators for a processing run. It keeps
// no state between runs.
type Pipeline struct {
	engine imagery.Engine
	atmos  atmosphere.Model
	log    *zap.Logger
}

func New(engine imagery.Engine, model atmosphere.Model, log *zap.Logger) *Pipeline {
	return &Pipeline{engine: engine, atmos: model, log: log}
}

// Result reports a run. A caller detects partial completion by comparing
// requested ids against Products; Failures carries the cause per product.
type Result struct {
	Products map[string]string
	Failures map[string]error
}

// Complete reports whether every requested product was produced.
func (r Result) Complete() bool { return len(r.Failures) == 0 }

// Run computes the requested products from a loaded, calibrated image.
// Only configuration errors (unknown products, atmosphere model failure)
// abort the run; individual product computations that fail are logged and
// recorded in the result.
func (p *Pipeline) Run(img imagery.Image, req products.Request, meta *calibration.SceneMetadata) (Result, error) {
	res := Result{
		Products: map[string]string{},
		Failures: map[string]error{},
	}

	grouped, err := products.Partition(req)
	if err != nil {
		return res, err
	}

	// One atmosphere parameter set per band, computed once and cached for
	// this run. Skipped entirely when every requested product works on
	// top-of-atmosphere data.
	var params []atmosphere.Params
	if need, err := needsAtmosphere(req); err != nil {
		return res, err
	} else if need {
		params = make([]atmosphere.Params, img.NumBands())
		for i := range params {
			if params[i], err = p.atmos.Correct(i, meta); err != nil {
				return res, fmt.Errorf("atmosphere model, band %d: %w", i+1, err)
			}
		}
	}

	for id, args := range grouped[products.Standard] {
		path, err := p.runStandard(img, id, args, meta, params)
		if err != nil {
			res.Failures[id] = err
			p.log.Error("product computation failed",
				zap.String("product", id),
				zap.Error(err),
				zap.Stack("stack"))
			continue
		}
		res.Products[id] = path
		p.log.Info("product complete", zap.String("product", id), zap.String("path", path))
	}

	// Index and Tillage products are defined on corrected reflectance and
	// computed together in one batched call.
	indices := products.Request{}
	for id, args := range grouped[products.Index] {
		indices[id] = args
	}
	for id, args := range grouped[products.Tillage] {
		indices[id] = args
	}
	if len(indices) > 0 {
		p.runIndices(img, indices, params, &res)
	}

	return res, nil
}

func (p *Pipeline) runStandard(img imagery.Image, id string, args []string, meta *calibration.SceneMetadata, params []atmosphere.Params) (string, error) {
	d, err := products.Get(id)
	if err != nil {
		return "", err
	}
	if len(args) == 0 || args[0] == "" {
		return "", fmt.Errorf("product %q has no output path", id)
	}
	out := args[0]

	if d.TOA || hasOption(args, "toa") {
		img.ClearAtmosphere()
	} else {
		if params == nil {
			return "", fmt.Errorf("product %q needs atmosphere parameters but none were computed", id)
		}
		for i := 0; i < img.NumBands(); i++ {
			if err := img.ApplyAtmosphere(i, &params[i]); err != nil {
				return "", err
			}
		}
	}

	switch id {
	case "rad":
		return p.engine.Radiance(img, out)
	case "ref":
		return p.engine.Reflectance(img, out)
	case "acca":
		mp := imagery.CloudMaskParams{
			SolarAzimuth:   meta.Geometry.SolarAzimuth,
			SolarElevation: 90.0 - meta.Geometry.SolarZenith,
			Erosion:        defaultErosion,
			Dilation:       defaultDilation,
			CloudHeight:    defaultCloudHeight,
		}
		if err := applyMorphologyOverrides(&mp, args[1:]); err != nil {
			return "", err
		}
		return p.engine.CloudMask(img, out, mp)
	default:
		return "", fmt.Errorf("no computation registered for standard product %q", id)
	}
}

func (p *Pipeline) runIndices(img imagery.Image, indices products.Request, params []atmosphere.Params, res *Result) {
	fail := func(err error) {
		for id := range indices {
			res.Failures[id] = err
		}
		p.log.Error("index computation failed",
			zap.Strings("products", keys(indices)),
			zap.Error(err),
			zap.Stack("stack"))
	}

	if params == nil {
		fail(fmt.Errorf("indices need atmosphere parameters but none were computed"))
		return
	}
	for i := 0; i < img.NumBands(); i++ {
		if err := img.ApplyAtmosphere(i, &params[i]); err != nil {
			fail(err)
			return
		}
	}

	outputs := map[string]string{}
	for id, args := range indices {
		if len(args) == 0 || args[0] == "" {
			res.Failures[id] = fmt.Errorf("product %q has no output path", id)
			delete(indices, id)
			continue
		}
		outputs[strings.ToUpper(id)] = args[0]
	}
	if len(outputs) == 0 {
		return
	}

	produced, err := p.engine.Indices(img, outputs)
	if err != nil {
		fail(err)
		return
	}
	for id := range indices {
		path, ok := produced[strings.ToUpper(id)]
		if !ok {
			res.Failures[id] = fmt.Errorf("index %q was not produced", id)
			continue
		}
		res.Products[id] = path
		p.log.Info("product complete", zap.String("product", id), zap.String("path", path))
	}
}

// needsAtmosphere reports whether any requested product both lacks the
// top-of-atmosphere flag (catalogue or per-request override) and does not
// opt out of correction.
func needsAtmosphere(req products.Request) (bool, error) {
	for id, args := range req {
		d, err := products.Get(id)
		if err != nil {
			return false, err
		}
		toa := d.TOA || hasOption(args, "toa")
		if !toa && !d.SkipAtmosphere {
			return true, nil
		}
	}
	return false, nil
}

// applyMorphologyOverrides parses trailing erosion, dilation and cloud
// height arguments, in that order, skipping option tokens.
func applyMorphologyOverrides(mp *imagery.CloudMaskParams, args []string) error {
	targets := []*int{&mp.Erosion, &mp.Dilation, &mp.CloudHeight}
	n := 0
	for _, a := range args {
		if a == "toa" {
			continue
		}
		if n >= len(targets) {
			return fmt.Errorf("too many cloud mask arguments: %v", args)
		}
		v, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("cloud mask argument %q: %w", a, err)
		}
		*targets[n] = v
		n++
	}
	return nil
}

func hasOption(args []string, opt string) bool {
	for _, a := range args {
		if a == opt {
			return true
		}
	}
	return false
}

func keys(req products.Request) []string {
	out := make([]string, 0, len(req))
	for id := range req {
		out = append(out, id)
	}
	return out
}
