package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/paulmach/orb/geojson"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terrawatch/landsat-pipeline-poc/internal/atmosphere"
	"github.com/terrawatch/landsat-pipeline-poc/internal/imagery"
	"github.com/terrawatch/landsat-pipeline-poc/internal/notification"
	"github.com/terrawatch/landsat-pipeline-poc/internal/products"
	"github.com/terrawatch/landsat-pipeline-poc/internal/properties"
	"github.com/terrawatch/landsat-pipeline-poc/internal/report"
	"github.com/terrawatch/landsat-pipeline-poc/internal/scene"
)

type processOptions struct {
	productSpecs []string
	outDir       string
	workDir      string
	maxClouds    float64
	workers      int
	quicklook    bool
	writeReports bool
}

func newProcessCmd() *cobra.Command {
	opts := processOptions{}
	cmd := &cobra.Command{
		Use:   "process [archive...]",
		Short: "Generate calibrated products from raw scene archives",
		Long: `Process one or more raw Landsat tar.gz archives into the requested
products. Product specs are comma-free tokens of the form id[:arg...],
e.g. "rad", "rad:toa" or "acca:3:7:2500". Tiles are independent and are
processed concurrently.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(opts, args)
		},
	}
	cmd.Flags().StringSliceVarP(&opts.productSpecs, "products", "p", []string{"rad", "ref"}, "products to generate")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "output directory (default <ROOT_PATH>/products)")
	cmd.Flags().StringVar(&opts.workDir, "work", "", "working directory for extracted files (default temp)")
	cmd.Flags().Float64Var(&opts.maxClouds, "max-clouds", 100, "skip scenes above this cloud cover percentage")
	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 2, "concurrent tiles")
	cmd.Flags().BoolVar(&opts.quicklook, "quicklook", false, "also render a browse PNG per scene")
	cmd.Flags().BoolVar(&opts.writeReports, "report", false, "write inventory CSV and footprint GeoJSON")
	return cmd
}

func runProcess(opts processOptions, archives []string) error {
	engine := imagery.NewGDALEngine()
	model := atmosphere.Rayleigh{}

	if opts.outDir == "" {
		opts.outDir = filepath.Join(properties.RootPath(), "products")
	}
	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return err
	}
	if opts.workDir == "" {
		opts.workDir = filepath.Join(os.TempDir(), "landsat-pipeline")
	}

	bar := progressbar.Default(int64(len(archives)), "processing scenes")
	wp := workerpool.New(opts.workers)

	var (
		mu         sync.Mutex
		records    []report.SceneRecord
		footprints []*geojson.Feature
		failures   []string
		skipped    int
	)
	for _, archive := range archives {
		archive := archive
		wp.Submit(func() {
			defer bar.Add(1)
			rec, fp, err := processScene(engine, model, archive, opts)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				failures = append(failures, fmt.Sprintf("%s: %v", filepath.Base(archive), err))
			case rec == nil:
				skipped++
			default:
				records = append(records, *rec)
				footprints = append(footprints, fp)
			}
		})
	}
	wp.StopWait()

	if opts.writeReports && len(records) > 0 {
		if err := report.WriteInventory(filepath.Join(opts.outDir, "inventory.csv"), records); err != nil {
			logger.Error("writing inventory failed", zap.Error(err))
		}
		if err := report.WriteFootprints(filepath.Join(opts.outDir, "footprints.geojson"), footprints); err != nil {
			logger.Error("writing footprints failed", zap.Error(err))
		}
	}

	summary := fmt.Sprintf("%d scenes processed, %d skipped, %d failed", len(records), skipped, len(failures))
	logger.Info("batch complete", zap.String("summary", summary))
	if len(failures) > 0 {
		notification.SendDiscordErrorNotification(summary + "\n" + strings.Join(failures, "\n"))
		return fmt.Errorf("%d of %d scenes failed", len(failures), len(archives))
	}
	notification.SendDiscordSuccessNotification(summary)
	return nil
}

// processScene runs one tile end to end. A nil record with nil error means
// the scene was filtered out by cloud cover.
func processScene(engine imagery.Engine, model atmosphere.Model, archive string, opts processOptions) (*report.SceneRecord, *geojson.Feature, error) {
	tile, err := scene.NewTile(archive, "", engine, model, logger)
	if err != nil {
		return nil, nil, err
	}
	// each tile gets a private working directory
	tile.WorkDir = filepath.Join(opts.workDir, tile.Asset.SceneID)

	ok, err := tile.Filter(opts.maxClouds)
	if err != nil {
		tile.Cleanup()
		return nil, nil, err
	}
	if !ok {
		tile.Cleanup()
		logger.Info("scene filtered by cloud cover", zap.String("scene", tile.Asset.SceneID))
		return nil, nil, nil
	}

	req, err := buildRequest(opts.productSpecs, tile.Asset.SceneID, opts.outDir)
	if err != nil {
		tile.Cleanup()
		return nil, nil, err
	}

	if opts.quicklook {
		if err := renderQuicklook(tile, opts.outDir); err != nil {
			logger.Warn("quicklook failed", zap.String("scene", tile.Asset.SceneID), zap.Error(err))
		}
	}

	res, err := tile.Process(req)
	if err != nil {
		return nil, nil, err
	}
	if !res.Complete() {
		for id, perr := range res.Failures {
			logger.Warn("product incomplete",
				zap.String("scene", tile.Asset.SceneID),
				zap.String("product", id),
				zap.Error(perr))
		}
	}

	meta, err := tile.Meta()
	if err != nil {
		return nil, nil, err
	}
	rec := report.NewSceneRecord(tile.Asset, meta, res.Products)
	return &rec, report.Footprint(tile.Asset, meta), nil
}

func buildRequest(specs []string, sceneID, outDir string) (products.Request, error) {
	req := products.Request{}
	for _, spec := range specs {
		parts := strings.Split(spec, ":")
		id := parts[0]
		if _, exists := req[id]; exists {
			return nil, fmt.Errorf("product %q requested twice", id)
		}
		out := filepath.Join(outDir, fmt.Sprintf("%s_%s.tif", sceneID, id))
		req[id] = append([]string{out}, parts[1:]...)
	}
	return req, nil
}

func renderQuicklook(tile *scene.Tile, outDir string) error {
	img, err := tile.ReadRaw()
	if err != nil {
		return err
	}
	defer img.Close()
	return imagery.Quicklook(img, filepath.Join(outDir, tile.Asset.SceneID+"_quicklook.png"))
}
