package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/terrawatch/landsat-pipeline-poc/internal/scene"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [archive...]",
		Short: "Print the derived calibration metadata of raw scene archives",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, archive := range args {
				if err := inspectScene(archive); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func inspectScene(archive string) error {
	work, err := os.MkdirTemp("", "landsat-inspect-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(work)

	tile, err := scene.NewTile(archive, work, nil, nil, logger)
	if err != nil {
		return err
	}
	defer tile.Cleanup()

	meta, err := tile.Meta()
	if err != nil {
		return err
	}

	color.Cyan("%s  (%s, tile %s)", tile.Asset.SceneID, tile.Sensor.Description, tile.Asset.TileID)
	fmt.Printf("  acquired:     %s (day %d, %.4fh)\n",
		meta.Time.DateTime.Format("2006-01-02 15:04:05"), meta.Time.JulianDay, meta.Time.DecimalTime)
	fmt.Printf("  scene center: %.4f, %.4f\n", meta.Geometry.Lat, meta.Geometry.Lon)
	fmt.Printf("  sun:          azimuth %.2f, zenith %.2f\n", meta.Geometry.SolarAzimuth, meta.Geometry.SolarZenith)
	fmt.Printf("  cloud cover:  %.1f%%\n", meta.CloudCover)
	fmt.Println("  bands:")
	for i, b := range meta.Bands {
		fmt.Printf("    %-9s %-7s gain=%.6f offset=%.3f dn=[%d,%d] esun=%.2f  %s\n",
			b.ID, tile.Sensor.Colors[i], b.Gain, b.Offset, b.DNMin, b.DNMax,
			meta.AdjustedEsun(i), b.Filename)
	}
	return nil
}
