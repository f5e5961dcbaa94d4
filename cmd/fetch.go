package main

import (
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terrawatch/landsat-pipeline-poc/internal/earthexplorer"
	"github.com/terrawatch/landsat-pipeline-poc/internal/properties"
)

func newFetchCmd() *cobra.Command {
	var destDir string
	cmd := &cobra.Command{
		Use:   "fetch [scene-id...]",
		Short: "Download raw scene archives from the configured archive service",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if destDir == "" {
				destDir = filepath.Join(properties.RootPath(), "archive")
			}
			client, err := earthexplorer.NewClient(cmd.Context())
			if err != nil {
				return err
			}

			bar := progressbar.Default(int64(len(args)), "downloading scenes")
			for _, sceneID := range args {
				path, err := client.DownloadScene(cmd.Context(), sceneID, destDir)
				if err != nil {
					return err
				}
				logger.Info("scene downloaded", zap.String("scene", sceneID), zap.String("path", path))
				bar.Add(1)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&destDir, "dest", "d", "", "destination directory (default <ROOT_PATH>/archive)")
	return cmd
}
