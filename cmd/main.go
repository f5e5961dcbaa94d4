package main

import (
	"fmt"
	"os"

	"github.com/common-nighthawk/go-figure"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var logger *zap.Logger

func printBanner() {
	figure1 := figure.NewFigure("Terrawatch", "isometric1", true)
	color.Cyan(figure1.String())
	fmt.Println()
}

func main() {
	godotenv.Load()
	printBanner()

	var err error
	logger, err = zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	root := &cobra.Command{
		Use:           "landsat-pipeline",
		Short:         "Calibrate Landsat scenes and generate radiometric products",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newProcessCmd(), newInspectCmd(), newFetchCmd())

	if err := root.Execute(); err != nil {
		logger.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}
