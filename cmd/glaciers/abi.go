package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ozgrakkurt/glaciers/pkg/abiReader"
	"github.com/ozgrakkurt/glaciers/pkg/config"
	"github.com/ozgrakkurt/glaciers/pkg/logger"
	"github.com/ozgrakkurt/glaciers/pkg/storage"
)

var abiCmd = &cobra.Command{
	Use:   "abi",
	Short: "Build or update the ABI signature index from a folder of ABI JSON files",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, _ := logger.NewLogger(&logger.LoggerConfig{Debug: debug})
		sugar := log.Sugar()
		cfg := config.Snapshot()

		folder, _ := cmd.Flags().GetString("abi-folder")
		if folder == "" {
			folder = cfg.Main.AbiFolderPath
		}
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = cfg.Main.AbiDfPath
		}

		color.New(color.FgCyan, color.Bold).Fprintln(os.Stderr, "Building ABI signature index")

		reader := abiReader.NewAbiReader(cfg.AbiReader, log)
		index, report, err := reader.ReadFolder(folder)
		if err != nil {
			sugar.Errorw("Failed to read ABI folder", "path", folder, "error", err)
			return err
		}
		for _, w := range report.Warnings {
			sugar.Warnw(w)
		}

		store := storage.NewParquetStore(log)
		if _, statErr := os.Stat(out); statErr == nil {
			existingFrame, err := store.ReadFrame(out)
			if err != nil {
				return err
			}
			existing, err := abiReader.IndexFromFrame(existingFrame, cfg.AbiReader.UniqueKey)
			if err != nil {
				return err
			}
			added := existing.Merge(index)
			sugar.Infow("Merged into existing index", "path", out, "added", added, "total", existing.Len())
			index = existing
		}

		upper := cfg.AbiReader.OutputHexStringEncoding == config.HexUppercase
		indexFrame, err := index.ToFrame(upper)
		if err != nil {
			return err
		}
		if err := store.WriteFrame(indexFrame, out); err != nil {
			sugar.Errorw("Failed to write ABI index", "path", out, "error", err)
			return err
		}
		sugar.Infow("Wrote ABI index", "path", out, "signatures", index.Len())
		return nil
	},
}

func init() {
	abiCmd.Flags().String("abi-folder", "", "folder of ABI JSON files (defaults to main.abi_folder_path)")
	abiCmd.Flags().String("out", "", "output parquet path (defaults to main.abi_df_path)")
}
