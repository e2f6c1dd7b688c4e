package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ozgrakkurt/glaciers/pkg/abiReader"
	"github.com/ozgrakkurt/glaciers/pkg/batchExecutor"
	"github.com/ozgrakkurt/glaciers/pkg/config"
	"github.com/ozgrakkurt/glaciers/pkg/logger"
	"github.com/ozgrakkurt/glaciers/pkg/matcher"
	"github.com/ozgrakkurt/glaciers/pkg/storage"
)

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode a folder of raw-log parquet files against the ABI index",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, _ := logger.NewLogger(&logger.LoggerConfig{Debug: debug})
		sugar := log.Sugar()
		cfg := config.Snapshot()

		logsFolder, _ := cmd.Flags().GetString("logs")
		if logsFolder == "" {
			logsFolder = cfg.Main.RawLogsFolder
		}
		indexPath, _ := cmd.Flags().GetString("abi-df")
		if indexPath == "" {
			indexPath = cfg.Main.AbiDfPath
		}
		outFolder, _ := cmd.Flags().GetString("out")
		if outFolder == "" {
			outFolder = logsFolder + "_decoded"
		}

		color.New(color.FgCyan, color.Bold).Fprintln(os.Stderr, "Decoding raw logs")

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigs
			sugar.Infow("Shutdown requested, finishing in-flight chunk...")
			cancel()
		}()

		store := storage.NewParquetStore(log)
		indexFrame, err := store.ReadFrame(indexPath)
		if err != nil {
			sugar.Errorw("Failed to read ABI index", "path", indexPath, "error", err)
			return err
		}
		index, err := abiReader.IndexFromFrame(indexFrame, cfg.AbiReader.UniqueKey)
		if err != nil {
			return err
		}
		sugar.Infow("Loaded ABI index", "path", indexPath, "signatures", index.Len())

		src, err := store.NewFolderSource(logsFolder)
		if err != nil {
			return err
		}
		sink, err := store.NewFolderSink(outFolder)
		if err != nil {
			return err
		}

		m := matcher.NewMatcher(index, cfg.Decoder, log)
		executor := batchExecutor.NewExecutor(cfg.Decoder, log)

		stats, err := executor.ExecutePartitions(ctx, src, m, sink)
		sugar.Infow("Decode run finished",
			"partitions", stats.Partitions,
			"rowsIn", stats.RowsIn,
			"rowsOut", stats.RowsOut,
			"dropped", stats.Dropped,
			"output", outFolder,
		)
		if err != nil {
			sugar.Errorw("Decode run ended with error", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	decodeCmd.Flags().String("logs", "", "folder of raw-log parquet files (defaults to main.raw_logs_folder)")
	decodeCmd.Flags().String("abi-df", "", "ABI index parquet path (defaults to main.abi_df_path)")
	decodeCmd.Flags().String("out", "", "output folder (defaults to <logs>_decoded)")
}
