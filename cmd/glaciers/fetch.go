package main

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ozgrakkurt/glaciers/pkg/abiFetcher"
	"github.com/ozgrakkurt/glaciers/pkg/config"
	"github.com/ozgrakkurt/glaciers/pkg/logger"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <address>",
	Short: "Fetch a verified contract ABI from Sourcify into the ABI folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, _ := logger.NewLogger(&logger.LoggerConfig{Debug: debug})
		sugar := log.Sugar()
		cfg := config.Snapshot()

		if !common.IsHexAddress(args[0]) {
			return errors.Errorf("%q is not a hex contract address", args[0])
		}
		address := common.HexToAddress(args[0])

		chainID, _ := cmd.Flags().GetUint64("chain-id")
		folder, _ := cmd.Flags().GetString("abi-folder")
		if folder == "" {
			folder = cfg.Main.AbiFolderPath
		}

		fetcher := abiFetcher.NewAbiFetcher(&abiFetcher.FetcherConfig{ChainID: chainID}, log)
		path, err := fetcher.FetchToFolder(cmd.Context(), address, folder)
		if err != nil {
			sugar.Errorw("ABI fetch failed", "address", address.Hex(), "error", err)
			return err
		}
		sugar.Infow("Fetched ABI", "address", address.Hex(), "path", path)
		return nil
	},
}

func init() {
	fetchCmd.Flags().Uint64("chain-id", 1, "chain id for the registry lookup")
	fetchCmd.Flags().String("abi-folder", "", "destination folder (defaults to main.abi_folder_path)")
}
