package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ozgrakkurt/glaciers/pkg/config"
)

const envPrefix = "GLACIERS"

var rootCmd = &cobra.Command{
	Use:   "glaciers",
	Short: "Batch-decode EVM event logs against a database of ABI signatures",
}

var configFile string
var debug bool

func init() {
	cobra.OnInitialize(initConfigIfPresent)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "TOML config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, `"true" or "false"`)

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(abiCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(fetchCmd)
}

func initConfigIfPresent() {
	if configFile == "" {
		return
	}
	data, err := os.ReadFile(configFile)
	if err != nil {
		panic(err)
	}
	cfg, err := config.FromTomlBytes(data)
	if err != nil {
		panic(err)
	}
	if err := config.Load(cfg); err != nil {
		panic(err)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
