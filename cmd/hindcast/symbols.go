package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parkerwe/hindcast/internal/logger"
	"github.com/parkerwe/hindcast/internal/marketdata"
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "List symbols available in the configured data source",
	RunE:  runSymbols,
}

func init() {
	rootCmd.AddCommand(symbolsCmd)
}

func runSymbols(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	source := marketdata.NewCSV(cfg.Data.Dir)
	symbols := source.AvailableSymbols()
	if len(symbols) == 0 {
		fmt.Printf("no symbols found in %s\n", cfg.Data.Dir)
		return nil
	}

	for _, sym := range symbols {
		fmt.Println(sym)
	}
	return nil
}
