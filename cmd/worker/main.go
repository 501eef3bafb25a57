package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "geocoder-worker",
		Short:        "Geocode địa chỉ Hàn Quốc hàng loạt từ file",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newGeocodeCmd(), newNormalizeCmd(), newReindexCmd())
	return root
}
