package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "kicodexd",
	Short: "Serve CSV-backed component libraries to KiCad",
	Long:  `kicodexd is a local HTTP daemon that exposes CSV-backed component catalogs to KiCad's HTTP library protocol.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (not read by serve, which loads $XDG_CONFIG_HOME/kicodex/config.yaml or ~/.config/kicodex/config.yaml)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "debug logging (not read by any command)")
}
