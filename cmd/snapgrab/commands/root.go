package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "snapgrab",
		Short: "snapgrab - on-demand screen region capture",
		Long: `snapgrab captures arbitrary regions of an X11 display on demand and
writes them out as PNG, JPEG, or BMP images.

Frames come from a MIT-SHM shared memory path when the X server supports
it, with a transparent fall back to a server-side pixmap blit when it
does not (remote displays, missing extension).

Features:
  - One-shot region capture to file
  - Display enumeration
  - HTTP and WebSocket capture API
  - Persistent configuration`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/snapgrab/config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "server port (default is 8080)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path from the command line
func GetConfigFile() string {
	return cfgFile
}
