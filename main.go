package main

import (
	"fmt"
	"os"

	"github.com/gr-butler/weathernode/env"
	logger "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const version = "GRB-WeatherNode-1.0.0"

var args env.Args

var rootCmd = &cobra.Command{
	Use:   "weathernode",
	Short: "Battery and solar powered weather station node",
	Long: "weathernode wakes on a fixed period, powers the sensor groups that are due, " +
		"and sends a packed 27 byte frame over the uplink.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		setupLogging(args.Verbose, os.Getenv("LOG_FORMAT"))
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&args.ConfigPath, "config", "", "Path to the site configuration YAML")
	rootCmd.PersistentFlags().BoolVarP(&args.Verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().BoolVar(&args.Test, "test", false, "Test mode, no data leaves the station")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(decodeCmd)
}

func setupLogging(verbose bool, format string) {
	if format == "json" {
		logger.SetFormatter(&logger.JSONFormatter{})
	} else {
		logger.SetFormatter(&logger.TextFormatter{FullTimestamp: true})
	}
	if verbose {
		logger.SetLevel(logger.DebugLevel)
	} else {
		logger.SetLevel(logger.InfoLevel)
	}
}

func main() {
	Execute()
}
