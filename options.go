package main

import (
	"flag"

	"github.com/Gthulhu/schedcore/pkg/logger"
)

// CommandLineOptions contains all command line options
type CommandLineOptions struct {
	ConfigName string
	ConfigPath string
}

// ParseCommandLineOptions parses command line arguments
func ParseCommandLineOptions() CommandLineOptions {
	options := CommandLineOptions{}

	flag.StringVar(&options.ConfigName, "config", "", "Configuration file name without extension (defaults to \"config\")")
	flag.StringVar(&options.ConfigPath, "config-path", "", "Directory holding the configuration file")

	flag.Parse()

	return options
}

// PrintCommandLineOptions prints the current command line options
func PrintCommandLineOptions(options CommandLineOptions) {
	log := logger.Base()
	log.Info().Msg("Configuration:")
	if options.ConfigName != "" {
		log.Info().Msgf("  Config name: %s", options.ConfigName)
	}
	if options.ConfigPath != "" {
		log.Info().Msgf("  Config path: %s", options.ConfigPath)
	}
}
