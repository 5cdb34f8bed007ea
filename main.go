package main

import (
	"os"

	"github.com/Gthulhu/schedcore/app"
	"github.com/Gthulhu/schedcore/pkg/logger"
)

func main() {
	log := logger.InitLogger()

	options := ParseCommandLineOptions()
	PrintCommandLineOptions(options)

	restApp, err := app.NewRestApp(options.ConfigName, options.ConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application")
		os.Exit(1)
	}

	restApp.Run()
}
