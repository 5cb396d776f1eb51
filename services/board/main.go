package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/appetiteclub/kitchenboard/services/board/internal/app"
	"github.com/aquamarinepk/aqm"
)

const appNamespace = "BOARD"

func main() {
	config, err := aqm.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("Cannot setup %s(%s): %v", app.AppName, app.AppVersion, err)
	}

	settings, err := app.LoadSettings(config)
	if err != nil {
		log.Fatalf("Cannot load %s settings: %v", app.AppName, err)
	}
	logger := aqm.NewLogger(settings.LogLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	a := app.New(config, settings, logger)

	if err := a.Initialize(ctx); err != nil {
		log.Fatalf("Cannot initialize %s: %v", app.AppName, err)
	}

	if err := a.Run(ctx); err != nil {
		log.Fatalf("%s(%s) stopped with error: %v", app.AppName, app.AppVersion, err)
	}
}
