package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v2"

	"github.com/caritasnetwork/Caritas/configuration"
	"github.com/caritasnetwork/Caritas/emulator"
	"github.com/caritasnetwork/Caritas/logo"
	"github.com/caritasnetwork/Caritas/natsclient"
	"github.com/caritasnetwork/Caritas/telemetry"
)

const usage = `Emulator runs an in memory ledger gateway with the same REST API as the production gateway.
Use it to develop and test client applications without access to the real ledger.`

func main() {
	logo.Display()

	var file string
	configurator := func() (configuration.Configuration, error) {
		if file == "" {
			return configuration.Configuration{}, errors.New("please specify configuration file path with -c <path to file>")
		}

		cfg, err := configuration.Read(file)
		if err != nil {
			return cfg, err
		}

		return cfg, nil
	}

	app := &cli.App{
		Name:  "emulator",
		Usage: usage,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Load configuration from `FILE`",
				Destination: &file,
			},
		},
		Action: func(_ *cli.Context) error {
			cfg, err := configurator()
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	if err := app.Run(os.Args); err != nil {
		pterm.Error.Println(err.Error())
	}
}

func run(cfg configuration.Configuration) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	go func() {
		<-c
		cancel()
	}()

	if err := telemetry.Run(ctx, cancel, ""); err != nil {
		return err
	}

	var pub emulator.EventPublisher
	if cfg.Nats.Address != "" {
		p, err := natsclient.PublisherConnect(cfg.Nats)
		if err != nil {
			return err
		}
		defer func() {
			if err := p.Disconnect(); err != nil {
				pterm.Warning.Println(err.Error())
			}
		}()
		pub = p
	}

	return emulator.RunGateway(ctx, cancel, cfg.Emulator, pub)
}
