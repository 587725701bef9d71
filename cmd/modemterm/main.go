// Package main implements modemterm, an interactive terminal for a dial-up
// modem with XMODEM file transfer.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertbit/grumble"
	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"

	"github.com/arloliu/go-modemterm/link"
	"github.com/arloliu/go-modemterm/logger"
	"github.com/arloliu/go-modemterm/terminal"
)

// CLI banner.
const banner = `
  modemterm - serial modem terminal with XMODEM transfers
  -------------------------------------------------------

`

// Global state.
var (
	config *Config            // app config
	term   *terminal.Terminal // open session
	log    logger.Logger      // CLI logger
)

func main() {
	log = configureLogging("zerolog", logger.InfoLevel)

	app := setupCLI()
	AddCommands(app)

	err := app.Run()
	if term != nil {
		_ = term.Close()
	}
	if err != nil {
		log.Fatal(err.Error())
	}
}

// configureLogging builds the logger for backend and installs it as the
// package default.
func configureLogging(backend string, level logger.LogLevel) logger.Logger {
	var l logger.Logger
	switch backend {
	case "slog":
		l = logger.NewSlog(level, false)
	case "logrus":
		lr := logrus.New()
		lr.SetOutput(os.Stdout)
		lr.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05"})
		l = logger.NewLogrus(lr, level)
	default:
		zl := zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}).With().Timestamp().Logger()
		l = logger.NewZerolog(zl, level)
	}

	logger.SetLogger(l)

	return l
}

// setupCLI creates the grumble app; the session is opened in OnInit.
func setupCLI() *grumble.App {
	var histFile string
	home, err := os.UserHomeDir()
	if err != nil {
		histFile = ".modemterm"
	} else {
		histFile = filepath.Join(home, ".modemterm")
	}

	app := grumble.New(&grumble.Config{
		Name:        "modemterm",
		HistoryFile: histFile,
		Flags: func(f *grumble.Flags) {
			f.String("c", "config", "", "path to configuration file (default "+DefaultConfigPath+")")
			f.String("d", "device", "", "serial port or tcp://host:port, overrides the config file")
		},
	})

	app.SetPrintASCIILogo(func(a *grumble.App) {
		fmt.Print(banner)
	})

	app.OnInit(func(a *grumble.App, flags grumble.FlagMap) error {
		var err error
		config, err = LoadConfig(flags.String("config"))
		if err != nil {
			return fmt.Errorf("failed to load configuration: %v", err)
		}
		if device := flags.String("device"); device != "" {
			config.Device = device
		}

		level, _ := logger.ParseLevel(config.LogLevel)
		log = configureLogging(config.LogBackend, level)

		term, err = openTerminal(config)
		if err != nil {
			return fmt.Errorf("failed to open %s: %v", config.Device, err)
		}
		go printNotifications(a, term)

		log.Info("modemterm: ready", "device", config.Device, "baud", config.BaudRate)

		return nil
	})

	return app
}

func openTerminal(config *Config) (*terminal.Terminal, error) {
	opts, err := config.terminalOptions(log)
	if err != nil {
		return nil, err
	}

	ch, err := link.Open(config.Device, config.linkOptions()...)
	if err != nil {
		return nil, err
	}

	t, err := terminal.New(ch, opts...)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	if err := t.Start(context.Background()); err != nil {
		_ = t.Close()
		return nil, err
	}

	return t, nil
}
