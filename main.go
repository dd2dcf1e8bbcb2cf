package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
)

var version = "dev"

func newConsoleWriter() io.Writer {
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, NoColor: false, TimeFormat: time.RFC3339}
	consoleWriter.TimeFormat = "[" + time.RFC3339 + "]"
	consoleWriter.PartsOrder = []string{
		zerolog.TimestampFieldName,
		zerolog.LevelFieldName,
		zerolog.CallerFieldName,
		zerolog.MessageFieldName,
	}
	return consoleWriter
}

func newLogger(w io.Writer) zerolog.Logger {
	logger := zerolog.New(w).
		With().Timestamp().Logger()

	level := zerolog.InfoLevel
	envLevel, ok := os.LookupEnv("LOG_LEVEL")
	if ok {
		parsed, err := zerolog.ParseLevel(envLevel)
		if err != nil {
			logger.Warn().Err(err).Msg("could not parse environment variable LOG_LEVEL")
			return logger
		}
		level = parsed
	}

	return logger.Level(level)
}

func main() {
	args := Command{}
	cli := kong.Parse(&args,
		kong.Name("medialib"),
		kong.Description("Media library publisher: harvest, offload, publish and clean up scanned media."),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignals(cancel)

	console := newConsoleWriter()
	logger := newLogger(console)

	var err error
	switch cli.Command() {
	case "version":
		fmt.Println(version)
		return
	case "harvest":
		err = harvestCommand(ctx, args, console, logger)
	case "offload":
		err = offloadCommand(ctx, args, console, logger)
	case "publish-masters":
		err = mastersCommand(ctx, args, console, logger)
	case "publish-www":
		err = webCommand(ctx, args, console, logger)
	case "cleanup":
		err = cleanupCommand(ctx, args, console, logger)
	case "daemon":
		err = daemonCommand(ctx, args, console, logger)
	default:
		panic(cli.Command())
	}
	if err != nil {
		logger.Error().Err(err).Msgf("%s error", cli.Command())
		cli.Exit(1)
	}
}

func setupSignals(onSignal func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		onSignal()
	}()
}
