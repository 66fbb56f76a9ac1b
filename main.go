package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"picquant/parallel"
	"picquant/reduce"
	"picquant/similar"
	"picquant/unpack"
)

type CLI struct {
	Workers  int             `help:"Number of parallel workers, one per CPU when 0" default:"0"`
	LogLevel slog.Level      `help:"Log level (debug, info, warn, error)" default:"info"`
	LogJSON  bool            `help:"Log as JSON" name:"log-json"`
	Config   kong.ConfigFlag `help:"Load flag defaults from a JSON file"`

	Reduce  reduce.CLICmd  `cmd:"" help:"Quantize images and write them as indexed files"`
	Similar similar.CLICmd `cmd:"" help:"Find images similar to a target image"`
	Unpack  unpack.CLICmd  `cmd:"" help:"Decode an indexed image file"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("picquant"),
		kong.Description("Reduce images to small palettes, store them as indexed files and search them by color."),
		kong.UsageOnError(),
		kong.Configuration(kong.JSON, "~/.picquant.json"),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	opts := &slog.HandlerOptions{Level: cli.LogLevel}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cli.LogJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))

	pool := parallel.Start(cli.Workers)
	err := kctx.Run(pool)
	pool.Wait(true)
	if err != nil {
		slog.Error("failed", "command", kctx.Command(), "error", err)
		stop()
		os.Exit(1)
	}
}
