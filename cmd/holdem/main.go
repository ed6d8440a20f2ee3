package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Config   string           `short:"c" default:"holdem.hcl" type:"path" help:"HCL config file"`
	LogLevel string           `help:"Override the configured log level (debug, info, warn, error)"`

	Serve    ServeCmd    `cmd:"" help:"Run the WebSocket table server"`
	Simulate SimulateCmd `cmd:"" help:"Play seeded bot tables and check chip conservation"`
	Eval     EvalCmd     `cmd:"" help:"Evaluate and describe a set of cards"`
	Odds     OddsCmd     `cmd:"" help:"Estimate showdown equity for hole cards"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("holdem"),
		kong.Description("No-limit Texas Hold'em table engine"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
