package main

import (
	"github.com/alecthomas/kong"

	"github.com/vitaminmoo/blelink/internal/cli"
)

func main() {
	var c cli.CLI
	ctx := kong.Parse(&c,
		kong.Name("blelink"),
		kong.Description("Dual-role BLE link: write a counter to a peer while serving one."),
		kong.UsageOnError(),
		kong.Vars(cli.Vars),
	)
	ctx.FatalIfErrorf(c.Run())
}
