package main

import (
	"os"

	"github.com/mandelsoft/vfs/pkg/osfs"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/aqasim81/sqlmigrate/internal/cli"
)

func main() {
	cli.Execute(
		cli.WithFS(osfs.New()),
		cli.WithOutput(
			colorable.NewColorable(os.Stdout),
			colorable.NewColorable(os.Stderr),
		),
		cli.WithColor(isatty.IsTerminal(os.Stderr.Fd())),
	)
}
