package main

import (
	"context"
	"os"

	"github.com/Astatine-Development/uWisp-Server/cmd/serve"
	"github.com/Astatine-Development/uWisp-Server/cmd/version"
	"github.com/Astatine-Development/uWisp-Server/pkg/log"

	"github.com/urfave/cli/v3"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.ErrorMsg("%s", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "uwisp",
		Usage: "Wisp protocol gateway relaying TCP and UDP over WebSocket",
		Commands: []*cli.Command{
			serve.GetCommand(),
			version.GetCommand(),
		},
	}
}
