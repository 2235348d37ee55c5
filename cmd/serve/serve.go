// Package serve implements the serve command, which runs the Wisp gateway.
package serve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Astatine-Development/uWisp-Server/cmd/shared"
	"github.com/Astatine-Development/uWisp-Server/pkg/config"
	"github.com/Astatine-Development/uWisp-Server/pkg/log"
	"github.com/Astatine-Development/uWisp-Server/pkg/server"

	"github.com/urfave/cli/v3"
)

// GetCommand returns the CLI command that runs the server.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:        "serve",
		Usage:       "Serve Wisp sessions over WebSocket",
		Description: shared.GetBaseDescription(),
		ArgsUsage:   shared.GetArgsUsage(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := buildConfig(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			shared.SetupSignalHandling(cancel)

			return server.Serve(ctx, cfg)
		},
		Flags: getFlags(),
	}
}

func buildConfig(cmd *cli.Command) (*config.Server, error) {
	args := cmd.Args()
	if args.Len() != 1 {
		return nil, fmt.Errorf("must provide exactly one argument, got %d (%s)", args.Len(), strings.Join(args.Slice(), ", "))
	}

	proto, host, port, err := shared.ParseTransport(args.Get(0))
	if err != nil {
		return nil, fmt.Errorf("parsing transport: %s", err)
	}

	cfg := config.NewServer()
	cfg.Protocol = proto
	cfg.Host = host
	cfg.Port = port
	cfg.Verbose = cmd.Bool(shared.VerboseFlag)
	cfg.Timeout = time.Duration(cmd.Int(shared.TimeoutFlag)) * time.Millisecond
	cfg.DumpFile = cmd.String(shared.DumpFlag)
	cfg.MaxConnections = int(cmd.Int(shared.MaxConnectionsFlag))
	cfg.MaxMessageSize = cmd.Int(shared.MaxMessageFlag)
	cfg.KeepAlive = time.Duration(cmd.Int(shared.KeepAliveFlag)) * time.Millisecond
	if origins := cmd.StringSlice(shared.OriginFlag); len(origins) > 0 {
		cfg.OriginPatterns = origins
	}
	cfg.AllowTCP = !cmd.Bool(shared.NoTCPFlag)
	cfg.AllowUDP = !cmd.Bool(shared.NoUDPFlag)
	cfg.Logger = log.NewLogger(cfg.Verbose)

	if errs := config.Validate(cfg); len(errs) > 0 {
		cfg.Logger.ErrorMsg("Argument validation errors:")
		for _, err := range errs {
			cfg.Logger.ErrorMsg(" - %s", err)
		}
		return nil, fmt.Errorf("exiting")
	}

	return cfg, nil
}

func getFlags() []cli.Flag {
	flags := []cli.Flag{}

	flags = append(flags, shared.GetCommonFlags()...)
	flags = append(flags, shared.GetServerFlags()...)

	return flags
}
