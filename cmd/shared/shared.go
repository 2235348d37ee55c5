// Package shared provides the CLI flag definitions and parsing helpers used
// by uwisp's commands.
package shared

import (
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/Astatine-Development/uWisp-Server/pkg/config"
)

const categoryCommon = "common"

// VerboseFlag is the name of the flag to enable per-stream logging.
const VerboseFlag = "verbose"

// TimeoutFlag is the name of the flag to specify the dial timeout in milliseconds.
const TimeoutFlag = "timeout"

// DumpFlag is the name of the flag to specify a traffic dump file.
const DumpFlag = "dump"

// GetBaseDescription returns the base description text for transport
// specifications used in CLI commands.
func GetBaseDescription() string {
	return strings.Join([]string{
		"Specify transport like this: ws://127.0.0.1:8080 (supports ws|wss)",
		"You can omit the host to bind to all interfaces.",
		"wss uses an ephemeral self-signed certificate.",
	}, "\n")
}

// GetArgsUsage returns the arguments usage string for CLI commands.
func GetArgsUsage() string {
	return strings.Join([]string{
		"transport",
	}, " ")
}

// GetCommonFlags returns the logging and timeout flags.
func GetCommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:     VerboseFlag,
			Aliases:  []string{"v"},
			Usage:    "Log every stream and its traffic totals",
			Category: categoryCommon,
			Value:    false,
			Required: false,
		},
		&cli.IntFlag{
			Name:     TimeoutFlag,
			Aliases:  []string{"t"},
			Usage:    "Timeout in milliseconds for resolving and connecting stream targets",
			Category: categoryCommon,
			Value:    int64(config.DefaultTimeout.Milliseconds()),
			Required: false,
		},
		&cli.StringFlag{
			Name:     DumpFlag,
			Aliases:  []string{"l"},
			Usage:    "Append all outbound TCP traffic to this file",
			Category: categoryCommon,
			Value:    "",
			Required: false,
		},
	}
}

const categoryServer = "server"

// MaxConnectionsFlag is the name of the flag limiting concurrent sessions.
const MaxConnectionsFlag = "max-connections"

// MaxMessageFlag is the name of the flag limiting the WebSocket message size in bytes.
const MaxMessageFlag = "max-message"

// KeepAliveFlag is the name of the flag to specify the idle timeout in milliseconds.
const KeepAliveFlag = "keepalive"

// OriginFlag is the name of the flag listing the allowed browser origins.
const OriginFlag = "origin"

// NoTCPFlag is the name of the flag to refuse TCP streams.
const NoTCPFlag = "no-tcp"

// NoUDPFlag is the name of the flag to refuse UDP streams.
const NoUDPFlag = "no-udp"

// GetServerFlags returns the flags tuning the WebSocket server and the
// stream types it accepts.
func GetServerFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:     MaxConnectionsFlag,
			Usage:    "Maximum number of concurrent sessions, more are rejected with HTTP 503",
			Category: categoryServer,
			Value:    config.DefaultMaxConnections,
			Required: false,
		},
		&cli.IntFlag{
			Name:     MaxMessageFlag,
			Usage:    "Maximum WebSocket message size in bytes",
			Category: categoryServer,
			Value:    config.DefaultMaxMessageSize,
			Required: false,
		},
		&cli.IntFlag{
			Name:     KeepAliveFlag,
			Usage:    "Idle timeout in milliseconds, pings are sent every half of it (0 disables)",
			Category: categoryServer,
			Value:    int64(config.DefaultKeepAlive.Milliseconds()),
			Required: false,
		},
		&cli.StringSliceFlag{
			Name:     OriginFlag,
			Usage:    "Allowed browser origin host pattern, can be repeated (default: all)",
			Category: categoryServer,
			Required: false,
		},
		&cli.BoolFlag{
			Name:     NoTCPFlag,
			Usage:    "Refuse TCP streams",
			Category: categoryServer,
			Value:    false,
			Required: false,
		},
		&cli.BoolFlag{
			Name:     NoUDPFlag,
			Usage:    "Refuse UDP streams",
			Category: categoryServer,
			Value:    false,
			Required: false,
		},
	}
}
