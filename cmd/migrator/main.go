package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Exit codes.
const (
	exitClean  = 0
	exitFailed = 1
	exitFatal  = 2
)

var (
	sourceFlag = &cli.StringFlag{
		Name:    "source",
		Aliases: []string{"s"},
		Usage:   "source host or redis:// URI",
	}
	targetFlag = &cli.StringFlag{
		Name:    "target",
		Aliases: []string{"t"},
		Usage:   "target host or redis:// URI",
	}
	sourcePortFlag = &cli.IntFlag{
		Name:    "source-port",
		Aliases: []string{"sp"},
		Usage:   "source port",
		Value:   6379,
	}
	targetPortFlag = &cli.IntFlag{
		Name:    "target-port",
		Aliases: []string{"tp"},
		Usage:   "target port",
		Value:   6379,
	}
	sourceDBFlag = &cli.IntFlag{
		Name:    "source-db",
		Aliases: []string{"sd"},
		Usage:   "source database number",
	}
	targetDBFlag = &cli.IntFlag{
		Name:    "target-db",
		Aliases: []string{"td"},
		Usage:   "target database number",
	}
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "YAML or TOML config file; flags override its values",
	}
	workersFlag = &cli.IntFlag{
		Name:  "workers",
		Usage: "number of keys migrated concurrently",
		Value: 1,
	}
	enumerationFlag = &cli.StringFlag{
		Name:  "enumeration",
		Usage: "how source keys are listed (`scan` or `keys`)",
		Value: "scan",
	}
	scanCountFlag = &cli.Int64Flag{
		Name:  "scan-count",
		Usage: "COUNT hint for each SCAN call",
		Value: 1000,
	}
	retriesFlag = &cli.IntFlag{
		Name:  "retries",
		Usage: "retries per store call on connectivity errors",
	}
	rateFlag = &cli.Float64Flag{
		Name:  "rate",
		Usage: "maximum keys per second, 0 for unlimited",
	}
	maxFailuresFlag = &cli.IntFlag{
		Name:  "max-failures",
		Usage: "failed keys listed in the summary",
		Value: 100,
	}
	dryRunFlag = &cli.BoolFlag{
		Name:  "dry-run",
		Usage: "read the source and write into memory instead of the target",
	}
	adminAddrFlag = &cli.StringFlag{
		Name:  "admin-addr",
		Usage: "serve /progress, /metrics and /health on this address",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "debug, info, warn or error",
		Value: "info",
	}
	logJSONFlag = &cli.BoolFlag{
		Name:  "log-json",
		Usage: "write logs as JSON lines",
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "kv-migrator",
		Usage: "copy every key of one Redis database into another, keeping expiry",
		Flags: []cli.Flag{
			sourceFlag,
			sourcePortFlag,
			sourceDBFlag,
			targetFlag,
			targetPortFlag,
			targetDBFlag,
			configFlag,
			workersFlag,
			enumerationFlag,
			scanCountFlag,
			retriesFlag,
			rateFlag,
			maxFailuresFlag,
			dryRunFlag,
			adminAddrFlag,
			logLevelFlag,
			logJSONFlag,
		},
		Action: migrateAction,
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFatal)
	}
}
