package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/lemollon/AlphaGEX-sub013/internal/cli"
	"github.com/lemollon/AlphaGEX-sub013/internal/config"
	"github.com/lemollon/AlphaGEX-sub013/internal/logging"
)

func main() {
	args := os.Args[1:]

	// The config directory must be known before the command tree is
	// built, so --config is picked out of the arguments ahead of cobra.
	cfg, err := config.Load(configDirFromArgs(args))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Console log lines would corrupt machine-readable output.
	if hasJSONFlag(args) {
		cfg.Logging.Console = false
	}
	logger := logging.NewLoggerWithConfig(cfg.LogConfig())

	rootCmd := cli.NewRootCmd(cfg, logger)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func configDirFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	return ""
}

func hasJSONFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--json" || arg == "--json=true" {
			return true
		}
	}
	return false
}
