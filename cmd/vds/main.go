package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/mwantia/vds"
	"github.com/mwantia/vds/cmd"
	"github.com/mwantia/vds/cmd/builtin"
	"github.com/mwantia/vds/log"
)

// setupLogger reads VDS_LOG_LEVEL, VDS_LOG_FILE and VDS_LOG_JSON.
func setupLogger() (*log.Logger, error) {
	level := log.Warn
	if s := os.Getenv("VDS_LOG_LEVEL"); s != "" {
		parsed, err := log.Parse(s)
		if err != nil {
			return nil, err
		}
		level = parsed
	}

	logger := log.NewLogger("vds", level, os.Getenv("VDS_LOG_FILE"), false)
	if s := os.Getenv("VDS_LOG_JSON"); s != "" {
		enabled, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("invalid VDS_LOG_JSON '%s': %w", s, err)
		}
		logger.JSON = enabled
	}

	return logger, nil
}

func run(ctx context.Context, args []string) vds.ExitCode {
	logger, err := setupLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logger: %v\n", err)
		return vds.InvalidArgument
	}
	defer logger.Close()

	manager := cmd.NewCommandManager(cmd.NewDatasetAPI(logger))
	if err := builtin.InitBuiltin(manager); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup commands: %v\n", err)
		return vds.Failure
	}

	if len(args) == 0 {
		args = []string{"help"}
	}

	code, err := manager.Execute(ctx, os.Stdout, args...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vds %s: %v (%s)\n", args[0], err, code)
	}
	return code
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:])
	stop()

	os.Exit(int(code))
}
