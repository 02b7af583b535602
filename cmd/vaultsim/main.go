package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"vaultchain/config"
	"vaultchain/core"
	"vaultchain/observability/logging"
)

func main() {
	scenarioFile := flag.String("scenario", "", "Path to the YAML scenario")
	configFile := flag.String("config", "", "Optional node configuration (defaults when empty)")
	verbose := flag.Bool("v", false, "Log node transactions to stderr")
	flag.Parse()

	if *scenarioFile == "" {
		fmt.Fprintln(os.Stderr, "vaultsim: -scenario is required")
		os.Exit(2)
	}
	if err := run(*scenarioFile, *configFile, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "vaultsim: %v\n", err)
		os.Exit(1)
	}
}

func run(scenarioFile, configFile string, verbose bool) error {
	sc, err := LoadScenario(scenarioFile)
	if err != nil {
		return err
	}
	cfg := config.Default()
	if configFile != "" {
		if cfg, err = config.Load(configFile); err != nil {
			return err
		}
	}
	var opts []core.Option
	if verbose {
		logger, _ := logging.SetupWithOptions(logging.Options{
			Service: "vaultsim",
			Env:     "sim",
			Level:   slog.LevelDebug,
			Output:  os.Stderr,
		})
		opts = append(opts, core.WithLogger(logger))
	}
	report, err := Run(context.Background(), cfg, sc, opts...)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
