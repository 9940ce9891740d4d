package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/yairfalse/sweeper/config"
	"github.com/yairfalse/sweeper/engine"
	_ "github.com/yairfalse/sweeper/providers/aws" // Register AWS provider
	"github.com/yairfalse/sweeper/telemetry"
)

// errOperationsFailed signals that the run completed but some
// operations failed; the process exits 1 instead of 2.
var errOperationsFailed = errors.New("some operations failed")

var (
	version = "0.1.0"

	flagConfig   string
	flagProfiles []string
	flagRegions  []string
	flagDebug    bool

	rootCmd = &cobra.Command{
		Use:   "sweeper",
		Short: "Cloud Estate Decommissioning Engine",
		Long: `Sweeper - Cloud Estate Decommissioning Engine

Sweeper winds down cloud estates safely: it discovers every resource
across accounts and regions, classifies each one against an ordered
preservation policy, tags the survivors with the reason they survived,
and deletes the rest in dependency order.

Runs are dry by default. Nothing is mutated until you pass --live.`,
		Version: version,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errOperationsFailed) {
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`Sweeper {{.Version}} - Cloud Estate Decommissioning Engine
`)
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "Path to sweeper.yaml")
	rootCmd.PersistentFlags().StringSliceVar(&flagProfiles, "profile", nil, "AWS profile to sweep (repeatable, overrides config)")
	rootCmd.PersistentFlags().StringSliceVar(&flagRegions, "region", nil, "Region to sweep (repeatable, overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
}

// loadConfig resolves configuration from --config and flag overrides.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if flagConfig != "" {
		cfg, err = config.LoadConfig(flagConfig)
		if err != nil {
			return nil, err
		}
	} else if _, statErr := os.Stat("sweeper.yaml"); statErr == nil {
		cfg, err = config.LoadConfig("sweeper.yaml")
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	if len(flagProfiles) > 0 {
		cfg.Profiles = flagProfiles
	}
	if len(flagRegions) > 0 {
		cfg.Regions = flagRegions
	}

	return cfg, cfg.Validate()
}

// newEngine wires logging and the engine from resolved config.
func newEngine() (*engine.Engine, *telemetry.Logger, error) {
	if flagDebug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	logger := telemetry.NewLogger("sweeper")
	e, err := engine.New(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return e, logger, nil
}
