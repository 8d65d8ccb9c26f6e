// Command letsched builds and solves LET multicore scheduling models.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"letsched"
	"letsched/internal/config"
	"letsched/internal/logger"
)

const VERSION = "0.3.0"

var (
	cfgFile string
	debug   bool
	quiet   bool

	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "letsched",
	Short: "LET multicore scheduler",
	Long: `letsched expands periodic LET tasks over their hyperperiod, builds a
mixed-integer model of core assignment, execution timing and end-to-end
dependencies, and solves it for minimum core usage or minimum delay.`,
	Version:       VERSION,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]string{}
		if debug {
			overrides["logging.level"] = "debug"
		}
		if quiet {
			overrides["logging.level"] = "error"
		}
		var err error
		cfg, err = config.NewLoader().WithConfigPath(cfgFile).WithCmdArgs(overrides).Load()
		if err != nil {
			return err
		}
		logger.Init(&cfg.Logging)
		log = logger.L()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "letsched.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log errors")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// options maps the solver section onto scheduler options.
func options(goal string) (letsched.Options, error) {
	g, err := letsched.ParseGoal(goal)
	if err != nil {
		return letsched.Options{}, err
	}
	opts := letsched.DefaultOptions()
	opts.Goal = g
	opts.TimeLimit = cfg.Solver.TimeLimit
	opts.MaxNodes = cfg.Solver.MaxNodes
	opts.FixedTimings = cfg.Solver.FixedTimings
	opts.Protocol = cfg.Solver.Protocol
	opts.Logger = log
	return opts, nil
}

func generatorConfig(c config.GeneratorConfig) letsched.GeneratorConfig {
	return letsched.GeneratorConfig{
		NumTasks:         c.Tasks,
		Utilisation:      c.Utilisation,
		NumDependencies:  c.Dependencies,
		MaxInitialOffset: c.MaxInitialOffset,
		MaxWcet:          c.MaxWcet,
		MaxDuration:      c.MaxDuration,
		NumCores:         c.Cores,
		NumDevices:       c.Devices,
		MaxProtocolDelay: c.MaxProtocolDelay,
		MaxNetworkDelay:  c.MaxNetworkDelay,
		Seed:             c.Seed,
	}
}
