package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/junioryono/flyweight/internal/bench"
)

var (
	cfgFile string
	cfg     bench.Config
)

var rootCmd = &cobra.Command{
	Use:   "flyweightbench",
	Short: "Stress a flyweight registry",
	Long: `flyweightbench acquires fractions, mixed numbers and named fractions from
many goroutines at once, injecting construction failures, and verifies that
each value was only ever represented by one instance.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	cobra.OnInitialize(initConfig)

	defaults := bench.Defaults()
	flags := rootCmd.Flags()
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml, json or toml)")
	flags.IntP("workers", "w", defaults.Workers, "number of concurrent workers")
	flags.IntP("keys", "k", defaults.Keys, "size of the numerator space")
	flags.IntP("iterations", "n", defaults.Iterations, "acquisitions per worker")
	flags.Float64("fail-rate", defaults.FailRate, "probability of an injected construction failure")
	flags.Uint64("seed", defaults.Seed, "random seed")
	flags.Duration("timeout", defaults.Timeout, "overall deadline, 0 for none")
	flags.String("log-level", defaults.LogLevel, "log level (debug, info, warn, error)")
	flags.Bool("trace", defaults.Trace, "print spans to stderr")
	flags.Bool("metrics", defaults.Metrics, "print registry metrics after the run")

	// Bind flags to viper
	for key, flag := range map[string]string{
		"workers":    "workers",
		"keys":       "keys",
		"iterations": "iterations",
		"fail_rate":  "fail-rate",
		"seed":       "seed",
		"timeout":    "timeout",
		"log_level":  "log-level",
		"trace":      "trace",
		"metrics":    "metrics",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(flag))
	}
}

func initConfig() {
	defaults := bench.Defaults()
	viper.SetDefault("workers", defaults.Workers)
	viper.SetDefault("keys", defaults.Keys)
	viper.SetDefault("iterations", defaults.Iterations)
	viper.SetDefault("fail_rate", defaults.FailRate)
	viper.SetDefault("seed", defaults.Seed)
	viper.SetDefault("timeout", defaults.Timeout)
	viper.SetDefault("log_level", defaults.LogLevel)
	viper.SetDefault("trace", defaults.Trace)
	viper.SetDefault("metrics", defaults.Metrics)

	viper.SetEnvPrefix("FLYWEIGHT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("flyweightbench")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			cobra.CheckErr(fmt.Errorf("reading config: %w", err))
		}
	}

	cobra.CheckErr(viper.Unmarshal(&cfg))
}

func run(cmd *cobra.Command, _ []string) error {
	return bench.Run(cmd.Context(), cfg, bench.Output{
		Out: cmd.OutOrStdout(),
		Err: cmd.ErrOrStderr(),
	})
}
