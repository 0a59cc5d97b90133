package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "repomap",
	Short: "repomap - budget-fitted repository maps for LLM prompts",
	Long: `repomap parses a source tree with tree-sitter, ranks files and symbols
by reference structure, and renders the most relevant subset within a
token budget, ready for direct inclusion in a model prompt.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("cache", "", "path to the persistent tag cache database")
	pf.String("policy", "always", "refresh policy: always, files, or manual")
	pf.StringSlice("langs", nil, "restrict to these languages")
	pf.Int("max-file-size", 0, "skip parsing files larger than this many bytes")
	pf.Bool("verbose", false, "enable debug logging")

	viper.SetEnvPrefix("REPOMAP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindPFlags(pf)
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !viper.GetBool("verbose") {
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	return cfg.Build()
}
