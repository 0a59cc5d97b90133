package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"repomap/internal/cache"
	"repomap/internal/discover"
)

var pruneCmd = &cobra.Command{
	Use:   "prune [root]",
	Short: "Drop cache entries for files no longer in the repository",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	path := viper.GetString("cache")
	if path == "" {
		return fmt.Errorf("prune requires --cache")
	}

	root, err := resolveRoot(args)
	if err != nil {
		return err
	}

	entries, err := discover.Files(root, viper.GetStringSlice("langs"))
	if err != nil {
		return fmt.Errorf("discovering files: %w", err)
	}
	keep := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		keep[entry.Path] = struct{}{}
	}

	store, err := cache.Open(path)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer store.Close()

	if err := store.Prune(keep); err != nil {
		return fmt.Errorf("pruning cache: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "pruned cache, kept %d entries\n", len(keep))
	return nil
}
