package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"repomap/internal/engine"
	"repomap/internal/toon"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [root]",
	Short: "Print the raw ranked tags, file ranks, and edges in TOON form",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	root, err := resolveRoot(args)
	if err != nil {
		return err
	}

	c := openCache(log)
	defer c.Close()

	eng, err := buildEngine(c, log)
	if err != nil {
		return err
	}

	files, err := candidateFiles(root)
	if err != nil {
		return err
	}

	result, err := eng.Run(cmd.Context(), engine.Request{Files: files, Budget: 0})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), toon.Encode(result.Ranked, result.Graph, result.FileRanks))
	return nil
}
