package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"repomap/internal/engine"
	"repomap/internal/seed"
	"repomap/internal/token"
	"repomap/internal/watch"
)

var mapCmd = &cobra.Command{
	Use:   "map [root]",
	Short: "Render a budget-fitted repository map",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMap,
}

func init() {
	f := mapCmd.Flags()
	f.Int("budget", 1024, "token budget for the rendered map")
	f.StringSlice("chat-file", nil, "files already fully in the conversation context")
	f.StringSlice("flag-file", nil, "files the user marked as important")
	f.String("mentions", "", "literal recent conversation text for identifier boosts")
	f.String("mentions-file", "", "file containing recent conversation text")
	f.String("encoding", token.DefaultEncoding, "tiktoken encoding for token counting")
	f.Bool("watch", false, "keep running and re-render on file changes")
	_ = viper.BindPFlag("budget", f.Lookup("budget"))
	_ = viper.BindPFlag("encoding", f.Lookup("encoding"))
	rootCmd.AddCommand(mapCmd)
}

func runMap(cmd *cobra.Command, args []string) error {
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

	recentText, _ := cmd.Flags().GetString("mentions")
	if path, _ := cmd.Flags().GetString("mentions-file"); path != "" {
		fromFile, err := readTextFile(path)
		if err != nil {
			return err
		}
		recentText += "\n" + fromFile
	}
	chatFiles, _ := cmd.Flags().GetStringSlice("chat-file")
	flagged, _ := cmd.Flags().GetStringSlice("flag-file")

	req := engine.Request{
		Chat: seed.ChatState{
			InContext:  toSet(chatFiles),
			RecentText: recentText,
			Flagged:    toSet(flagged),
		},
		Budget:  viper.GetInt("budget"),
		Counter: token.Tiktoken(viper.GetString("encoding")),
	}
	if viper.GetBool("verbose") {
		req.Progress = func(done, total int) {
			if done == total || done%100 == 0 {
				log.Debug("extracting", zap.Int("done", done), zap.Int("total", total))
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	render := func() error {
		files, err := candidateFiles(root)
		if err != nil {
			return err
		}
		req.Files = files
		result, err := eng.Run(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), result.Map.Text())
		log.Info("map rendered",
			zap.Int("tokens", result.Map.Tokens),
			zap.Bool("truncated", result.Map.Truncated),
			zap.Int("parse_errors", result.Stats.ParseErrors),
			zap.Int("unsupported", result.Stats.Unsupported),
			zap.Int("oversized", result.Stats.Oversized),
			zap.Int("cache_errors", result.Stats.CacheErrors))
		return nil
	}

	if err := render(); err != nil {
		return err
	}

	if watchMode, _ := cmd.Flags().GetBool("watch"); !watchMode {
		return nil
	}

	changed := make(chan struct{}, 1)
	w, err := watch.New(root, log, func() {
		eng.Invalidate()
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer w.Close()
	go func() { _ = w.Run(ctx) }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			// Let bursts of events settle before re-rendering.
			time.Sleep(200 * time.Millisecond)
			drain(changed)
			if err := render(); err != nil {
				log.Warn("re-render failed", zap.Error(err))
			}
		}
	}
}

func drain(ch chan struct{}) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
