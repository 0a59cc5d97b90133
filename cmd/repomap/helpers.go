package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"repomap/internal/cache"
	"repomap/internal/discover"
	"repomap/internal/engine"
)

// resolveRoot turns the optional positional argument into an absolute
// repository root.
func resolveRoot(args []string) (string, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: not a directory", root)
	}
	return root, nil
}

// openCache opens the configured persistent cache, or an in-memory one
// when no cache path is set.
func openCache(log *zap.Logger) cache.Cache {
	path := viper.GetString("cache")
	if path == "" {
		return cache.NewMemory()
	}
	store, err := cache.Open(path)
	if err != nil {
		// A broken cache never blocks a run; degrade to memory.
		log.Warn("cannot open tag cache, continuing without persistence",
			zap.String("path", path), zap.Error(err))
		return cache.NewMemory()
	}
	return store
}

// buildEngine assembles an engine from persistent flags.
func buildEngine(c cache.Cache, log *zap.Logger) (*engine.Engine, error) {
	policy, err := engine.ParsePolicy(viper.GetString("policy"))
	if err != nil {
		return nil, err
	}
	opts := []engine.Option{engine.WithPolicy(policy)}
	if n := viper.GetInt("max-file-size"); n > 0 {
		opts = append(opts, engine.WithMaxFileSize(n))
	}
	return engine.New(c, log, opts...), nil
}

// candidateFiles discovers candidates under root and wires lazy loaders.
func candidateFiles(root string) ([]engine.File, error) {
	entries, err := discover.Files(root, viper.GetStringSlice("langs"))
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}
	files := make([]engine.File, 0, len(entries))
	for _, entry := range entries {
		rel := entry.Path
		abs := filepath.Join(root, rel)
		files = append(files, engine.File{
			Path: rel,
			Load: func() ([]byte, int64, error) {
				info, err := os.Stat(abs)
				if err != nil {
					return nil, 0, err
				}
				content, err := os.ReadFile(abs)
				if err != nil {
					return nil, 0, err
				}
				return content, info.ModTime().Unix(), nil
			},
		})
	}
	return files, nil
}

// readTextFile loads an optional text file, returning "" when unset.
func readTextFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
