package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/earscope/pkg/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear cached analysis results",
}

var cacheInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the cache directory and its contents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		if !cfg.CacheEnabled {
			fmt.Fprintln(w, "Cache: disabled")
			return nil
		}

		files, size := cacheUsage(cfg.CacheDir)
		fmt.Fprintf(w, "Cache directory: %s\n", cfg.CacheDir)
		fmt.Fprintf(w, "Cached results: %d\n", files)
		fmt.Fprintf(w, "Size: %d bytes\n", size)
		fmt.Fprintf(w, "Memory entries: %d\n", cfg.CacheEntries)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := cache.NewResultStore(cache.StoreOptions{Dir: cfg.CacheDir})
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		removed, err := store.Clear()
		if err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached results from %s\n", removed, store.Dir())
		return nil
	},
}

func cacheUsage(dir string) (int, int64) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0
	}
	var files int
	var size int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".msgpack") {
			continue
		}
		info, err := os.Stat(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		files++
		size += info.Size()
	}
	return files, size
}

func init() {
	cacheCmd.AddCommand(cacheInfoCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	RootCmd.AddCommand(cacheCmd)
}
