package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/precis-ai/precis/internal/fingerprint"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the summary cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		c, err := openCache(cfg)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer c.Close()

		stats, err := c.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("reading stats: %w", err)
		}
		fmt.Printf("entries:  %d\n", stats.EntryCount)
		fmt.Printf("db size:  %d bytes\n", stats.DBSizeBytes)
		fmt.Printf("hits:     %d\n", stats.Hits)
		fmt.Printf("misses:   %d\n", stats.Misses)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached summaries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		c, err := openCache(cfg)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer c.Close()

		if err := c.Clear(cmd.Context()); err != nil {
			return fmt.Errorf("clearing cache: %w", err)
		}
		fmt.Println("cache cleared")
		return nil
	},
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <file>",
	Short: "Remove the cached summary for one document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		fp, err := fingerprint.NewProvider(0).ForFile(path)
		if err != nil {
			return fmt.Errorf("fingerprinting %s: %w", path, err)
		}
		c, err := openCache(cfg)
		if err != nil {
			return fmt.Errorf("opening cache: %w", err)
		}
		defer c.Close()

		if err := c.Invalidate(cmd.Context(), fp.Value); err != nil {
			return fmt.Errorf("invalidating entry: %w", err)
		}
		fmt.Printf("invalidated cache entry for %s\n", path)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheInvalidateCmd)
	rootCmd.AddCommand(cacheCmd)
}
