package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/ghdisco/pkg/cache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the API response cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached API responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Cache.Backend == cache.BackendNone {
				printInfo("Cache is disabled")
				return nil
			}

			ch, err := newCache(cmd.Context(), cfg.Cache)
			if err != nil {
				return err
			}
			defer ch.Close()

			clearer, ok := ch.(cache.Clearer)
			if !ok {
				return errors.New("cache backend cannot be cleared")
			}
			n, err := clearer.Clear(cmd.Context())
			if err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			if n == 0 {
				printInfo("Cache is empty")
				return nil
			}

			printSuccess("Cleared %d cached entries", n)
			switch cfg.Cache.Backend {
			case cache.BackendRedis:
				printDetail("Redis: %s", cfg.Cache.RedisAddr)
			default:
				printDetail("Directory: %s", c.fileCacheDir(cfg.Cache.Dir))
			}
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where cached responses are stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			switch cfg.Cache.Backend {
			case cache.BackendRedis:
				fmt.Fprintln(cmd.OutOrStdout(), "redis://"+cfg.Cache.RedisAddr)
			case cache.BackendNone:
				printInfo("Cache is disabled")
			default:
				fmt.Fprintln(cmd.OutOrStdout(), c.fileCacheDir(cfg.Cache.Dir))
			}
			return nil
		},
	}
}

func (c *CLI) fileCacheDir(configured string) string {
	if configured != "" {
		return configured
	}
	dir, err := cacheDir()
	if err != nil {
		c.Logger.Debug("no home directory", "err", err)
		return ""
	}
	return dir
}
