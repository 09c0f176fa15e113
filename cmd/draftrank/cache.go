package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JohnPlummer/draft-ranker/config"
	"github.com/JohnPlummer/draft-ranker/scorer"
)

func newCacheCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the score cache of a folder",
	}

	listCmd := &cobra.Command{
		Use:   "list <folder>",
		Short: "List cached document identities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, f, args[0], func(c scorer.Cache) error {
				return listCache(cmd, c, cmd.OutOrStdout())
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear <folder> [id...]",
		Short: "Remove cached records, all of them when no id is given",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd, f, args[0], func(c scorer.Cache) error {
				return clearCache(cmd, c, args[1:], cmd.OutOrStdout())
			})
		},
	}

	cmd.AddCommand(listCmd, clearCmd)
	return cmd
}

func withCache(cmd *cobra.Command, f *rootFlags, folder string, fn func(scorer.Cache) error) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	cfg.Folder = folder
	if cmd.Flags().Changed("cache-backend") {
		cfg.Cache.Backend = f.cacheBackend
	}

	c, closeCache, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer closeCache()
	return fn(c)
}

func listCache(cmd *cobra.Command, c scorer.Cache, w io.Writer) error {
	keys, err := c.Keys(cmd.Context())
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Fprintln(w, "Cache is empty")
		return nil
	}
	for _, k := range keys {
		fmt.Fprintln(w, k)
	}
	return nil
}

func clearCache(cmd *cobra.Command, c scorer.Cache, ids []string, w io.Writer) error {
	ctx := cmd.Context()
	if len(ids) == 0 {
		n, err := c.Clear(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Removed %d cached records\n", n)
		return nil
	}

	for _, id := range ids {
		if err := c.Delete(ctx, id); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "Removed %d cached records\n", len(ids))
	return nil
}
