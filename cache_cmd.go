package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/voxcast/internal/cache"
	"github.com/dgnsrekt/voxcast/tts/engines"
)

var (
	cacheCmd = &cobra.Command{
		Use:   "cache",
		Short: "Show the synthesis cache",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			dc, dir, err := openCache()
			if err != nil {
				return err
			}
			defer dc.Close() //nolint:errcheck

			st := dc.Stats()
			fmt.Printf("%s %s\n", keyword("Directory:"), dir)
			fmt.Printf("%s %s entries, %s of %s\n", keyword("Usage:    "),
				humanize.Comma(st.ItemCount), humanize.Bytes(uint64(st.Size)), humanize.Bytes(uint64(st.Capacity)))
			return nil
		},
	}

	cacheClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached recording",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			dc, dir, err := openCache()
			if err != nil {
				return err
			}
			defer dc.Close() //nolint:errcheck

			freed := dc.Size()
			if err := dc.Clear(); err != nil {
				return fmt.Errorf("unable to clear cache: %w", err)
			}
			fmt.Printf("Freed %s in %s\n", humanize.Bytes(uint64(freed)), dir)
			return nil
		},
	}
)

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}

func openCache() (*cache.DiskCache, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	dir, err := engines.CacheDir(cfg.Cache)
	if err != nil {
		return nil, "", err
	}
	dc, err := cache.NewDiskCache(dir, int64(cfg.Cache.MaxSizeMB)*1024*1024, cfg.Cache.CompressionLevel)
	if err != nil {
		return nil, "", err
	}
	return dc, dir, nil
}
