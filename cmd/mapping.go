package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carlbunn/musicbox/catalog"
	"github.com/carlbunn/musicbox/config"
	"github.com/carlbunn/musicbox/logger"
)

var mapCmd = &cobra.Command{
	Use:   "map <tag-id> <file>",
	Short: "Map a tag to a track",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *catalog.Store) error {
			if err := store.AddMapping(args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("mapped %s -> %s\n", args[0], args[1])
			return nil
		})
	},
}

var unmapCmd = &cobra.Command{
	Use:   "unmap <tag-id>",
	Short: "Remove a tag mapping",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *catalog.Store) error {
			if err := store.RemoveMapping(args[0]); err != nil {
				return err
			}
			fmt.Printf("unmapped %s\n", args[0])
			return nil
		})
	},
}

func withStore(fn func(store *catalog.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	initLogging(cfg)
	defer logger.Sync()

	store, err := catalog.NewStore(cfg.MusicRoot, cfg.DatabasePath, cfg.FlushInterval)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func init() {
	rootCmd.AddCommand(mapCmd)
	rootCmd.AddCommand(unmapCmd)
}
