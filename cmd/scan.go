package cmd

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/carlbunn/musicbox/catalog"
	"github.com/carlbunn/musicbox/config"
	"github.com/carlbunn/musicbox/logger"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the music directory and update the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		bar := progressbar.Default(-1, "scanning")
		if err := store.ScanWithProgress(func(rel string) {
			bar.Add(1)
		}); err != nil {
			return err
		}
		bar.Finish()

		fmt.Printf("\n%d tracks, %d unmapped\n",
			len(store.Tracks()), len(store.UnmappedFiles()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
