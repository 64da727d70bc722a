package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carlbunn/musicbox/catalog"
	"github.com/carlbunn/musicbox/config"
	"github.com/carlbunn/musicbox/logger"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Audit tag mappings against the music directory",
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

		report := store.Validate()
		if len(report.MissingFiles) == 0 && len(report.DuplicateTargets) == 0 {
			fmt.Println("catalog ok")
			return nil
		}
		for _, m := range report.MissingFiles {
			fmt.Printf("missing: %s\n", m)
		}
		for _, d := range report.DuplicateTargets {
			fmt.Printf("duplicate target: %s\n", d)
		}
		if len(report.MissingFiles) > 0 {
			return fmt.Errorf("%d mapping(s) point at missing files", len(report.MissingFiles))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
