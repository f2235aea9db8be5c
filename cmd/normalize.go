package cmd

import (
	"fmt"

	"cuebase/core/analysis"
	"cuebase/core/library"
	"cuebase/db"
	"cuebase/repository"

	"github.com/spf13/cobra"
)

var normalizeTarget float64

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Recompute replay gain for the whole library",
	Long: `Normalize writes a per-track replay gain toward the target loudness
for every analyzed track. Without --target the last-used target applies.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := initRuntime()
		if err != nil {
			return err
		}
		defer db.DB.Close()

		trackRepo := repository.NewSQLiteTrackRepository(db.DB)
		playlistRepo := repository.NewSQLitePlaylistRepository(db.DB, db.GormDB)
		settingsRepo := repository.NewGormSettingsRepository(db.GormDB)
		svc := library.NewService(trackRepo, playlistRepo, settingsRepo, nil, analysis.NopPublisher{}, nil, cfg.TargetLufs)

		var target *float64
		if cmd.Flags().Changed("target") {
			target = &normalizeTarget
		}

		updated, err := svc.NormalizeLibrary(target)
		if err != nil {
			return err
		}
		fmt.Printf("Updated replay gain for %d track(s).\n", updated)
		return nil
	},
}

func init() {
	normalizeCmd.Flags().Float64Var(&normalizeTarget, "target", -14.0, "target loudness in LUFS")
	rootCmd.AddCommand(normalizeCmd)
}
