package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"cuebase/core/analysis"
	"cuebase/core/ingest"
	"cuebase/core/probe"
	"cuebase/db"
	"cuebase/repository"
	"cuebase/storage"

	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <path>...",
	Short: "Import audio files or directories into the library",
	Long: `Import hashes each file, copies new content into the library store,
reads its tags and queues it for analysis. Already-imported content is
skipped. Directories are walked recursively.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := initRuntime()
		if err != nil {
			return err
		}
		defer db.DB.Close()

		paths, err := collectAudioFiles(args)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			fmt.Println("No audio files found.")
			return nil
		}

		store, err := storage.NewContentStore(cfg.LibraryDir)
		if err != nil {
			return err
		}

		trackRepo := repository.NewSQLiteTrackRepository(db.DB)
		engine := analysis.NewProcessEngine(cfg.AnalyzerPath, time.Duration(cfg.AnalyzerTimeout)*time.Second)
		dispatcher := analysis.NewDispatcher(engine, trackRepo, analysis.NopPublisher{})
		prober := probe.NewFileProber(cfg.FFprobePath)
		svc := ingest.NewService(trackRepo, store, prober, dispatcher, analysis.NopPublisher{}, nil)

		report := svc.ImportBatch(paths)

		fmt.Println("Waiting for analysis to finish...")
		dispatcher.Close()

		var imported, duplicates, failed int
		for _, item := range report {
			switch {
			case item.Error != "":
				failed++
				fmt.Printf("  FAIL %s: %s\n", item.Path, item.Error)
			case item.Duplicate:
				duplicates++
				fmt.Printf("  SKIP %s (already in library, track %d)\n", item.Path, item.TrackID)
			default:
				imported++
				fmt.Printf("  OK   %s (track %d)\n", item.Path, item.TrackID)
			}
		}
		fmt.Printf("Imported %d, skipped %d duplicates, %d failed.\n", imported, duplicates, failed)

		if failed > 0 {
			return fmt.Errorf("%d file(s) failed to import", failed)
		}
		return nil
	},
}

// collectAudioFiles expands the arguments: files are taken as-is, directories
// are walked for audio files.
func collectAudioFiles(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && ingest.IsAudioFile(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func init() {
	rootCmd.AddCommand(importCmd)
}
