// Package ingest turns arbitrary audio file paths into canonical,
// deduplicated library records.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"cuebase/core/analysis"
	"cuebase/core/probe"
	"cuebase/logger"
	"cuebase/model"
	"cuebase/repository"
	"cuebase/storage"
)

// Result reports the outcome of importing one file.
type Result struct {
	TrackID   int64  `json:"trackId"`
	Hash      string `json:"hash"`
	Duplicate bool   `json:"duplicate"` // The content was already in the library
}

// BatchItem is one entry of a batch import report. Failures are per file; a
// bad file never aborts the rest of the batch.
type BatchItem struct {
	Path      string `json:"path"`
	TrackID   int64  `json:"trackId,omitempty"`
	Hash      string `json:"hash,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Service ingests files: hash, dedup, copy into the content store, probe,
// insert, dispatch analysis.
type Service struct {
	repo       repository.TrackRepository
	store      *storage.ContentStore
	prober     probe.Prober
	dispatcher *analysis.Dispatcher
	events     analysis.Publisher
	mirror     *storage.ArchiveMirror // nil disables archive mirroring
}

// NewService creates a new ingest Service.
func NewService(
	repo repository.TrackRepository,
	store *storage.ContentStore,
	prober probe.Prober,
	dispatcher *analysis.Dispatcher,
	events analysis.Publisher,
	mirror *storage.ArchiveMirror,
) *Service {
	return &Service{
		repo:       repo,
		store:      store,
		prober:     prober,
		dispatcher: dispatcher,
		events:     events,
		mirror:     mirror,
	}
}

// ImportFile ingests one file. Re-importing already-known content (same
// bytes, any path) is an idempotent no-op returning the existing track id.
func (s *Service) ImportFile(path string) (*Result, error) {
	hash, err := storage.HashFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	if existing, err := s.repo.GetByHash(hash); err != nil {
		return nil, err
	} else if existing != nil {
		logger.Debug("Skipping duplicate import",
			logger.String("path", path), logger.String("hash", hash),
			logger.Int64("trackId", existing.ID))
		return &Result{TrackID: existing.ID, Hash: hash, Duplicate: true}, nil
	}

	// Copy before insert: a row must never reference an incomplete file.
	storePath, err := s.store.Put(path, hash)
	if err != nil {
		return nil, err
	}

	meta, err := s.prober.Probe(storePath)
	if err != nil {
		return nil, fmt.Errorf("probe failed for %s (hash %s): %w", path, hash, err)
	}

	track := &model.Track{
		ContentHash: hash,
		FilePath:    storePath,
		Format:      meta.Format,
		Bitrate:     meta.Bitrate,
		Duration:    meta.Duration,
		Title:       meta.Title,
		Artist:      meta.Artist,
		Album:       meta.Album,
		Year:        meta.Year,
		Label:       meta.Label,
		Genres:      meta.Genres,
	}

	if _, err := s.repo.Create(track); err != nil {
		if repository.IsUniqueConstraint(err) {
			// A concurrent import of the same content won the insert race.
			// The store copy is content-addressed, so ours is byte-identical;
			// fall back to the winner's row.
			winner, lookupErr := s.repo.GetByHash(hash)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if winner != nil {
				return &Result{TrackID: winner.ID, Hash: hash, Duplicate: true}, nil
			}
		}
		return nil, fmt.Errorf("failed to insert track for %s (hash %s): %w", path, hash, err)
	}

	logger.Info("Imported track",
		logger.Int64("trackId", track.ID),
		logger.String("hash", hash),
		logger.String("title", track.Title))

	s.dispatcher.Dispatch(track)
	s.events.Publish(model.Event{Type: model.EventLibraryUpdated, TrackIDs: []int64{track.ID}})
	s.mirrorAsync(storePath)

	return &Result{TrackID: track.ID, Hash: hash}, nil
}

// ImportBatch ingests many files, reporting per-file outcomes.
func (s *Service) ImportBatch(paths []string) []BatchItem {
	report := make([]BatchItem, 0, len(paths))
	for _, path := range paths {
		item := BatchItem{Path: path}
		res, err := s.ImportFile(path)
		if err != nil {
			logger.Error("Import failed", logger.String("path", path), logger.ErrorField(err))
			item.Error = err.Error()
		} else {
			item.TrackID = res.TrackID
			item.Hash = res.Hash
			item.Duplicate = res.Duplicate
		}
		report = append(report, item)
	}
	return report
}

func (s *Service) mirrorAsync(storePath string) {
	if s.mirror == nil {
		return
	}
	objectName := s.store.ObjectName(storePath)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.mirror.Mirror(ctx, storePath, objectName); err != nil {
			logger.Warn("Archive mirror failed", logger.String("object", objectName), logger.ErrorField(err))
		}
	}()
}

var audioExtensions = map[string]bool{
	".mp3": true, ".flac": true, ".wav": true, ".ogg": true,
	".m4a": true, ".aac": true, ".aiff": true, ".opus": true, ".wma": true,
}

// IsAudioFile reports whether the path looks like an audio file by extension.
func IsAudioFile(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}
