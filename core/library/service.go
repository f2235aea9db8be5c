// Package library is the read/write surface consumers use: paginated track
// queries, playlist operations, analysis re-dispatch and the bulk passes.
package library

import (
	"context"
	"errors"
	"fmt"
	"math"

	"cuebase/cache"
	"cuebase/core/analysis"
	"cuebase/logger"
	"cuebase/model"
	"cuebase/repository"
)

// ErrTrackNotFound is returned by operations targeting a missing track.
var ErrTrackNotFound = errors.New("track not found")

// SettingNormalizeTarget is the settings key holding the last-used
// normalization target in LUFS.
const SettingNormalizeTarget = "normalize.target"

// Service coordinates the repositories, the analysis dispatcher and the
// change-notification publisher.
type Service struct {
	tracks     repository.TrackRepository
	playlists  repository.PlaylistRepository
	settings   repository.SettingsRepository
	dispatcher *analysis.Dispatcher
	events     analysis.Publisher
	listings   *cache.ListingCache // nil when redis is disabled

	defaultTarget float64
}

// NewService creates a new library Service.
func NewService(
	tracks repository.TrackRepository,
	playlists repository.PlaylistRepository,
	settings repository.SettingsRepository,
	dispatcher *analysis.Dispatcher,
	events analysis.Publisher,
	listings *cache.ListingCache,
	defaultTarget float64,
) *Service {
	return &Service{
		tracks:        tracks,
		playlists:     playlists,
		settings:      settings,
		dispatcher:    dispatcher,
		events:        events,
		listings:      listings,
		defaultTarget: defaultTarget,
	}
}

// publish invalidates cached listings and forwards the event.
func (s *Service) publish(event model.Event) {
	if s.listings != nil {
		s.listings.Invalidate(context.Background())
	}
	s.events.Publish(event)
}

// GetTracks returns one page of tracks for the query.
func (s *Service) GetTracks(ctx context.Context, q repository.ListQuery) ([]*model.Track, error) {
	if s.listings != nil {
		if tracks, ok := s.listings.GetTracks(ctx, q); ok {
			return tracks, nil
		}
	}

	tracks, err := s.tracks.List(q)
	if err != nil {
		return nil, err
	}

	if s.listings != nil {
		s.listings.SetTracks(ctx, q, tracks)
	}
	return tracks, nil
}

// GetTrackIDs returns every matching id, independent of pagination.
func (s *Service) GetTrackIDs(ctx context.Context, q repository.ListQuery) ([]int64, error) {
	q.Limit = 0
	q.Offset = 0
	return s.tracks.ListIDs(q)
}

// GetTrack returns one track or ErrTrackNotFound.
func (s *Service) GetTrack(id int64) (*model.Track, error) {
	track, err := s.tracks.GetByID(id)
	if err != nil {
		return nil, err
	}
	if track == nil {
		return nil, ErrTrackNotFound
	}
	return track, nil
}

// UpdateTrack applies a typed field update and notifies consumers.
func (s *Service) UpdateTrack(id int64, u model.TrackUpdate) (*model.Track, error) {
	if _, err := s.GetTrack(id); err != nil {
		return nil, err
	}
	if err := s.tracks.Update(id, u); err != nil {
		return nil, err
	}
	s.publish(model.Event{Type: model.EventTrackUpdated, TrackIDs: []int64{id}})
	return s.GetTrack(id)
}

// Reanalyze dispatches a fresh analysis job for the track. Any job still in
// flight for it is superseded.
func (s *Service) Reanalyze(id int64) error {
	track, err := s.GetTrack(id)
	if err != nil {
		return err
	}
	s.dispatcher.Dispatch(track)
	return nil
}

// AdjustBPM applies the ×2/÷2 halving-doubling convenience to each track:
// the effective tempo (override first) is scaled, rounded to one decimal and
// written to the override. Tracks with no tempo at all are skipped. The new
// values are returned so callers can reconcile a concurrently-fetched view.
func (s *Service) AdjustBPM(trackIDs []int64, factor float64) (map[int64]float64, error) {
	if factor != 2 && factor != 0.5 {
		return nil, fmt.Errorf("unsupported bpm adjustment factor %v", factor)
	}

	adjusted := make(map[int64]float64)
	for _, id := range trackIDs {
		track, err := s.tracks.GetByID(id)
		if err != nil {
			return nil, err
		}
		if track == nil {
			continue
		}
		base := track.EffectiveBPM()
		if base == nil {
			continue
		}

		value := math.Round(*base*factor*10) / 10
		if err := s.tracks.Update(id, model.TrackUpdate{BPMOverride: &value}); err != nil {
			return nil, err
		}
		adjusted[id] = value
	}

	if len(adjusted) > 0 {
		ids := make([]int64, 0, len(adjusted))
		for id := range adjusted {
			ids = append(ids, id)
		}
		s.publish(model.Event{Type: model.EventTrackUpdated, TrackIDs: ids})
	}
	return adjusted, nil
}

// NormalizeLibrary computes and persists the replay gain toward the target
// for every track with measured loudness; tracks without one are untouched.
// Row updates are independent and idempotent: a crash mid-pass leaves the
// already-updated rows correctly normalized. Returns the number of rows
// updated.
func (s *Service) NormalizeLibrary(target *float64) (int, error) {
	targetLufs := s.settings.GetFloat(SettingNormalizeTarget, s.defaultTarget)
	if target != nil {
		targetLufs = *target
		if err := s.settings.SetFloat(SettingNormalizeTarget, targetLufs); err != nil {
			logger.Warn("Could not persist normalization target", logger.ErrorField(err))
		}
	}

	rows, err := s.tracks.ListLoudness()
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, row := range rows {
		gain := math.Round((targetLufs-row.Loudness)*10) / 10
		if err := s.tracks.SetReplayGain(row.ID, gain); err != nil {
			return updated, err
		}
		updated++
	}

	logger.Info("Normalization pass finished",
		logger.Float64("targetLufs", targetLufs), logger.Int("updated", updated))
	if updated > 0 {
		s.publish(model.Event{Type: model.EventLibraryUpdated})
	}
	return updated, nil
}
