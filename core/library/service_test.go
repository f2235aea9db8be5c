package library

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"cuebase/db"
	"cuebase/model"
	"cuebase/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Event
}

func (p *recordingPublisher) Publish(event model.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	svc    *Service
	tracks repository.TrackRepository
	events *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	require.NoError(t, db.InitSchema(conn))
	t.Cleanup(func() { conn.Close() })

	gdb, err := gorm.Open(sqlite.Dialector{Conn: conn}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	tracks := repository.NewSQLiteTrackRepository(conn)
	playlists := repository.NewSQLitePlaylistRepository(conn, gdb)
	settings := repository.NewGormSettingsRepository(gdb)
	events := &recordingPublisher{}

	svc := NewService(tracks, playlists, settings, nil, events, nil, -14.0)
	return &fixture{svc: svc, tracks: tracks, events: events}
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func (f *fixture) seed(t *testing.T, hash, title string, bpm, loudness *float64) *model.Track {
	t.Helper()
	track := &model.Track{ContentHash: hash, FilePath: "/" + hash, Title: title, Genres: []string{}}
	_, err := f.tracks.Create(track)
	require.NoError(t, err)
	if bpm != nil || loudness != nil {
		res := &model.AnalysisResult{BPM: bpm, Lufs: loudness}
		require.NoError(t, f.tracks.ApplyAnalysis(track.ID, res))
	}
	return track
}

func TestNormalizeLibraryComputesGainTowardTarget(t *testing.T) {
	f := newFixture(t)

	loud := f.seed(t, "h-loud", "loud", floatPtr(128), floatPtr(-8.0))
	quiet := f.seed(t, "h-quiet", "quiet", floatPtr(120), floatPtr(-17.35))
	unmeasured := f.seed(t, "h-raw", "unmeasured", nil, nil)

	updated, err := f.svc.NormalizeLibrary(nil)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	got, err := f.svc.GetTrack(loud.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReplayGain)
	assert.Equal(t, -6.0, *got.ReplayGain)

	got, err = f.svc.GetTrack(quiet.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReplayGain)
	// (-14) - (-17.35) = 3.35, rounded to one decimal.
	assert.Equal(t, 3.4, *got.ReplayGain)

	got, err = f.svc.GetTrack(unmeasured.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ReplayGain)
}

func TestNormalizeLibraryPersistsTarget(t *testing.T) {
	f := newFixture(t)
	track := f.seed(t, "h1", "one", nil, floatPtr(-12.0))

	_, err := f.svc.NormalizeLibrary(floatPtr(-10.0))
	require.NoError(t, err)

	got, err := f.svc.GetTrack(track.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, *got.ReplayGain)

	// A later pass without an explicit target reuses the stored one.
	_, err = f.svc.NormalizeLibrary(nil)
	require.NoError(t, err)
	got, err = f.svc.GetTrack(track.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, *got.ReplayGain)
}

func TestNormalizeLibraryIsIdempotent(t *testing.T) {
	f := newFixture(t)
	track := f.seed(t, "h1", "one", nil, floatPtr(-9.5))

	for i := 0; i < 3; i++ {
		_, err := f.svc.NormalizeLibrary(nil)
		require.NoError(t, err)
	}

	got, err := f.svc.GetTrack(track.ID)
	require.NoError(t, err)
	assert.Equal(t, -4.5, *got.ReplayGain)
}

func TestAdjustBPMHalvesAndDoubles(t *testing.T) {
	f := newFixture(t)

	dnb := f.seed(t, "h-dnb", "dnb", floatPtr(174), nil)
	halved, err := f.svc.AdjustBPM([]int64{dnb.ID}, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 87.0, halved[dnb.ID])

	got, err := f.svc.GetTrack(dnb.ID)
	require.NoError(t, err)
	require.NotNil(t, got.BPMOverride)
	assert.Equal(t, 87.0, *got.BPMOverride)
	// The derived tempo is untouched; only the override moves.
	assert.Equal(t, 174.0, *got.BPM)

	// Doubling compounds on the override, not the original analysis value.
	doubled, err := f.svc.AdjustBPM([]int64{dnb.ID}, 2)
	require.NoError(t, err)
	assert.Equal(t, 174.0, doubled[dnb.ID])
}

func TestAdjustBPMSkipsTracksWithoutTempo(t *testing.T) {
	f := newFixture(t)

	silent := f.seed(t, "h-silent", "silent", nil, nil)
	ticking := f.seed(t, "h-tick", "ticking", floatPtr(100), nil)

	adjusted, err := f.svc.AdjustBPM([]int64{silent.ID, ticking.ID, 9999}, 2)
	require.NoError(t, err)
	assert.Len(t, adjusted, 1)
	assert.Equal(t, 200.0, adjusted[ticking.ID])
}

func TestAdjustBPMRejectsOtherFactors(t *testing.T) {
	f := newFixture(t)
	track := f.seed(t, "h1", "one", floatPtr(120), nil)

	_, err := f.svc.AdjustBPM([]int64{track.ID}, 1.5)
	assert.Error(t, err)
}

func TestUpdateTrackNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.UpdateTrack(404, model.TrackUpdate{Rating: intPtr(3)})
	assert.ErrorIs(t, err, ErrTrackNotFound)
}

func TestUpdateTrackPublishesChange(t *testing.T) {
	f := newFixture(t)
	track := f.seed(t, "h1", "one", nil, nil)

	updated, err := f.svc.UpdateTrack(track.ID, model.TrackUpdate{Rating: intPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Rating)
	assert.Contains(t, f.events.types(), model.EventTrackUpdated)
}

// TestFilteredSetBuildingScenario walks a typical session: import a small
// library, pick the harmonic and tempo neighborhood of an anchor track,
// collect the matches into a playlist and rework its order.
func TestFilteredSetBuildingScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	seedKeyed := func(hash, title string, bpm float64, key string) *model.Track {
		track := f.seed(t, hash, title, nil, nil)
		res := &model.AnalysisResult{BPM: floatPtr(bpm), KeyRaw: &key, KeyCamelot: &key}
		require.NoError(t, f.tracks.ApplyAnalysis(track.ID, res))
		return track
	}

	anchor := seedKeyed("h-anchor", "anchor", 126, "8a")
	neighbor := seedKeyed("h-neighbor", "neighbor", 128, "9a")
	relative := seedKeyed("h-relative", "relative", 124, "8b")
	tooFast := seedKeyed("h-fast", "too fast", 150, "8a")
	wrongKey := seedKeyed("h-wrong", "wrong key", 126, "2b")

	q := repository.ListQuery{Filters: []model.Filter{
		{Field: "key", Op: model.OpMatches, Value: "8a"},
		{Field: "bpm", Op: model.OpRange, From: "120", To: "130"},
	}}
	tracks, err := f.svc.GetTracks(ctx, q)
	require.NoError(t, err)

	var ids []int64
	for _, track := range tracks {
		ids = append(ids, track.ID)
	}
	assert.ElementsMatch(t, []int64{anchor.ID, neighbor.ID, relative.ID}, ids)
	assert.NotContains(t, ids, tooFast.ID)
	assert.NotContains(t, ids, wrongKey.ID)

	playlist, err := f.svc.CreatePlaylist("harmonic set", "#884488")
	require.NoError(t, err)
	added, err := f.svc.AddToPlaylist(playlist.ID, ids)
	require.NoError(t, err)
	assert.Equal(t, 3, added)

	reordered := []int64{relative.ID, anchor.ID, neighbor.ID}
	require.NoError(t, f.svc.ReorderPlaylist(playlist.ID, reordered))

	inOrder, err := f.svc.GetTracks(ctx, repository.ListQuery{PlaylistID: playlist.ID})
	require.NoError(t, err)
	require.Len(t, inOrder, 3)
	assert.Equal(t, relative.ID, inOrder[0].ID)
	assert.Equal(t, anchor.ID, inOrder[1].ID)
	assert.Equal(t, neighbor.ID, inOrder[2].ID)
}
