package repository

import (
	"database/sql"
	"testing"
	"time"

	"cuebase/db"
	"cuebase/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	require.NoError(t, db.InitSchema(conn))
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newTestGorm(t *testing.T, conn *sql.DB) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Dialector{Conn: conn}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return gdb
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }
func strPtr(v string) *string     { return &v }

func seedTrack(t *testing.T, repo TrackRepository, hash, title string) *model.Track {
	t.Helper()
	track := &model.Track{
		ContentHash: hash,
		FilePath:    "/library/" + hash[:2] + "/" + hash + ".mp3",
		Format:      "mp3",
		Duration:    312.4,
		Title:       title,
		Genres:      []string{},
	}
	_, err := repo.Create(track)
	require.NoError(t, err)
	return track
}

func analyze(t *testing.T, repo TrackRepository, id int64, bpm float64, key string) {
	t.Helper()
	res := &model.AnalysisResult{
		BPM:        floatPtr(bpm),
		KeyRaw:     strPtr(key),
		KeyCamelot: strPtr(key),
	}
	require.NoError(t, repo.ApplyAnalysis(id, res))
}

func TestCreateAndGetByHash(t *testing.T) {
	repo := NewSQLiteTrackRepository(newTestDB(t))

	created := seedTrack(t, repo, "aaaa1111aaaa1111aaaa1111aaaa1111aaaa1111", "Dust Devil")

	found, err := repo.GetByHash(created.ContentHash)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "Dust Devil", found.Title)
	assert.False(t, found.Analyzed)
	assert.Nil(t, found.BPM)

	missing, err := repo.GetByHash("ffff0000ffff0000ffff0000ffff0000ffff0000")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreateRejectsDuplicateHash(t *testing.T) {
	repo := NewSQLiteTrackRepository(newTestDB(t))

	seedTrack(t, repo, "aaaa1111aaaa1111aaaa1111aaaa1111aaaa1111", "Original")

	_, err := repo.Create(&model.Track{
		ContentHash: "aaaa1111aaaa1111aaaa1111aaaa1111aaaa1111",
		FilePath:    "/library/aa/other.mp3",
		Title:       "Same bytes, different path",
	})
	require.Error(t, err)
	assert.True(t, IsUniqueConstraint(err))
}

func TestListDefaultOrderIsNewestFirst(t *testing.T) {
	repo := NewSQLiteTrackRepository(newTestDB(t))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, title := range []string{"oldest", "middle", "newest"} {
		track := &model.Track{
			ContentHash: "hash" + title,
			FilePath:    "/library/" + title,
			Title:       title,
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}
		_, err := repo.Create(track)
		require.NoError(t, err)
	}

	tracks, err := repo.List(ListQuery{})
	require.NoError(t, err)
	require.Len(t, tracks, 3)
	assert.Equal(t, "newest", tracks[0].Title)
	assert.Equal(t, "middle", tracks[1].Title)
	assert.Equal(t, "oldest", tracks[2].Title)
}

func TestListBreaksCreatedAtTiesByID(t *testing.T) {
	repo := NewSQLiteTrackRepository(newTestDB(t))

	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var ids []int64
	for _, hash := range []string{"h1", "h2", "h3"} {
		track := &model.Track{ContentHash: hash, FilePath: "/" + hash, Title: hash, CreatedAt: when}
		id, err := repo.Create(track)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	got, err := repo.ListIDs(ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, []int64{ids[2], ids[1], ids[0]}, got)
}

func TestListBPMFilterPrefersOverride(t *testing.T) {
	repo := NewSQLiteTrackRepository(newTestDB(t))

	overridden := seedTrack(t, repo, "hash-overridden", "overridden")
	analyze(t, repo, overridden.ID, 128, "8a")
	require.NoError(t, repo.Update(overridden.ID, model.TrackUpdate{BPMOverride: floatPtr(140)}))

	derived := seedTrack(t, repo, "hash-derived", "derived")
	analyze(t, repo, derived.ID, 140, "9a")

	at140, err := repo.List(ListQuery{Filters: []model.Filter{
		{Field: "bpm", Op: model.OpIs, Value: "140"},
	}})
	require.NoError(t, err)
	assert.Len(t, at140, 2)

	// The derived 128 is shadowed by the override.
	at128, err := repo.List(ListQuery{Filters: []model.Filter{
		{Field: "bpm", Op: model.OpIs, Value: "128"},
	}})
	require.NoError(t, err)
	assert.Empty(t, at128)
}

func TestListKeyMatchesFilter(t *testing.T) {
	repo := NewSQLiteTrackRepository(newTestDB(t))

	keys := map[string]string{
		"same":       "8a",
		"modeswitch": "8b",
		"below":      "7a",
		"above":      "9a",
		"unrelated":  "3b",
	}
	for title, key := range keys {
		track := seedTrack(t, repo, "hash-"+title, title)
		analyze(t, repo, track.ID, 120, key)
	}

	tracks, err := repo.List(ListQuery{Filters: []model.Filter{
		{Field: "key", Op: model.OpMatches, Value: "8A"},
	}})
	require.NoError(t, err)

	titles := make(map[string]bool)
	for _, track := range tracks {
		titles[track.Title] = true
	}
	assert.Equal(t, map[string]bool{
		"same": true, "modeswitch": true, "below": true, "above": true,
	}, titles)
}

func TestListGenreMembership(t *testing.T) {
	repo := NewSQLiteTrackRepository(newTestDB(t))

	dub := &model.Track{ContentHash: "h-dub", FilePath: "/h-dub", Title: "dub", Genres: []string{"Dub", "Techno"}}
	_, err := repo.Create(dub)
	require.NoError(t, err)
	house := &model.Track{ContentHash: "h-house", FilePath: "/h-house", Title: "house", Genres: []string{"House"}}
	_, err = repo.Create(house)
	require.NoError(t, err)

	tracks, err := repo.List(ListQuery{Filters: []model.Filter{
		{Field: "genre", Op: model.OpIs, Value: "techno"},
	}})
	require.NoError(t, err)
	require.Len(t, tracks, 1)
	assert.Equal(t, "dub", tracks[0].Title)
}

func TestListSearchCoversTitleArtistAlbum(t *testing.T) {
	repo := NewSQLiteTrackRepository(newTestDB(t))

	byTitle := &model.Track{ContentHash: "h1", FilePath: "/h1", Title: "Midnight Dust"}
	byArtist := &model.Track{ContentHash: "h2", FilePath: "/h2", Title: "Other", Artist: "Dustin Low"}
	miss := &model.Track{ContentHash: "h3", FilePath: "/h3", Title: "Nothing", Artist: "Nobody"}
	for _, track := range []*model.Track{byTitle, byArtist, miss} {
		_, err := repo.Create(track)
		require.NoError(t, err)
	}

	tracks, err := repo.List(ListQuery{Search: "dust"})
	require.NoError(t, err)
	assert.Len(t, tracks, 2)
}

func TestUpdateTypedFields(t *testing.T) {
	repo := NewSQLiteTrackRepository(newTestDB(t))
	track := seedTrack(t, repo, "hash-update", "editable")

	require.NoError(t, repo.Update(track.ID, model.TrackUpdate{
		Rating:      intPtr(4),
		Notes:       strPtr("peak time"),
		BPMOverride: floatPtr(132),
	}))

	got, err := repo.GetByID(track.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Rating)
	assert.Equal(t, "peak time", got.Notes)
	require.NotNil(t, got.BPMOverride)
	assert.Equal(t, 132.0, *got.BPMOverride)

	require.NoError(t, repo.Update(track.ID, model.TrackUpdate{ClearBPMOverride: true}))
	got, err = repo.GetByID(track.ID)
	require.NoError(t, err)
	assert.Nil(t, got.BPMOverride)
	// Untouched fields survive a partial update.
	assert.Equal(t, 4, got.Rating)
}

func TestApplyAndClearAnalysis(t *testing.T) {
	repo := NewSQLiteTrackRepository(newTestDB(t))
	track := seedTrack(t, repo, "hash-analysis", "analyzable")

	res := &model.AnalysisResult{
		BPM:        floatPtr(126.1),
		KeyRaw:     strPtr("A minor"),
		KeyCamelot: strPtr("8A"),
		Lufs:       floatPtr(-9.3),
		IntroSecs:  floatPtr(14.2),
	}
	require.NoError(t, repo.ApplyAnalysis(track.ID, res))

	got, err := repo.GetByID(track.ID)
	require.NoError(t, err)
	assert.True(t, got.Analyzed)
	assert.Equal(t, "8a", got.KeyCamelot)
	require.NotNil(t, got.BPM)
	assert.Equal(t, 126.1, *got.BPM)
	require.NotNil(t, got.Loudness)
	assert.Equal(t, -9.3, *got.Loudness)
	assert.Nil(t, got.OutroSecs)

	require.NoError(t, repo.ClearAnalysis(track.ID))
	got, err = repo.GetByID(track.ID)
	require.NoError(t, err)
	assert.False(t, got.Analyzed)
	assert.Nil(t, got.BPM)
	assert.Empty(t, got.KeyCamelot)
}

func TestListLoudnessAndSetReplayGain(t *testing.T) {
	repo := NewSQLiteTrackRepository(newTestDB(t))

	measured := seedTrack(t, repo, "hash-measured", "measured")
	require.NoError(t, repo.ApplyAnalysis(measured.ID, &model.AnalysisResult{Lufs: floatPtr(-8.0)}))
	seedTrack(t, repo, "hash-silent", "never analyzed")

	rows, err := repo.ListLoudness()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, measured.ID, rows[0].ID)
	assert.Equal(t, -8.0, rows[0].Loudness)

	require.NoError(t, repo.SetReplayGain(measured.ID, -6.0))
	got, err := repo.GetByID(measured.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ReplayGain)
	assert.Equal(t, -6.0, *got.ReplayGain)
}

func TestListScopedToPlaylistOrdersByPosition(t *testing.T) {
	conn := newTestDB(t)
	repo := NewSQLiteTrackRepository(conn)
	playlists := NewSQLitePlaylistRepository(conn, newTestGorm(t, conn))

	first := seedTrack(t, repo, "hash-first", "first")
	second := seedTrack(t, repo, "hash-second", "second")
	third := seedTrack(t, repo, "hash-third", "third")

	playlist, err := playlists.Create("warmup", "#336699")
	require.NoError(t, err)
	_, err = playlists.AddMembers(playlist.ID, []int64{third.ID, first.ID, second.ID})
	require.NoError(t, err)

	tracks, err := repo.List(ListQuery{PlaylistID: playlist.ID})
	require.NoError(t, err)
	require.Len(t, tracks, 3)
	assert.Equal(t, "third", tracks[0].Title)
	assert.Equal(t, "first", tracks[1].Title)
	assert.Equal(t, "second", tracks[2].Title)
}

func TestListPagination(t *testing.T) {
	repo := NewSQLiteTrackRepository(newTestDB(t))

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		track := &model.Track{
			ContentHash: string(rune('a'+i)) + "-hash",
			FilePath:    "/p",
			Title:       "t",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		_, err := repo.Create(track)
		require.NoError(t, err)
	}

	page, err := repo.List(ListQuery{Limit: 2, Offset: 2, Sort: "created_at"})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, base.Add(2*time.Minute).Unix(), page[0].CreatedAt.Unix())
	assert.Equal(t, base.Add(3*time.Minute).Unix(), page[1].CreatedAt.Unix())
}
