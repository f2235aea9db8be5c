package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cuebase/core/filter"
	"cuebase/logger"
	"cuebase/model"

	"github.com/mattn/go-sqlite3"
)

// ListQuery describes one paginated, filtered track listing.
type ListQuery struct {
	Limit   int
	Offset  int
	Search  string
	Filters []model.Filter
	// PlaylistID restricts results to that playlist's membership and orders
	// by position unless Sort overrides it. Zero means the whole library.
	PlaylistID int64
	Sort       string // see filter.SortExpr; "" uses the default order
	Desc       bool
}

// TrackRepository defines the interface for track data operations.
type TrackRepository interface {
	Create(track *model.Track) (int64, error)
	GetByID(id int64) (*model.Track, error)
	GetByHash(hash string) (*model.Track, error)
	List(q ListQuery) ([]*model.Track, error)
	ListIDs(q ListQuery) ([]int64, error)
	Update(id int64, u model.TrackUpdate) error
	ApplyAnalysis(id int64, res *model.AnalysisResult) error
	ClearAnalysis(id int64) error
	ListLoudness() ([]TrackLoudness, error)
	SetReplayGain(id int64, gain float64) error
	Delete(id int64) error
}

// TrackLoudness is the minimal row used by the normalization pass.
type TrackLoudness struct {
	ID       int64
	Loudness float64
}

// sqliteTrackRepository implements TrackRepository for SQLite.
type sqliteTrackRepository struct {
	DB *sql.DB
}

// NewSQLiteTrackRepository creates a new instance of sqliteTrackRepository.
func NewSQLiteTrackRepository(conn *sql.DB) TrackRepository {
	return &sqliteTrackRepository{DB: conn}
}

// IsUniqueConstraint reports whether err is a SQLite uniqueness violation.
// The ingest path uses it to resolve two imports racing on the same hash:
// the loser falls back to a lookup instead of failing.
func IsUniqueConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

var trackCols = []string{
	"id", "content_hash", "file_path", "format", "bitrate", "duration",
	"title", "artist", "album", "year", "label", "genres",
	"bpm", "bpm_override", "key_raw", "key_camelot", "loudness", "replay_gain", "intro_secs", "outro_secs",
	"rating", "notes", "analyzed", "created_at",
}

var trackColumns = strings.Join(trackCols, ", ")

func prefixedTrackColumns(prefix string) string {
	cols := make([]string, len(trackCols))
	for i, c := range trackCols {
		cols[i] = prefix + c
	}
	return strings.Join(cols, ", ")
}

// Create adds a new track row. The caller copies the file into the content
// store first; a row never references an incomplete file.
func (r *sqliteTrackRepository) Create(track *model.Track) (int64, error) {
	genres, err := marshalGenres(track.Genres)
	if err != nil {
		return 0, err
	}

	query := `INSERT INTO tracks (content_hash, file_path, format, bitrate, duration,
		title, artist, album, year, label, genres, rating, notes, analyzed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	stmt, err := r.DB.Prepare(query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement for Create: %w", err)
	}
	defer stmt.Close()

	if track.CreatedAt.IsZero() {
		track.CreatedAt = time.Now().UTC()
	}
	res, err := stmt.Exec(track.ContentHash, track.FilePath, track.Format, track.Bitrate, track.Duration,
		track.Title, track.Artist, track.Album, track.Year, track.Label, genres,
		track.Rating, track.Notes, track.Analyzed, track.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to execute Create: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for Create: %w", err)
	}
	track.ID = id
	logger.Debug("Track created", logger.Int64("trackId", id), logger.String("title", track.Title))
	return id, nil
}

// GetByID retrieves a track by its ID. Returns (nil, nil) when not found.
func (r *sqliteTrackRepository) GetByID(id int64) (*model.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ?`
	return r.scanOne(r.DB.QueryRow(query, id))
}

// GetByHash retrieves a track by content hash. Returns (nil, nil) when not found.
func (r *sqliteTrackRepository) GetByHash(hash string) (*model.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE content_hash = ?`
	return r.scanOne(r.DB.QueryRow(query, hash))
}

// List returns one page of tracks matching the query. Identical inputs
// against an unchanged data set return identical, stably-ordered output:
// every ordering ends with the id as tiebreak.
func (r *sqliteTrackRepository) List(q ListQuery) ([]*model.Track, error) {
	sqlText, args := buildListQuery(prefixedTrackColumns("t."), q)

	if q.Limit > 0 {
		sqlText += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	}

	rows, err := r.DB.Query(sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	tracks := make([]*model.Track, 0)
	for rows.Next() {
		track, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in List: %w", err)
	}
	return tracks, nil
}

// ListIDs returns every matching track id, unpaginated, in the same order
// List would produce. Used for select-all-matching semantics.
func (r *sqliteTrackRepository) ListIDs(q ListQuery) ([]int64, error) {
	sqlText, args := buildListQuery("t.id", q)

	rows, err := r.DB.Query(sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query track ids: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan track id: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in ListIDs: %w", err)
	}
	return ids, nil
}

func buildListQuery(selectCols string, q ListQuery) (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}

	sb.WriteString("SELECT " + selectCols + " FROM tracks t")
	if q.PlaylistID > 0 {
		sb.WriteString(" JOIN playlist_tracks pt ON pt.track_id = t.id AND pt.playlist_id = ?")
		args = append(args, q.PlaylistID)
	}

	conds, condArgs := filter.Compile(q.Filters)
	if q.Search != "" {
		cond, searchArgs := filter.Search(q.Search)
		conds = append(conds, cond)
		condArgs = append(condArgs, searchArgs...)
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
		args = append(args, condArgs...)
	}

	sb.WriteString(" ORDER BY " + orderClause(q))
	return sb.String(), args
}

func orderClause(q ListQuery) string {
	if expr, ok := filter.SortExpr(q.Sort); ok {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		return fmt.Sprintf("%s %s, t.id %s", expr, dir, dir)
	}
	if q.PlaylistID > 0 {
		return "pt.position ASC"
	}
	// Default: reverse-chronological ingestion order.
	return "t.created_at DESC, t.id DESC"
}

// Update applies a typed field update. Unknown fields cannot reach this path:
// TrackUpdate enumerates the updatable columns.
func (r *sqliteTrackRepository) Update(id int64, u model.TrackUpdate) error {
	if u.IsZero() {
		return nil
	}

	var sets []string
	var args []interface{}

	if u.Rating != nil {
		sets = append(sets, "rating = ?")
		args = append(args, *u.Rating)
	}
	if u.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *u.Notes)
	}
	if u.ClearBPMOverride {
		sets = append(sets, "bpm_override = NULL")
	} else if u.BPMOverride != nil {
		sets = append(sets, "bpm_override = ?")
		args = append(args, *u.BPMOverride)
	}

	args = append(args, id)
	query := "UPDATE tracks SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if _, err := r.DB.Exec(query, args...); err != nil {
		return fmt.Errorf("failed to update track %d: %w", id, err)
	}
	return nil
}

// ApplyAnalysis merges a successful analysis result into the row and marks it
// analyzed. The update is a single statement: readers see either the old row
// or the fully merged one, never a partial apply.
func (r *sqliteTrackRepository) ApplyAnalysis(id int64, res *model.AnalysisResult) error {
	keyRaw := ""
	if res.KeyRaw != nil {
		keyRaw = *res.KeyRaw
	}
	keyCamelot := ""
	if res.KeyCamelot != nil {
		keyCamelot = strings.ToLower(strings.TrimSpace(*res.KeyCamelot))
	}

	query := `UPDATE tracks SET bpm = ?, key_raw = ?, key_camelot = ?, loudness = ?,
		replay_gain = ?, intro_secs = ?, outro_secs = ?, analyzed = 1 WHERE id = ?`
	_, err := r.DB.Exec(query,
		res.BPM, keyRaw, keyCamelot, res.Lufs,
		res.ReplayGain, res.IntroSecs, res.OutroSecs, id)
	if err != nil {
		return fmt.Errorf("failed to apply analysis for track %d: %w", id, err)
	}
	return nil
}

// ClearAnalysis nulls the analysis columns and leaves the track unanalyzed.
// Used when a job fails so the row is never left with poisoned partial data.
func (r *sqliteTrackRepository) ClearAnalysis(id int64) error {
	query := `UPDATE tracks SET bpm = NULL, key_raw = '', key_camelot = '', loudness = NULL,
		replay_gain = NULL, intro_secs = NULL, outro_secs = NULL, analyzed = 0 WHERE id = ?`
	if _, err := r.DB.Exec(query, id); err != nil {
		return fmt.Errorf("failed to clear analysis for track %d: %w", id, err)
	}
	return nil
}

// ListLoudness returns every track that has a measured loudness. Tracks
// without one are not part of the normalization pass.
func (r *sqliteTrackRepository) ListLoudness() ([]TrackLoudness, error) {
	rows, err := r.DB.Query(`SELECT id, loudness FROM tracks WHERE loudness IS NOT NULL ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query loudness rows: %w", err)
	}
	defer rows.Close()

	out := make([]TrackLoudness, 0)
	for rows.Next() {
		var tl TrackLoudness
		if err := rows.Scan(&tl.ID, &tl.Loudness); err != nil {
			return nil, fmt.Errorf("failed to scan loudness row: %w", err)
		}
		out = append(out, tl)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in ListLoudness: %w", err)
	}
	return out, nil
}

// SetReplayGain persists the computed gain for one track.
func (r *sqliteTrackRepository) SetReplayGain(id int64, gain float64) error {
	if _, err := r.DB.Exec(`UPDATE tracks SET replay_gain = ? WHERE id = ?`, gain, id); err != nil {
		return fmt.Errorf("failed to set replay gain for track %d: %w", id, err)
	}
	return nil
}

// Delete removes a track; membership rows cascade.
func (r *sqliteTrackRepository) Delete(id int64) error {
	if _, err := r.DB.Exec(`DELETE FROM tracks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete track %d: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *sqliteTrackRepository) scanOne(row *sql.Row) (*model.Track, error) {
	track, err := scanTrack(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Track not found
		}
		return nil, err
	}
	return track, nil
}

func scanTrack(s rowScanner) (*model.Track, error) {
	track := &model.Track{}
	var genres string
	var bpm, bpmOverride, loudness, replayGain, intro, outro sql.NullFloat64

	err := s.Scan(&track.ID, &track.ContentHash, &track.FilePath, &track.Format, &track.Bitrate, &track.Duration,
		&track.Title, &track.Artist, &track.Album, &track.Year, &track.Label, &genres,
		&bpm, &bpmOverride, &track.KeyRaw, &track.KeyCamelot, &loudness, &replayGain, &intro, &outro,
		&track.Rating, &track.Notes, &track.Analyzed, &track.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	if err := json.Unmarshal([]byte(genres), &track.Genres); err != nil {
		return nil, fmt.Errorf("failed to decode genres for track %d: %w", track.ID, err)
	}
	track.BPM = nullableFloat(bpm)
	track.BPMOverride = nullableFloat(bpmOverride)
	track.Loudness = nullableFloat(loudness)
	track.ReplayGain = nullableFloat(replayGain)
	track.IntroSecs = nullableFloat(intro)
	track.OutroSecs = nullableFloat(outro)
	return track, nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func marshalGenres(genres []string) (string, error) {
	if genres == nil {
		genres = []string{}
	}
	b, err := json.Marshal(genres)
	if err != nil {
		return "", fmt.Errorf("failed to encode genres: %w", err)
	}
	return string(b), nil
}
