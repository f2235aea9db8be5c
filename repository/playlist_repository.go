package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cuebase/logger"
	"cuebase/model"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned by mutations targeting a missing playlist.
	ErrNotFound = errors.New("playlist not found")
	// ErrOrderMismatch is returned when a reorder list is not exactly the
	// current membership set. The caller is operating on a stale view.
	ErrOrderMismatch = errors.New("reorder list does not match current playlist membership")
)

// PlaylistRepository maintains playlists and their ordered membership.
// Every multi-row mutation runs in one transaction; after any of them
// completes, positions within a playlist are exactly 0..N-1.
type PlaylistRepository interface {
	Create(name, color string) (*model.Playlist, error)
	GetByID(id int64) (*model.Playlist, error)
	ListAll() ([]*model.Playlist, error)
	Rename(id int64, name string) error
	Recolor(id int64, color string) error
	Delete(id int64) error

	AddMembers(playlistID int64, trackIDs []int64) (int, error)
	RemoveMember(playlistID, trackID int64) error
	Reorder(playlistID int64, orderedTrackIDs []int64) error
	Members(playlistID int64) ([]model.PlaylistMembership, error)
	MembersForTrack(trackID int64) ([]model.PlaylistFlag, error)
}

// sqlitePlaylistRepository implements PlaylistRepository. Playlist CRUD goes
// through GORM; the position-sensitive membership mutations stay on raw SQL
// transactions over the same connection.
type sqlitePlaylistRepository struct {
	DB   *sql.DB
	Gorm *gorm.DB
}

// NewSQLitePlaylistRepository creates a new instance of sqlitePlaylistRepository.
func NewSQLitePlaylistRepository(conn *sql.DB, gdb *gorm.DB) PlaylistRepository {
	return &sqlitePlaylistRepository{DB: conn, Gorm: gdb}
}

// Create adds a new, empty playlist.
func (r *sqlitePlaylistRepository) Create(name, color string) (*model.Playlist, error) {
	playlist := &model.Playlist{Name: name, Color: color}
	if err := r.Gorm.Create(playlist).Error; err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}
	logger.Debug("Playlist created", logger.Int64("playlistId", playlist.ID), logger.String("name", name))
	return playlist, nil
}

// GetByID retrieves one playlist with its derived track count and total
// duration. Returns (nil, nil) when not found.
func (r *sqlitePlaylistRepository) GetByID(id int64) (*model.Playlist, error) {
	row := r.DB.QueryRow(playlistSummaryQuery+` WHERE p.id = ? GROUP BY p.id`, id)
	playlist, err := scanPlaylistSummary(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return playlist, nil
}

const playlistSummaryQuery = `
	SELECT p.id, p.name, p.color, p.created_at,
		COUNT(pt.track_id), COALESCE(SUM(t.duration), 0)
	FROM playlists p
	LEFT JOIN playlist_tracks pt ON pt.playlist_id = p.id
	LEFT JOIN tracks t ON t.id = pt.track_id`

// ListAll returns every playlist with derived counts, oldest first.
func (r *sqlitePlaylistRepository) ListAll() ([]*model.Playlist, error) {
	rows, err := r.DB.Query(playlistSummaryQuery + ` GROUP BY p.id ORDER BY p.created_at, p.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	playlists := make([]*model.Playlist, 0)
	for rows.Next() {
		playlist, err := scanPlaylistSummary(rows)
		if err != nil {
			return nil, err
		}
		playlists = append(playlists, playlist)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in ListAll: %w", err)
	}
	return playlists, nil
}

func scanPlaylistSummary(s rowScanner) (*model.Playlist, error) {
	playlist := &model.Playlist{}
	err := s.Scan(&playlist.ID, &playlist.Name, &playlist.Color, &playlist.CreatedAt,
		&playlist.TrackCount, &playlist.TotalDuration)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}
	return playlist, nil
}

// Rename changes the display name.
func (r *sqlitePlaylistRepository) Rename(id int64, name string) error {
	return r.updateColumn(id, "name", name)
}

// Recolor changes the color tag.
func (r *sqlitePlaylistRepository) Recolor(id int64, color string) error {
	return r.updateColumn(id, "color", color)
}

func (r *sqlitePlaylistRepository) updateColumn(id int64, column string, value string) error {
	res := r.Gorm.Model(&model.Playlist{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return fmt.Errorf("failed to update playlist %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a playlist; the membership rows cascade away with it.
func (r *sqlitePlaylistRepository) Delete(id int64) error {
	res := r.Gorm.Delete(&model.Playlist{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete playlist %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddMembers appends tracks at the end of the playlist in the given order.
// Tracks that are already members are skipped, so re-adding is a no-op.
// Returns the number of rows actually added.
func (r *sqlitePlaylistRepository) AddMembers(playlistID int64, trackIDs []int64) (int, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin AddMembers transaction: %w", err)
	}
	defer tx.Rollback()

	if err := playlistExists(tx, playlistID); err != nil {
		return 0, err
	}

	existing, err := memberSet(tx, playlistID)
	if err != nil {
		return 0, err
	}

	next := len(existing)
	added := 0
	now := time.Now().UTC()
	for _, trackID := range trackIDs {
		if existing[trackID] {
			continue
		}
		_, err := tx.Exec(
			`INSERT INTO playlist_tracks (playlist_id, track_id, position, date_added) VALUES (?, ?, ?, ?)`,
			playlistID, trackID, next, now)
		if err != nil {
			return 0, fmt.Errorf("failed to add track %d to playlist %d: %w", trackID, playlistID, err)
		}
		existing[trackID] = true
		next++
		added++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit AddMembers: %w", err)
	}
	return added, nil
}

// RemoveMember deletes one membership row and compacts every higher position
// downward by one in the same transaction. Removing a non-member is a no-op.
func (r *sqlitePlaylistRepository) RemoveMember(playlistID, trackID int64) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin RemoveMember transaction: %w", err)
	}
	defer tx.Rollback()

	var position int
	err = tx.QueryRow(
		`SELECT position FROM playlist_tracks WHERE playlist_id = ? AND track_id = ?`,
		playlistID, trackID).Scan(&position)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up membership (%d, %d): %w", playlistID, trackID, err)
	}

	if _, err := tx.Exec(
		`DELETE FROM playlist_tracks WHERE playlist_id = ? AND track_id = ?`,
		playlistID, trackID); err != nil {
		return fmt.Errorf("failed to remove track %d from playlist %d: %w", trackID, playlistID, err)
	}

	if _, err := tx.Exec(
		`UPDATE playlist_tracks SET position = position - 1 WHERE playlist_id = ? AND position > ?`,
		playlistID, position); err != nil {
		return fmt.Errorf("failed to compact positions in playlist %d: %w", playlistID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit RemoveMember: %w", err)
	}
	return nil
}

// Reorder rewrites every member's position to its index in the given list.
// The list must be exactly the current membership set; anything else means
// the caller reordered a stale view and is rejected before any write.
func (r *sqlitePlaylistRepository) Reorder(playlistID int64, orderedTrackIDs []int64) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin Reorder transaction: %w", err)
	}
	defer tx.Rollback()

	if err := playlistExists(tx, playlistID); err != nil {
		return err
	}

	existing, err := memberSet(tx, playlistID)
	if err != nil {
		return err
	}

	if len(orderedTrackIDs) != len(existing) {
		return ErrOrderMismatch
	}
	seen := make(map[int64]bool, len(orderedTrackIDs))
	for _, trackID := range orderedTrackIDs {
		if !existing[trackID] || seen[trackID] {
			return ErrOrderMismatch
		}
		seen[trackID] = true
	}

	for idx, trackID := range orderedTrackIDs {
		if _, err := tx.Exec(
			`UPDATE playlist_tracks SET position = ? WHERE playlist_id = ? AND track_id = ?`,
			idx, playlistID, trackID); err != nil {
			return fmt.Errorf("failed to reposition track %d in playlist %d: %w", trackID, playlistID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit Reorder: %w", err)
	}
	return nil
}

// Members returns the membership rows of one playlist, ordered by position.
func (r *sqlitePlaylistRepository) Members(playlistID int64) ([]model.PlaylistMembership, error) {
	rows, err := r.DB.Query(
		`SELECT playlist_id, track_id, position, date_added
		 FROM playlist_tracks WHERE playlist_id = ? ORDER BY position`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query members of playlist %d: %w", playlistID, err)
	}
	defer rows.Close()

	members := make([]model.PlaylistMembership, 0)
	for rows.Next() {
		var m model.PlaylistMembership
		if err := rows.Scan(&m.PlaylistID, &m.TrackID, &m.Position, &m.DateAdded); err != nil {
			return nil, fmt.Errorf("failed to scan membership row: %w", err)
		}
		members = append(members, m)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in Members: %w", err)
	}
	return members, nil
}

// MembersForTrack reports, for every playlist, whether the track is a member.
// One query, no N+1.
func (r *sqlitePlaylistRepository) MembersForTrack(trackID int64) ([]model.PlaylistFlag, error) {
	rows, err := r.DB.Query(`
		SELECT p.id, p.name, pt.track_id IS NOT NULL
		FROM playlists p
		LEFT JOIN playlist_tracks pt ON pt.playlist_id = p.id AND pt.track_id = ?
		ORDER BY p.created_at, p.id`, trackID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists for track %d: %w", trackID, err)
	}
	defer rows.Close()

	flags := make([]model.PlaylistFlag, 0)
	for rows.Next() {
		var f model.PlaylistFlag
		if err := rows.Scan(&f.PlaylistID, &f.Name, &f.IsMember); err != nil {
			return nil, fmt.Errorf("failed to scan playlist flag: %w", err)
		}
		flags = append(flags, f)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in MembersForTrack: %w", err)
	}
	return flags, nil
}

func playlistExists(tx *sql.Tx, playlistID int64) error {
	var one int
	err := tx.QueryRow(`SELECT 1 FROM playlists WHERE id = ?`, playlistID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check playlist %d: %w", playlistID, err)
	}
	return nil
}

func memberSet(tx *sql.Tx, playlistID int64) (map[int64]bool, error) {
	rows, err := tx.Query(`SELECT track_id FROM playlist_tracks WHERE playlist_id = ?`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query membership of playlist %d: %w", playlistID, err)
	}
	defer rows.Close()

	set := make(map[int64]bool)
	for rows.Next() {
		var trackID int64
		if err := rows.Scan(&trackID); err != nil {
			return nil, fmt.Errorf("failed to scan member track id: %w", err)
		}
		set[trackID] = true
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration in memberSet: %w", err)
	}
	return set, nil
}
