package model

import "time"

// Playlist is a named, user-ordered collection of tracks.
type Playlist struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"not null"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime"`

	// Derived at read time, never stored.
	TrackCount    int     `json:"trackCount" gorm:"-"`
	TotalDuration float64 `json:"totalDuration" gorm:"-"`
}

// TableName maps Playlist onto the table created by db.InitDB.
func (Playlist) TableName() string { return "playlists" }

// PlaylistMembership joins a playlist and a track at a position.
// Within one playlist positions are exactly 0..N-1, gap-free.
type PlaylistMembership struct {
	PlaylistID int64     `json:"playlistId"`
	TrackID    int64     `json:"trackId"`
	Position   int       `json:"position"`
	DateAdded  time.Time `json:"dateAdded"`
}

// PlaylistFlag reports, for one track, whether it is a member of a playlist.
// Used to render "add to playlist" checkbox state in one query.
type PlaylistFlag struct {
	PlaylistID int64  `json:"playlistId"`
	Name       string `json:"name"`
	IsMember   bool   `json:"isMember"`
}

// Setting is one row of the key-value settings table.
type Setting struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value string `gorm:"column:value"`
}

// TableName maps Setting onto the table created by db.InitDB.
func (Setting) TableName() string { return "settings" }
