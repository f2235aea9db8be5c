package model

// EventType identifies a change-notification topic.
type EventType string

const (
	EventTrackUpdated     EventType = "track:updated"
	EventLibraryUpdated   EventType = "library:updated"
	EventPlaylistsUpdated EventType = "playlists:updated"
)

// Event is a change notification pushed to subscribed consumers after a
// mutating operation affects visible listings.
type Event struct {
	Type       EventType `json:"type"`
	TrackIDs   []int64   `json:"trackIds,omitempty"`
	PlaylistID int64     `json:"playlistId,omitempty"`
}
