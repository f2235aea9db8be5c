package library

import (
	"cuebase/model"
)

// Playlist operations delegate to the ordering store and publish change
// notifications on every mutation.

func (s *Service) Playlists() ([]*model.Playlist, error) {
	return s.playlists.ListAll()
}

func (s *Service) GetPlaylist(id int64) (*model.Playlist, error) {
	return s.playlists.GetByID(id)
}

func (s *Service) CreatePlaylist(name, color string) (*model.Playlist, error) {
	playlist, err := s.playlists.Create(name, color)
	if err != nil {
		return nil, err
	}
	s.publish(model.Event{Type: model.EventPlaylistsUpdated, PlaylistID: playlist.ID})
	return playlist, nil
}

func (s *Service) RenamePlaylist(id int64, name string) error {
	if err := s.playlists.Rename(id, name); err != nil {
		return err
	}
	s.publish(model.Event{Type: model.EventPlaylistsUpdated, PlaylistID: id})
	return nil
}

func (s *Service) RecolorPlaylist(id int64, color string) error {
	if err := s.playlists.Recolor(id, color); err != nil {
		return err
	}
	s.publish(model.Event{Type: model.EventPlaylistsUpdated, PlaylistID: id})
	return nil
}

func (s *Service) DeletePlaylist(id int64) error {
	if err := s.playlists.Delete(id); err != nil {
		return err
	}
	s.publish(model.Event{Type: model.EventPlaylistsUpdated, PlaylistID: id})
	return nil
}

// AddToPlaylist appends tracks, skipping existing members.
func (s *Service) AddToPlaylist(playlistID int64, trackIDs []int64) (int, error) {
	added, err := s.playlists.AddMembers(playlistID, trackIDs)
	if err != nil {
		return 0, err
	}
	if added > 0 {
		s.publish(model.Event{Type: model.EventPlaylistsUpdated, PlaylistID: playlistID})
	}
	return added, nil
}

func (s *Service) RemoveFromPlaylist(playlistID, trackID int64) error {
	if err := s.playlists.RemoveMember(playlistID, trackID); err != nil {
		return err
	}
	s.publish(model.Event{Type: model.EventPlaylistsUpdated, PlaylistID: playlistID})
	return nil
}

// ReorderPlaylist rewrites the full order; the id list must be exactly the
// current membership (see repository.ErrOrderMismatch).
func (s *Service) ReorderPlaylist(playlistID int64, orderedTrackIDs []int64) error {
	if err := s.playlists.Reorder(playlistID, orderedTrackIDs); err != nil {
		return err
	}
	s.publish(model.Event{Type: model.EventPlaylistsUpdated, PlaylistID: playlistID})
	return nil
}

func (s *Service) PlaylistMembers(playlistID int64) ([]model.PlaylistMembership, error) {
	return s.playlists.Members(playlistID)
}

// PlaylistsForTrack drives "add to playlist" checkbox state.
func (s *Service) PlaylistsForTrack(trackID int64) ([]model.PlaylistFlag, error) {
	return s.playlists.MembersForTrack(trackID)
}
