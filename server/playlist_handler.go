package server

import (
	"errors"
	"net/http"
	"strings"

	"cuebase/model"
	"cuebase/repository"
)

// ListPlaylistsHandler returns all playlists with their derived stats.
func (h *APIHandler) ListPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	playlists, err := h.library.Playlists()
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list playlists")
		return
	}
	if playlists == nil {
		playlists = []*model.Playlist{}
	}
	respondWithJSON(w, http.StatusOK, playlists)
}

// CreatePlaylistHandler creates an empty playlist.
func (h *APIHandler) CreatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "name must not be empty")
		return
	}

	playlist, err := h.library.CreatePlaylist(req.Name, req.Color)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to create playlist")
		return
	}
	respondWithJSON(w, http.StatusCreated, playlist)
}

// UpdatePlaylistHandler renames and/or recolors a playlist.
func (h *APIHandler) UpdatePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid playlist id")
		return
	}

	var req struct {
		Name  *string `json:"name"`
		Color *string `json:"color"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name == nil && req.Color == nil {
		respondWithError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			respondWithError(w, http.StatusBadRequest, "name must not be empty")
			return
		}
		if err := h.library.RenamePlaylist(id, name); err != nil {
			respondPlaylistError(w, err, "failed to rename playlist")
			return
		}
	}
	if req.Color != nil {
		if err := h.library.RecolorPlaylist(id, *req.Color); err != nil {
			respondPlaylistError(w, err, "failed to recolor playlist")
			return
		}
	}

	playlist, err := h.library.GetPlaylist(id)
	if err != nil || playlist == nil {
		respondWithError(w, http.StatusInternalServerError, "failed to load playlist")
		return
	}
	respondWithJSON(w, http.StatusOK, playlist)
}

// DeletePlaylistHandler deletes a playlist; member tracks stay in the library.
func (h *APIHandler) DeletePlaylistHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid playlist id")
		return
	}

	if err := h.library.DeletePlaylist(id); err != nil {
		respondPlaylistError(w, err, "failed to delete playlist")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// PlaylistTracksHandler returns the playlist's tracks in stored order (or a
// caller-chosen sort via the shared listing parameters).
func (h *APIHandler) PlaylistTracksHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid playlist id")
		return
	}

	if playlist, err := h.library.GetPlaylist(id); err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to load playlist")
		return
	} else if playlist == nil {
		respondWithError(w, http.StatusNotFound, "playlist not found")
		return
	}

	q, err := parseListQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	q.PlaylistID = id

	tracks, err := h.library.GetTracks(r.Context(), q)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list playlist tracks")
		return
	}
	if tracks == nil {
		tracks = []*model.Track{}
	}
	respondWithJSON(w, http.StatusOK, tracks)
}

// AddPlaylistTracksHandler appends tracks to the playlist. Tracks already in
// it are skipped; the response reports how many were actually added.
func (h *APIHandler) AddPlaylistTracksHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid playlist id")
		return
	}

	var req struct {
		TrackIDs []int64 `json:"trackIds"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.TrackIDs) == 0 {
		respondWithError(w, http.StatusBadRequest, "trackIds must not be empty")
		return
	}

	added, err := h.library.AddToPlaylist(id, req.TrackIDs)
	if err != nil {
		respondPlaylistError(w, err, "failed to add tracks to playlist")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"added": added})
}

// RemovePlaylistTrackHandler removes one track; later positions close up.
func (h *APIHandler) RemovePlaylistTrackHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid playlist id")
		return
	}
	trackID, ok := pathID(r, "trackId")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid track id")
		return
	}

	if err := h.library.RemoveFromPlaylist(id, trackID); err != nil {
		respondPlaylistError(w, err, "failed to remove track from playlist")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// ReorderPlaylistHandler replaces the playlist order wholesale. The submitted
// ids must be exactly the current membership or nothing changes.
func (h *APIHandler) ReorderPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid playlist id")
		return
	}

	var req struct {
		TrackIDs []int64 `json:"trackIds"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.library.ReorderPlaylist(id, req.TrackIDs); err != nil {
		if errors.Is(err, repository.ErrOrderMismatch) {
			respondWithError(w, http.StatusConflict, "submitted order does not match current membership")
			return
		}
		respondPlaylistError(w, err, "failed to reorder playlist")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "reordered"})
}

func respondPlaylistError(w http.ResponseWriter, err error, fallback string) {
	if errors.Is(err, repository.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "playlist not found")
		return
	}
	respondWithError(w, http.StatusInternalServerError, fallback)
}
