package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"cuebase/core/library"
	"cuebase/model"
	"cuebase/repository"
)

// parseListQuery builds a ListQuery from the shared listing query parameters.
func parseListQuery(r *http.Request) (repository.ListQuery, error) {
	q := repository.ListQuery{}
	values := r.URL.Query()

	if v := values.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return q, errors.New("invalid limit")
		}
		q.Limit = limit
	}
	if v := values.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return q, errors.New("invalid offset")
		}
		q.Offset = offset
	}
	if v := values.Get("playlistId"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			return q, errors.New("invalid playlistId")
		}
		q.PlaylistID = id
	}
	if v := values.Get("filters"); v != "" {
		if err := json.Unmarshal([]byte(v), &q.Filters); err != nil {
			return q, errors.New("filters must be a JSON array")
		}
	}
	q.Search = values.Get("search")
	q.Sort = values.Get("sort")
	q.Desc = values.Get("dir") == "desc"
	return q, nil
}

// GetTracksHandler returns one page of the filtered library.
func (h *APIHandler) GetTracksHandler(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	tracks, err := h.library.GetTracks(r.Context(), q)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list tracks")
		return
	}
	if tracks == nil {
		tracks = []*model.Track{}
	}
	respondWithJSON(w, http.StatusOK, tracks)
}

// GetTrackIDsHandler returns every matching track id, ignoring pagination.
// The UI uses it for select-all over a filtered view.
func (h *APIHandler) GetTrackIDsHandler(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ids, err := h.library.GetTrackIDs(r.Context(), q)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list track ids")
		return
	}
	if ids == nil {
		ids = []int64{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"trackIds": ids})
}

// ImportTracksHandler ingests a batch of files by path. Per-file failures are
// reported in the result list, never as a whole-request error.
func (h *APIHandler) ImportTracksHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paths []string `json:"paths"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Paths) == 0 {
		respondWithError(w, http.StatusBadRequest, "paths must not be empty")
		return
	}
	respondWithJSON(w, http.StatusOK, h.ingest.ImportBatch(req.Paths))
}

// UpdateTrackHandler applies a partial edit. bpmOverride distinguishes
// "absent" (leave alone) from JSON null (clear the override).
func (h *APIHandler) UpdateTrackHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid track id")
		return
	}

	var req struct {
		Rating      *int            `json:"rating"`
		Notes       *string         `json:"notes"`
		BPMOverride json.RawMessage `json:"bpmOverride"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	update := model.TrackUpdate{Rating: req.Rating, Notes: req.Notes}
	if len(req.BPMOverride) > 0 {
		if string(req.BPMOverride) == "null" {
			update.ClearBPMOverride = true
		} else {
			var bpm float64
			if err := json.Unmarshal(req.BPMOverride, &bpm); err != nil || bpm <= 0 {
				respondWithError(w, http.StatusBadRequest, "bpmOverride must be a positive number or null")
				return
			}
			update.BPMOverride = &bpm
		}
	}
	if req.Rating != nil && (*req.Rating < 0 || *req.Rating > 5) {
		respondWithError(w, http.StatusBadRequest, "rating must be between 0 and 5")
		return
	}
	if update.IsZero() {
		respondWithError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	track, err := h.library.UpdateTrack(id, update)
	if err != nil {
		if errors.Is(err, library.ErrTrackNotFound) {
			respondWithError(w, http.StatusNotFound, "track not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to update track")
		return
	}
	respondWithJSON(w, http.StatusOK, track)
}

// ReanalyzeTrackHandler queues a fresh analysis run for the track.
func (h *APIHandler) ReanalyzeTrackHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid track id")
		return
	}

	if err := h.library.Reanalyze(id); err != nil {
		if errors.Is(err, library.ErrTrackNotFound) {
			respondWithError(w, http.StatusNotFound, "track not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to queue analysis")
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// TrackPlaylistsHandler returns every playlist with a membership flag for the
// track, driving the add-to-playlist checkboxes.
func (h *APIHandler) TrackPlaylistsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid track id")
		return
	}

	flags, err := h.library.PlaylistsForTrack(id)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to list playlists for track")
		return
	}
	if flags == nil {
		flags = []model.PlaylistFlag{}
	}
	respondWithJSON(w, http.StatusOK, flags)
}

// AdjustBPMHandler halves or doubles the effective tempo of the given tracks.
func (h *APIHandler) AdjustBPMHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TrackIDs []int64 `json:"trackIds"`
		Factor   float64 `json:"factor"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.TrackIDs) == 0 {
		respondWithError(w, http.StatusBadRequest, "trackIds must not be empty")
		return
	}
	if req.Factor != 2 && req.Factor != 0.5 {
		respondWithError(w, http.StatusBadRequest, "factor must be 2 or 0.5")
		return
	}

	adjusted, err := h.library.AdjustBPM(req.TrackIDs, req.Factor)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to adjust bpm")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"adjusted": adjusted})
}

// NormalizeLibraryHandler runs a loudness normalization pass. With no body
// target, the last-used (or default) target applies.
func (h *APIHandler) NormalizeLibraryHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TargetLufs *float64 `json:"targetLufs"`
	}
	if r.ContentLength > 0 && !decodeBody(w, r, &req) {
		return
	}

	updated, err := h.library.NormalizeLibrary(req.TargetLufs)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "normalization pass failed")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"updated": updated})
}
