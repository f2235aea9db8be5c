package model

import "time"

// Track represents one physical audio file under management.
type Track struct {
	ID          int64   `json:"id"`
	ContentHash string  `json:"contentHash"`
	FilePath    string  `json:"-"` // Path inside the content store, not exposed in API directly
	Format      string  `json:"format"`
	Bitrate     int     `json:"bitrate"`  // kbit/s
	Duration    float64 `json:"duration"` // Seconds

	Title  string   `json:"title"`
	Artist string   `json:"artist"`
	Album  string   `json:"album"`
	Year   int      `json:"year"`
	Label  string   `json:"label"`
	Genres []string `json:"genres"`

	// Derived musical attributes. Nil means not determined.
	BPM         *float64 `json:"bpm"`
	BPMOverride *float64 `json:"bpmOverride"` // Always wins over BPM when set
	KeyRaw      string   `json:"keyRaw"`
	KeyCamelot  string   `json:"keyCamelot"` // Lower-cased "<1-12><a|b>"
	Loudness    *float64 `json:"loudness"`   // Integrated LUFS
	ReplayGain  *float64 `json:"replayGain"` // dB offset toward the normalization target
	IntroSecs   *float64 `json:"introSecs"`
	OutroSecs   *float64 `json:"outroSecs"`

	Rating int    `json:"rating"` // 0-5 stars
	Notes  string `json:"notes"`

	Analyzed  bool      `json:"analyzed"`
	CreatedAt time.Time `json:"createdAt"`
}

// EffectiveBPM returns the override when present, otherwise the derived BPM.
func (t *Track) EffectiveBPM() *float64 {
	if t.BPMOverride != nil {
		return t.BPMOverride
	}
	return t.BPM
}

// TrackUpdate is the set of caller-updatable track columns. Nil fields are
// left unchanged; ClearBPMOverride removes the override regardless of
// BPMOverride.
type TrackUpdate struct {
	Rating           *int
	Notes            *string
	BPMOverride      *float64
	ClearBPMOverride bool
}

// IsZero reports whether the update would change nothing.
func (u TrackUpdate) IsZero() bool {
	return u.Rating == nil && u.Notes == nil && u.BPMOverride == nil && !u.ClearBPMOverride
}
