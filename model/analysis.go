package model

// AnalysisResult is the JSON contract of the external analysis engine.
// Nil fields mean "not determined", never zero. The engine either prints this
// object on stdout, or reports failure via Success=false / a non-zero exit.
type AnalysisResult struct {
	BPM        *float64 `json:"bpm"`
	KeyRaw     *string  `json:"key_raw"`
	KeyCamelot *string  `json:"key_camelot"`
	Lufs       *float64 `json:"lufs"`
	ReplayGain *float64 `json:"replay_gain"`
	IntroSecs  *float64 `json:"intro_secs"`
	OutroSecs  *float64 `json:"outro_secs"`

	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Failed reports whether the engine marked this result as an error.
func (r *AnalysisResult) Failed() bool {
	return (r.Success != nil && !*r.Success) || r.Error != ""
}

// TrackMeta is the output of the metadata probe collaborator: container
// format, stream properties and embedded tags for one file.
type TrackMeta struct {
	Format   string
	Duration float64 // Seconds
	Bitrate  int     // kbit/s

	Title  string
	Artist string
	Album  string
	Year   int
	Label  string
	Genres []string
}
