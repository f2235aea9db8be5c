// Package probe extracts container metadata and embedded tags from audio
// files on ingest.
package probe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"cuebase/logger"
	"cuebase/model"

	"github.com/dhowden/tag"
	"github.com/h2non/filetype"
)

// Prober is the metadata-probe collaborator: given a file path it returns
// container format, duration, bitrate and the embedded tag map. Failure is
// reported per file.
type Prober interface {
	Probe(path string) (*model.TrackMeta, error)
}

// FileProber reads tags in-process and shells out to ffprobe for the stream
// properties tags cannot provide.
type FileProber struct {
	ffprobePath string
}

// NewFileProber creates a new FileProber.
func NewFileProber(ffprobePath string) *FileProber {
	return &FileProber{ffprobePath: ffprobePath}
}

// Probe returns the metadata for one audio file.
func (p *FileProber) Probe(path string) (*model.TrackMeta, error) {
	meta := &model.TrackMeta{}

	meta.Format = detectFormat(path)

	duration, bitrate, err := p.probeStream(path)
	if err != nil {
		return nil, err
	}
	meta.Duration = duration
	meta.Bitrate = bitrate

	// Missing or broken tags are not fatal: the file is still usable, the
	// title just falls back to the filename.
	if err := readTags(path, meta); err != nil {
		logger.Warn("Could not read tags", logger.String("path", path), logger.ErrorField(err))
	}
	if meta.Title == "" {
		base := filepath.Base(path)
		meta.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return meta, nil
}

// detectFormat sniffs the container from the file header, falling back to the
// extension when the header is not recognized.
func detectFormat(path string) string {
	if kind, err := filetype.MatchFile(path); err == nil && kind.Extension != "unknown" {
		return kind.Extension
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

func readTags(path string, meta *model.TrackMeta) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file for tag reading: %w", err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return fmt.Errorf("failed to read tags: %w", err)
	}

	meta.Title = m.Title()
	meta.Artist = m.Artist()
	meta.Album = m.Album()
	meta.Year = m.Year()
	meta.Genres = splitGenres(m.Genre())
	meta.Label = rawLabel(m)
	return nil
}

// rawLabel digs the record label out of the raw tag map. There is no
// standard accessor for it; the common keys vary by container.
func rawLabel(m tag.Metadata) string {
	raw := m.Raw()
	if raw == nil {
		return ""
	}
	for _, key := range []string{"TPUB", "LABEL", "PUBLISHER", "publisher", "label", "ORGANIZATION"} {
		if val, exists := raw[key]; exists {
			if s, ok := val.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// splitGenres turns the single genre tag into the stored genre list.
func splitGenres(genre string) []string {
	if strings.TrimSpace(genre) == "" {
		return []string{}
	}
	parts := strings.FieldsFunc(genre, func(r rune) bool {
		return r == ';' || r == ',' || r == '/'
	})
	genres := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			genres = append(genres, trimmed)
		}
	}
	return genres
}

// probeStream runs ffprobe and parses duration (seconds) and bitrate (kbit/s)
// from its JSON output.
func (p *FileProber) probeStream(path string) (float64, int, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration,bit_rate",
		"-of", "json",
		path,
	}

	cmd := exec.Command(p.ffprobePath, args...)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, 0, fmt.Errorf("ffprobe execution failed for %s: %w (%s)",
			path, err, strings.TrimSpace(stderr.String()))
	}

	var probeData struct {
		Format struct {
			Duration string `json:"duration"`
			BitRate  string `json:"bit_rate"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return 0, 0, fmt.Errorf("failed to unmarshal ffprobe output for %s: %w", path, err)
	}

	duration, err := strconv.ParseFloat(probeData.Format.Duration, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe returned no usable duration for %s", path)
	}

	bitrate := 0
	if bps, err := strconv.Atoi(probeData.Format.BitRate); err == nil {
		bitrate = bps / 1000
	}

	return duration, bitrate, nil
}
