// Package analysis runs the external analysis engine and reconciles its
// asynchronous results with the track store.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"cuebase/model"
)

// Engine is the analysis-engine collaborator: invoked with a file path, it
// returns tempo, key, loudness, gain and intro/outro offsets, or an error
// indicator. The engine is an opaque external process; its failure is
// isolated to the one job that spawned it.
type Engine interface {
	Analyze(ctx context.Context, path string) (*model.AnalysisResult, error)
}

// ProcessEngine spawns the configured analyzer binary per job and parses its
// JSON stdout.
type ProcessEngine struct {
	binPath string
	timeout time.Duration
}

// NewProcessEngine creates a new ProcessEngine.
func NewProcessEngine(binPath string, timeout time.Duration) *ProcessEngine {
	return &ProcessEngine{binPath: binPath, timeout: timeout}
}

// Analyze runs one engine process to completion. A result whose error marker
// is set is returned as a value, not an error: the distinction matters to the
// reconciler only for logging.
func (e *ProcessEngine) Analyze(ctx context.Context, path string) (*model.AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.binPath, path)
	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	// The engine reports analysis failures as JSON on stdout with a non-zero
	// exit; try to parse before giving up on the process error.
	result := &model.AnalysisResult{}
	if err := json.Unmarshal(out.Bytes(), result); err != nil {
		if runErr != nil {
			return nil, fmt.Errorf("analysis engine failed for %s: %w (%s)",
				path, runErr, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("malformed analysis engine output for %s: %w", path, err)
	}

	return result, nil
}
