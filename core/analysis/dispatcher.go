package analysis

import (
	"context"
	"sync"

	"cuebase/logger"
	"cuebase/model"
	"cuebase/repository"

	"github.com/google/uuid"
)

// Publisher receives change notifications after a result lands. Injected so
// the dispatcher never reaches into ambient UI or transport state.
type Publisher interface {
	Publish(event model.Event)
}

// NopPublisher discards events. Used by the CLI commands.
type NopPublisher struct{}

func (NopPublisher) Publish(model.Event) {}

// Job identifies one dispatched analysis run. Generation increases
// monotonically per track; only the result carrying the latest generation for
// its track is ever applied.
type Job struct {
	ID         string
	TrackID    int64
	Generation uint64
}

type jobResult struct {
	job Job
	res *model.AnalysisResult
	err error
}

// Dispatcher launches one background engine process per requested track and
// applies results back to the store exactly once, in a single reconciler
// goroutine. Results for superseded jobs are discarded, never applied and
// never surfaced as errors.
type Dispatcher struct {
	engine Engine
	repo   repository.TrackRepository
	events Publisher

	mu     sync.Mutex
	latest map[int64]uint64

	results chan jobResult
	workers sync.WaitGroup
	applied sync.WaitGroup
}

// NewDispatcher creates a dispatcher and starts its reconciler loop.
func NewDispatcher(engine Engine, repo repository.TrackRepository, events Publisher) *Dispatcher {
	d := &Dispatcher{
		engine:  engine,
		repo:    repo,
		events:  events,
		latest:  make(map[int64]uint64),
		results: make(chan jobResult, 64),
	}
	d.applied.Add(1)
	go d.reconcile()
	return d
}

// Dispatch starts one analysis job for the track and returns immediately.
// A newer Dispatch for the same track supersedes any job still in flight.
func (d *Dispatcher) Dispatch(track *model.Track) Job {
	job := d.register(track.ID)
	path := track.FilePath

	logger.Info("Dispatching analysis job",
		logger.String("jobId", job.ID),
		logger.Int64("trackId", job.TrackID),
		logger.Uint64("generation", job.Generation),
		logger.String("path", path))

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		res, err := d.engine.Analyze(context.Background(), path)
		d.results <- jobResult{job: job, res: res, err: err}
	}()

	return job
}

// register issues the next generation for a track.
func (d *Dispatcher) register(trackID int64) Job {
	d.mu.Lock()
	d.latest[trackID]++
	generation := d.latest[trackID]
	d.mu.Unlock()

	return Job{ID: uuid.NewString(), TrackID: trackID, Generation: generation}
}

// Close waits for in-flight workers, drains the result queue and stops the
// reconciler. After Close returns every non-stale result has been applied.
func (d *Dispatcher) Close() {
	d.workers.Wait()
	close(d.results)
	d.applied.Wait()
}

func (d *Dispatcher) reconcile() {
	defer d.applied.Done()
	for r := range d.results {
		d.apply(r.job, r.res, r.err)
	}
}

// apply is the single reconciliation point. It runs on one goroutine, so
// interleaved job completions cannot race on the store.
func (d *Dispatcher) apply(job Job, res *model.AnalysisResult, err error) {
	d.mu.Lock()
	latest := d.latest[job.TrackID]
	d.mu.Unlock()

	if job.Generation != latest {
		logger.Debug("Discarding stale analysis result",
			logger.String("jobId", job.ID),
			logger.Int64("trackId", job.TrackID),
			logger.Uint64("generation", job.Generation),
			logger.Uint64("latest", latest))
		return
	}

	if err != nil || res.Failed() {
		if err == nil {
			logger.Warn("Analysis engine reported failure",
				logger.String("jobId", job.ID),
				logger.Int64("trackId", job.TrackID),
				logger.String("engineError", res.Error))
		} else {
			logger.Error("Analysis job failed",
				logger.String("jobId", job.ID),
				logger.Int64("trackId", job.TrackID),
				logger.ErrorField(err))
		}
		// The track stays unanalyzed and re-analyzable; never keep partial data.
		if clearErr := d.repo.ClearAnalysis(job.TrackID); clearErr != nil {
			logger.Error("Failed to clear analysis state",
				logger.Int64("trackId", job.TrackID), logger.ErrorField(clearErr))
			return
		}
		d.events.Publish(model.Event{Type: model.EventTrackUpdated, TrackIDs: []int64{job.TrackID}})
		return
	}

	if applyErr := d.repo.ApplyAnalysis(job.TrackID, res); applyErr != nil {
		logger.Error("Failed to apply analysis result",
			logger.String("jobId", job.ID),
			logger.Int64("trackId", job.TrackID),
			logger.ErrorField(applyErr))
		return
	}

	logger.Info("Analysis result applied",
		logger.String("jobId", job.ID),
		logger.Int64("trackId", job.TrackID),
		logger.Uint64("generation", job.Generation))
	d.events.Publish(model.Event{Type: model.EventTrackUpdated, TrackIDs: []int64{job.TrackID}})
}
