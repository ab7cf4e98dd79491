// Package scheduler runs the named background jobs that drive the
// wishlist/download pipeline and recommendation engine (spec §4.D): a
// single robfig/cron dispatcher decides when a job is due and hands it to
// a bounded worker pool, skipping a job entirely if its previous run is
// still in flight.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultWorkers     = 4
	softTimeout        = 55 * time.Minute
	hardTimeout        = 60 * time.Minute
	defaultGracePeriod = 5 * time.Second
)

// Job is one named, cron-scheduled unit of work.
type Job struct {
	// Name identifies the job in logs and in RunNow calls.
	Name string
	// Schedule is a standard 5-field cron expression (minute hour dom month dow).
	Schedule string
	// Run performs the job's work. It must respect ctx cancellation.
	Run func(ctx context.Context) error
	// RateLimit, if non-nil, is consulted before the job is handed to a
	// worker; the job blocks on the limiter rather than running
	// unthrottled (spec §4.D: MusicBrainz 1/s, Spotify/Last.fm 10/min are
	// applied at this layer, not inside the job body).
	RateLimit *rate.Limiter
}

// Scheduler dispatches due jobs onto a fixed worker pool, enforcing
// per-job single-flight semantics and soft/hard execution timeouts.
type Scheduler struct {
	cron    *cron.Cron
	log     zerolog.Logger
	workers int

	jobs chan func(context.Context)
	wg   sync.WaitGroup

	runningMu sync.Mutex
	running   map[string]bool

	rootCtx    context.Context
	cancelRoot context.CancelFunc

	stopped atomic.Bool

	GracePeriod time.Duration
}

// New builds a scheduler with the default worker pool size (spec §4.D:
// "worker pool (default size 4)"). Jobs are registered with Register and
// only begin firing once Start is called.
func New(log zerolog.Logger) *Scheduler {
	rootCtx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:        cron.New(cron.WithSeconds()),
		log:         log.With().Str("component", "scheduler").Logger(),
		workers:     defaultWorkers,
		jobs:        make(chan func(context.Context), 64),
		running:     make(map[string]bool),
		rootCtx:     rootCtx,
		cancelRoot:  cancel,
		GracePeriod: defaultGracePeriod,
	}
	return s
}

// Register adds a job to the dispatcher. Cron expressions here are
// standard 5-field (no seconds); New wires cron.WithSeconds() internally
// so Register prefixes a literal "0" seconds field.
func (s *Scheduler) Register(j Job) error {
	entryFn := func() { s.dispatch(j) }
	_, err := s.cron.AddFunc("0 "+j.Schedule, entryFn)
	return err
}

// Start launches the worker pool and the cron dispatcher.
func (s *Scheduler) Start() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	s.cron.Start()
}

func (s *Scheduler) worker() {
	defer s.wg.Done()
	for fn := range s.jobs {
		if s.stopped.Load() {
			// Shutdown began: drop tasks that were queued but never started.
			continue
		}
		fn(s.rootCtx)
	}
}

// dispatch enqueues a due job, skipping it if the previous run of the same
// job name is still executing (spec §4.D: "Model: ... Task bodies are
// logically single-threaded: they await I/O but are the sole mutator of
// any entity they touch during their run").
func (s *Scheduler) dispatch(j Job) {
	s.runningMu.Lock()
	if s.stopped.Load() {
		s.runningMu.Unlock()
		return
	}
	if s.running[j.Name] {
		s.runningMu.Unlock()
		s.log.Debug().Str("job", j.Name).Msg("skipping: previous run still in flight")
		return
	}
	s.running[j.Name] = true

	task := func(ctx context.Context) {
		defer func() {
			s.runningMu.Lock()
			delete(s.running, j.Name)
			s.runningMu.Unlock()
		}()
		s.runOnce(ctx, j)
	}

	select {
	case s.jobs <- task:
		s.runningMu.Unlock()
	default:
		delete(s.running, j.Name)
		s.runningMu.Unlock()
		s.log.Warn().Str("job", j.Name).Msg("worker pool saturated, dropping this run")
	}
}

func (s *Scheduler) runOnce(ctx context.Context, j Job) {
	if j.RateLimit != nil {
		if err := j.RateLimit.Wait(ctx); err != nil {
			s.log.Warn().Err(err).Str("job", j.Name).Msg("rate limiter wait aborted")
			return
		}
	}

	hardCtx, cancel := context.WithTimeout(ctx, hardTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- j.Run(hardCtx) }()

	softTimer := time.NewTimer(softTimeout)
	defer softTimer.Stop()

	select {
	case err := <-done:
		elapsed := time.Since(start)
		if err != nil {
			s.log.Error().Err(err).Str("job", j.Name).Dur("elapsed", elapsed).Msg("job failed")
			return
		}
		s.log.Info().Str("job", j.Name).Dur("elapsed", elapsed).Msg("job completed")
	case <-softTimer.C:
		s.log.Warn().Str("job", j.Name).Msg("job exceeded soft timeout, still running")
		err := <-done
		elapsed := time.Since(start)
		if err != nil {
			s.log.Error().Err(err).Str("job", j.Name).Dur("elapsed", elapsed).Msg("job failed after soft-timeout warning")
			return
		}
		s.log.Info().Str("job", j.Name).Dur("elapsed", elapsed).Msg("job completed after soft-timeout warning")
	case <-hardCtx.Done():
		s.log.Error().Str("job", j.Name).Msg("job exceeded hard timeout, abandoning")
	}
}

// RunNow immediately dispatches a job outside its cron schedule, used by
// the daemon's job-run API endpoint that vibarrctl calls for manual
// triggers.
func (s *Scheduler) RunNow(j Job) {
	s.dispatch(j)
}

// Shutdown stops accepting new cron fires, cancels any queued-but-not-
// started task, and waits up to GracePeriod for running tasks to finish
// before cancelling their context too (spec §4.D/§5: "running tasks are
// given a configurable grace period (default 5s)").
func (s *Scheduler) Shutdown(ctx context.Context) {
	cronCtx := s.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-ctx.Done():
	}

	s.runningMu.Lock()
	s.stopped.Store(true)
	close(s.jobs)
	s.runningMu.Unlock()

	graceTimer := time.NewTimer(s.GracePeriod)
	defer graceTimer.Stop()

	waitDone := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
	case <-graceTimer.C:
		s.log.Warn().Msg("grace period elapsed, cancelling in-flight jobs")
		s.cancelRoot()
		<-waitDone
	case <-ctx.Done():
		s.cancelRoot()
		<-waitDone
	}
}
