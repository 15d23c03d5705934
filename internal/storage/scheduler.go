package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Job is a periodic maintenance task such as a cache purge or a backup.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error

	// StartImmediately runs the job once when the scheduler starts.
	StartImmediately bool
}

// JobStatus reports how a job has fared.
type JobStatus struct {
	Name      string
	Runs      int
	Failures  int
	LastRun   time.Time
	LastError error
}

// Scheduler runs maintenance jobs on fixed intervals until its context ends.
// A job never overlaps with itself.
type Scheduler struct {
	jobs []Job

	mu     sync.RWMutex
	status map[string]*JobStatus
}

// NewScheduler creates a scheduler. Jobs with a non-positive interval are
// dropped.
func NewScheduler(jobs ...Job) *Scheduler {
	s := &Scheduler{status: map[string]*JobStatus{}}
	for _, job := range jobs {
		if job.Interval <= 0 || job.Run == nil {
			continue
		}
		s.jobs = append(s.jobs, job)
		s.status[job.Name] = &JobStatus{Name: job.Name}
	}
	return s
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.loop(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	if job.StartImmediately {
		s.runJob(ctx, job)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runJob(ctx, job)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	err := job.Run(ctx)
	if err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Str("job", job.Name).Msg("Scheduled job failed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status[job.Name]
	st.Runs++
	st.LastRun = time.Now()
	st.LastError = err
	if err != nil {
		st.Failures++
	}
}

// Status returns a snapshot of the named job.
func (s *Scheduler) Status(name string) (JobStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.status[name]
	if !ok {
		return JobStatus{}, fmt.Errorf("unknown job %q", name)
	}
	return *st, nil
}
