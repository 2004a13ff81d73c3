package scheduler

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Job represents a scheduled background job
type Job interface {
	Run() error
	Name() string
}

// Scheduler manages background jobs. Owned by the process lifecycle:
// started on boot, stopped on shutdown.
type Scheduler struct {
	cron *cron.Cron
}

// New creates a new scheduler
func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("[Scheduler] Started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("[Scheduler] Stopped")
}

// AddEvery registers a job on a fixed interval
func (s *Scheduler) AddEvery(interval time.Duration, job Job) error {
	spec := "@every " + interval.String()
	_, err := s.cron.AddFunc(spec, func() {
		if err := job.Run(); err != nil {
			log.Printf("[Scheduler] Job %s failed: %v", job.Name(), err)
		}
	})
	if err != nil {
		return err
	}
	log.Printf("[Scheduler] Job %s registered (%s)", job.Name(), spec)
	return nil
}

// RunNow executes a job immediately, outside its schedule
func (s *Scheduler) RunNow(job Job) error {
	log.Printf("[Scheduler] Running job %s immediately", job.Name())
	return job.Run()
}
