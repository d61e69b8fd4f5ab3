package cron

import "context"

// Job is a scheduled task executed by the worker's cron loop.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs the cron service iterates each tick.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry, optionally preloaded with jobs.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		registry.Register(job)
	}
	return registry
}

// Register adds a job to the registry.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
