package cron

import (
	"context"
	"fmt"
)

// Job is one maintenance task run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs in registration order. Names are unique so metrics and the
// -job flag of cmd/cron-worker can address them.
type Registry struct {
	jobs  []Job
	index map[string]int
}

func NewRegistry() *Registry {
	return &Registry{index: map[string]int{}}
}

// Register appends job, rejecting nil jobs and duplicate names.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("cron: nil job")
	}
	name := job.Name()
	if _, dup := r.index[name]; dup {
		return fmt.Errorf("cron: job %q already registered", name)
	}
	r.index[name] = len(r.jobs)
	r.jobs = append(r.jobs, job)
	return nil
}

// Lookup finds a job by name.
func (r *Registry) Lookup(name string) (Job, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.jobs[i], true
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}
