// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package job

import (
	"context"
	"time"
)

// Job represents a scheduled task that runs at a fixed interval and on demand. It never
// overlaps with itself (singleton mode).
type Job struct {
	interval time.Duration
	task     func(context.Context)
	trigger  chan struct{}
}

// New creates a new Job with the given interval and task.
func New(interval time.Duration, task func(context.Context)) *Job {
	return &Job{
		interval: interval,
		task:     task,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests a run outside the schedule. Requests made while one is pending coalesce
// into a single run. A request arriving while the task runs is served right after it.
func (j *Job) Trigger() {
	select {
	case j.trigger <- struct{}{}:
	default:
	}
}

// Start begins executing the job on the given context. It returns when the context is cancelled.
// It executes jobs in singleton mode, meaning if a tick fires while a previous run is still
// executing, that tick is skipped.
func (j *Job) Start(ctx context.Context) {
	if j.task == nil || j.interval <= 0 {
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// sem is a 1-slot semaphore that guards "is a run in progress?"
	sem := make(chan struct{}, 1)
	finished := make(chan struct{}, 1)
	pending := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.tryRun(ctx, sem, finished)
		case <-j.trigger:
			if !j.tryRun(ctx, sem, finished) {
				pending = true
			}
		case <-finished:
			if pending {
				pending = !j.tryRun(ctx, sem, finished)
			}
		}
	}
}

// tryRun starts the task unless a run is in progress.
func (j *Job) tryRun(ctx context.Context, sem, finished chan struct{}) bool {
	select {
	case sem <- struct{}{}:
	default:
		return false
	}
	go func() {
		defer func() {
			<-sem
			select {
			case finished <- struct{}{}:
			default:
			}
		}()
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		j.task(runCtx)
	}()
	return true
}
