package scheduler

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const DefaultTick = time.Second

var logger = otelslog.NewLogger("github.com/freekieb7/embedio/scheduler")

type Scheduler struct {
	mu   sync.Mutex
	jobs []*Job
	tick time.Duration
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		jobs: make([]*Job, 0),
		tick: DefaultTick,
	}
}

// WithTick sets how often due jobs are looked for.
func (scheduler *Scheduler) WithTick(tick time.Duration) *Scheduler {
	if tick > 0 {
		scheduler.tick = tick
	}
	return scheduler
}

func (scheduler *Scheduler) AddJob(job *Job) {
	scheduler.mu.Lock()
	scheduler.jobs = append(scheduler.jobs, job)
	scheduler.mu.Unlock()
}

type Job struct {
	name              string
	tasks             []Task
	interval          time.Duration
	nextExecuteAt     time.Time
	previousExecuteAt time.Time
	running           sync.Mutex
}

func NewJob(name string) *Job {
	return &Job{
		name:  name,
		tasks: make([]Task, 0),
	}
}

func (job *Job) WithTasks(tasks ...Task) *Job {
	job.tasks = tasks
	return job
}

func (job *Job) WithInterval(interval time.Duration) *Job {
	job.interval = interval
	return job
}

func (job *Job) WithExecuteAt(executeAt time.Time) *Job {
	job.nextExecuteAt = executeAt
	return job
}

func (job *Job) AddTask(task Task) {
	job.tasks = append(job.tasks, task)
}

// Task is one unit of work. It should return promptly once ctx is done.
type Task func(ctx context.Context)

// Run executes due jobs until ctx is done. A job still running from its
// previous turn is skipped.
func (scheduler *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(scheduler.tick)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ticker.C:
			now := time.Now()

			scheduler.mu.Lock()
			for _, job := range scheduler.jobs {
				if job.nextExecuteAt.After(now) {
					continue
				}
				if !job.running.TryLock() {
					continue
				}

				// Each job is executed asynchronously
				wg.Add(1)
				go func(job *Job) {
					defer wg.Done()
					defer job.running.Unlock()

					// Each task is executed sequentially
					for _, task := range job.tasks {
						job.execute(ctx, task)
					}
				}(job)

				job.previousExecuteAt = now
				job.nextExecuteAt = now.Add(job.interval)
			}
			scheduler.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

func (job *Job) execute(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("scheduled task panicked", "job", job.name, "panic", r)
		}
	}()

	task(ctx)
}
