package jobs

import (
	"context"
	"time"

	"github.com/fridayweigh/weights/src/logging"
	"github.com/fridayweigh/weights/src/utils"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

/*
 * This package runs background tasks (the session sweep, the websocket hub,
 * database backups) in a way that lets the server cancel them and wait for
 * them to shut down gracefully.
 */

// A Job is used to handle and track the completion of an asynchronous or
// background task.
type Job struct {
	Name   string
	Ctx    context.Context
	Logger zerolog.Logger
	cancel func()
	done   chan struct{}
}

func New(name string) *Job {
	logger := logging.With().Str("job", name).Logger()
	ctx, cancel := context.WithCancel(context.Background())
	ctx = logging.AttachLoggerToContext(&logger, ctx)
	return &Job{
		Name:   name,
		Ctx:    ctx,
		Logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Sends a cancel signal to the Job. Expected to be called from outside the
// job, e.g. when shutting down the application.
func (j *Job) Cancel() {
	j.cancel()
}

func (j *Job) Canceled() <-chan struct{} {
	return j.Ctx.Done()
}

// Marks the Job as finished. Expected to be called by the job code itself.
func (j *Job) Finish() *Job {
	close(j.done)
	return j
}

func (j *Job) Finished() <-chan struct{} {
	return j.done
}

// Periodically starts a job that calls fn every interval until canceled. The
// first call happens one interval after start. Errors and panics from fn are
// logged and do not stop the job.
func Periodically(name string, clk clockwork.Clock, interval time.Duration, fn func(ctx context.Context) error) *Job {
	job := New(name)
	ticker := clk.NewTicker(interval)
	go func() {
		defer job.Finish()
		defer ticker.Stop()
		job.Logger.Debug().Dur("interval", interval).Msg("starting periodic job")

		for {
			select {
			case <-ticker.Chan():
				if err := runOnce(job.Ctx, fn); err != nil {
					job.Logger.Error().Stack().Err(err).Msg("periodic job run failed")
				}
			case <-job.Canceled():
				job.Logger.Debug().Msg("shutting down periodic job")
				return
			}
		}
	}()
	return job
}

func runOnce(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer utils.RecoverPanicAsError(&err)
	return fn(ctx)
}

// A utility for running and canceling multiple jobs at once. Because this type
// is simply a slice of Jobs, you can construct it using normal slice syntax.
type Jobs []*Job

// Cancels all tracked jobs, giving them a chance to finish gracefully. Will
// return when all jobs finish or when the timeout expires, whichever comes
// first. Returns a list of all jobs that did not finish on time.
func (jobs Jobs) CancelAndWait(timeout time.Duration) []string {
	allDoneChan := make(chan struct{})
	for _, job := range jobs {
		job.Cancel()
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	go func() {
		for _, job := range jobs {
			<-job.Finished()
		}
		close(allDoneChan)
	}()

	select {
	case <-timer.C:
		return jobs.ListUnfinished()
	case <-allDoneChan:
		return nil
	}
}

func (jobs Jobs) ListUnfinished() []string {
	unfinished := []string{}
	for _, job := range jobs {
		select {
		case <-job.Finished():
			continue
		default:
			unfinished = append(unfinished, job.Name)
		}
	}
	return unfinished
}
