package workers

import (
	"context"
	"fmt"
	"job-chat/contract"
	"job-chat/errors"
	"log/slog"
	"sync"
	"time"
)

const defaultRestartInterval = 200 * time.Millisecond

// Supervisor owns the lifecycle of the background workers of the chat process
// (stats reporter, store health probe, bus relay):
// Owns a context and its Cancel function
// Runs each worker in its own goroutine
// Turns a panic into an error carrying the recovered value
// Restarts a crashed worker after the restart interval
// Lets a worker that returned nil end for good
// Waits for every goroutine through a WaitGroup before Run returns
//
// A bus relay losing its Redis subscription is the typical restart: it returns
// an error, and the next run subscribes again.
type Supervisor struct {
	Cancel          context.CancelFunc // Stops the supervised context
	wg              *sync.WaitGroup    // Counts running worker goroutines
	log             *slog.Logger
	workers         []contract.Worker
	restartInterval time.Duration // Pause before a crashed worker runs again
}

// NewSupervisor falls back to 200ms when restartInterval is not positive.
func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	if restartInterval <= 0 {
		restartInterval = defaultRestartInterval
	}
	return &Supervisor{wg: &sync.WaitGroup{}, log: log, restartInterval: restartInterval}
}

// Run blocks until every worker returned.
// Cancelling ctx or calling Stop cancels the workers.
func (s *Supervisor) Run(ctx context.Context) {
	// 1. A local trigger tied to the parent ctx.
	// If the parent (main) cancels, the workers stop.
	// If Stop is called, only the workers stop.
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.Cancel = cancel
	defer s.Cancel()

	// 2. One supervised goroutine per worker
	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	// 3. Block until every goroutine has returned
	s.wg.Wait()
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Start runs a worker under supervision in a dedicated goroutine.
// A crash of one worker never takes the supervisor down.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	workerName := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()

		for {
			if ctx.Err() != nil {
				s.log.Info(fmt.Sprintf("Stopping : %s", workerName))
				return
			}

			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("%w: %v", errors.ErrWorkerPanic, r)
					}
				}()
				return worker.Run(ctx)
			}()

			if err == nil {
				s.log.Info(fmt.Sprintf("Worker finished : %s", workerName))
				return
			}

			if ctx.Err() != nil {
				s.log.Info("Worker stopped (context canceled)", "name", workerName)
				return
			}

			s.log.Warn("Worker crashed, restarting", "name", workerName, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.restartInterval):
			}
		}
	}()
}

// Stop cancels every supervised worker. Run returns once they are all done.
func (s *Supervisor) Stop() {
	if s.Cancel != nil {
		s.Cancel()
	}
}
