package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DepositJob ist die Arbeitseinheit des Hintergrund-Worker-Pools: ein
// Agency-Deposit für genau eine Submission.
type DepositJob struct {
	SubmissionID uint
	ContextID    uint
}

// DepositDispatcher entkoppelt die langsamen Agency-Aufrufe vom HTTP-Thread:
// Jobs laufen in einem Worker-Pool mit Retry und Backoff. Die Queue lebt im
// Prozess; bei vollem Puffer oder Prozessende verlorene Jobs werden vom
// cron-getriebenen deposit-all-Sweep wieder aufgenommen.
type DepositDispatcher struct {
	jobs    chan DepositJob
	run     func(context.Context, DepositJob) error
	retries int
	backoff time.Duration
	wg      sync.WaitGroup
	workers int
	log     *zap.Logger
}

// NewDepositDispatcher erstellt einen Dispatcher mit der gegebenen
// Worker-Anzahl und Retry-Grenze pro Job.
func NewDepositDispatcher(workers, retries int, log *zap.Logger) *DepositDispatcher {
	if workers < 1 {
		workers = 1
	}
	if retries < 1 {
		retries = 1
	}
	return &DepositDispatcher{
		jobs:    make(chan DepositJob, 256),
		retries: retries,
		backoff: 30 * time.Second,
		workers: workers,
		log:     log,
	}
}

// Start startet die Worker mit dem gegebenen Job-Körper.
func (d *DepositDispatcher) Start(run func(context.Context, DepositJob) error) {
	d.run = run
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.log.Info("Deposit-Worker gestartet", zap.Int("workers", d.workers))
}

// Enqueue reiht einen Job ein. Bei vollem Puffer wird der Job verworfen und
// nur protokolliert; der Sweep holt ihn später nach.
func (d *DepositDispatcher) Enqueue(job DepositJob) {
	select {
	case d.jobs <- job:
	default:
		d.log.Warn("Deposit-Queue voll, Job wird dem Sweep überlassen",
			zap.Uint("submission_id", job.SubmissionID))
	}
}

// Stop schließt die Queue und wartet, bis alle Worker fertig sind.
func (d *DepositDispatcher) Stop() {
	close(d.jobs)
	d.wg.Wait()
}

func (d *DepositDispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		d.process(job)
	}
}

// process führt einen Job mit Retries aus. Nach Ausschöpfen der Versuche
// bleibt der DOI-Status bei Submitted; es wird nichts zurückgerollt.
func (d *DepositDispatcher) process(job DepositJob) {
	log := d.log.With(zap.Uint("submission_id", job.SubmissionID), zap.Uint("context_id", job.ContextID))

	for attempt := 1; attempt <= d.retries; attempt++ {
		err := d.run(context.Background(), job)
		if err == nil {
			return
		}
		log.Warn("Deposit-Versuch fehlgeschlagen",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", d.retries),
			zap.Error(err))
		if attempt < d.retries {
			time.Sleep(time.Duration(attempt) * d.backoff)
		}
	}
	log.Error("Deposit endgültig fehlgeschlagen, Submission bleibt für den Sweep offen.")
}
