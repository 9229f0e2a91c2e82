package usecase

import (
	"context"
	"sync"
	"time"

	emaildomain "mailsync-backend/internal/email/domain"
	labeldomain "mailsync-backend/internal/label/domain"

	"github.com/rs/zerolog"
)

const jobTimeout = 5 * time.Minute

// ClassifyJob is one background classification request. Label is set for a
// new-label backfill; otherwise Messages are classified against all labels.
type ClassifyJob struct {
	AppUserID string
	Messages  []*emaildomain.Message
	Label     *labeldomain.UserLabel
	Limit     int
}

// Dispatcher runs classification jobs on a fixed pool of background workers,
// isolated from the sync jobs that enqueue them.
type Dispatcher struct {
	classifier  *Classifier
	jobQueue    chan ClassifyJob
	workerWg    sync.WaitGroup
	workerCount int
	started     bool
	stopped     bool
	mu          sync.RWMutex
	log         zerolog.Logger
}

// NewDispatcher creates a new classification dispatcher
func NewDispatcher(classifier *Classifier, workerCount, queueSize int, log zerolog.Logger) *Dispatcher {
	if workerCount <= 0 {
		workerCount = 3
	}
	if queueSize <= 0 {
		queueSize = 500
	}
	return &Dispatcher{
		classifier:  classifier,
		jobQueue:    make(chan ClassifyJob, queueSize),
		workerCount: workerCount,
		log:         log,
	}
}

// Start starts the classification workers
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return
	}
	for i := 0; i < d.workerCount; i++ {
		d.workerWg.Add(1)
		go d.worker(i)
	}
	d.started = true
	d.log.Info().Int("workers", d.workerCount).Msg("classification workers started")
}

// Stop drains queued jobs and waits for the workers to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.jobQueue)
	d.mu.Unlock()

	d.workerWg.Wait()
	d.log.Info().Msg("classification workers stopped")
}

func (d *Dispatcher) worker(id int) {
	defer d.workerWg.Done()
	for job := range d.jobQueue {
		d.processJob(job)
	}
	d.log.Debug().Int("worker", id).Msg("classification worker exited")
}

func (d *Dispatcher) processJob(job ClassifyJob) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Str("app_user_id", job.AppUserID).Msg("classification job panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	var (
		result Result
		err    error
	)
	if job.Label != nil {
		result, err = d.classifier.ClassifyForNewLabel(ctx, job.AppUserID, job.Label, job.Limit)
	} else {
		result, err = d.classifier.ClassifyNewMessages(ctx, job.AppUserID, job.Messages)
	}

	event := d.log.Info()
	if err != nil {
		event = d.log.Error().Err(err)
	}
	event.Str("app_user_id", job.AppUserID).
		Int("messages", result.Messages).
		Int("chunks", result.Chunks).
		Int("failed_chunks", result.FailedChunks).
		Int("associations", result.Associations).
		Msg("classification finished")
}

// QueueJob adds a job to the queue (non-blocking)
func (d *Dispatcher) QueueJob(job ClassifyJob) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return false
	}
	select {
	case d.jobQueue <- job:
		return true
	default:
		d.log.Warn().Str("app_user_id", job.AppUserID).Msg("classification queue full, dropping job")
		return false
	}
}

func (d *Dispatcher) DispatchNewMessages(appUserID string, messages []*emaildomain.Message) bool {
	messages = emaildomain.FilterClassifiable(messages)
	if len(messages) == 0 {
		return false
	}
	return d.QueueJob(ClassifyJob{AppUserID: appUserID, Messages: messages})
}

func (d *Dispatcher) DispatchNewLabel(appUserID string, label *labeldomain.UserLabel, limit int) bool {
	return d.QueueJob(ClassifyJob{AppUserID: appUserID, Label: label, Limit: limit})
}
