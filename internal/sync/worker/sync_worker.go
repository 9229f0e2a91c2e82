package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	accountdomain "mailsync-backend/internal/account/domain"
	syncdomain "mailsync-backend/internal/sync/domain"
	"mailsync-backend/pkg/queue"

	"github.com/rs/zerolog"
)

const (
	readBlock      = 2 * time.Second
	lockRetryEvery = 500 * time.Millisecond
)

// JobRunner executes one sync job.
type JobRunner interface {
	Run(ctx context.Context, job syncdomain.SyncJob) error
}

type Options struct {
	Concurrency int
	MaxAttempts int64
	ReclaimIdle time.Duration
	LockWait    time.Duration
}

// SyncWorker consumes sync jobs from the stream with a fixed number of
// workers. Job starts are rate limited across processes and jobs for the
// same account never run at the same time.
type SyncWorker struct {
	stream  *queue.Stream
	limiter *queue.Limiter
	locker  *queue.Locker
	runner  JobRunner
	opts    Options
	log     zerolog.Logger

	jobs     chan queue.Entry
	cancel   context.CancelFunc
	workerWg sync.WaitGroup
}

// NewSyncWorker creates a new sync worker pool
func NewSyncWorker(stream *queue.Stream, limiter *queue.Limiter, locker *queue.Locker, runner JobRunner, opts Options, log zerolog.Logger) *SyncWorker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.ReclaimIdle <= 0 {
		opts.ReclaimIdle = time.Minute
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 5 * time.Second
	}
	return &SyncWorker{
		stream:  stream,
		limiter: limiter,
		locker:  locker,
		runner:  runner,
		opts:    opts,
		log:     log,
		jobs:    make(chan queue.Entry),
	}
}

// Start creates the consumer group and launches the read loop and workers.
func (w *SyncWorker) Start(ctx context.Context) error {
	if err := w.stream.EnsureGroup(ctx); err != nil {
		return err
	}
	ctx, w.cancel = context.WithCancel(ctx)

	for i := 0; i < w.opts.Concurrency; i++ {
		w.workerWg.Add(1)
		go w.worker(ctx, i)
	}
	w.workerWg.Add(1)
	go w.dispatch(ctx)

	w.log.Info().
		Str("stream", w.stream.Name()).
		Int("workers", w.opts.Concurrency).
		Int64("max_attempts", w.opts.MaxAttempts).
		Msg("sync workers started")
	return nil
}

// Stop cancels in-flight reads and waits for running jobs to return.
func (w *SyncWorker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.workerWg.Wait()
	w.log.Info().Msg("sync workers stopped")
}

func (w *SyncWorker) dispatch(ctx context.Context) {
	defer w.workerWg.Done()
	defer close(w.jobs)

	reclaim := time.NewTicker(w.opts.ReclaimIdle)
	defer reclaim.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-reclaim.C:
			entries, err := w.stream.Reclaim(ctx, w.opts.ReclaimIdle, int64(w.opts.Concurrency))
			if err != nil && ctx.Err() == nil {
				w.log.Error().Err(err).Msg("failed to reclaim pending jobs")
			}
			if !w.feed(ctx, entries) {
				return
			}
		default:
		}

		entries, err := w.stream.Read(ctx, int64(w.opts.Concurrency), readBlock)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("failed to read sync jobs")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if !w.feed(ctx, entries) {
			return
		}
	}
}

func (w *SyncWorker) feed(ctx context.Context, entries []queue.Entry) bool {
	for _, e := range entries {
		select {
		case w.jobs <- e:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

func (w *SyncWorker) worker(ctx context.Context, id int) {
	defer w.workerWg.Done()
	for entry := range w.jobs {
		w.handle(ctx, entry)
	}
	w.log.Debug().Int("worker", id).Msg("sync worker exited")
}

// handle runs one entry. Successful and permanently failed jobs are removed
// from the pending list; anything else stays pending for a later reclaim.
// A job blocked by the account lock goes back on the stream as a new entry so
// waiting does not count against its attempts.
func (w *SyncWorker) handle(ctx context.Context, entry queue.Entry) {
	log := w.log.With().Str("entry_id", entry.ID).Int64("attempt", entry.Attempt).Logger()

	var job syncdomain.SyncJob
	if err := entry.Decode(&job); err != nil || job.GmailAccountID == "" {
		log.Error().Err(err).Msg("undecodable sync job")
		w.deadLetter(ctx, entry, "undecodable payload", log)
		return
	}
	log = log.With().Str("account_id", job.GmailAccountID).Str("kind", string(job.Kind)).Logger()

	if err := w.limiter.Wait(ctx); err != nil {
		log.Warn().Err(err).Msg("rate limiter wait aborted")
		return
	}

	lock, err := w.locker.AcquireWait(ctx, job.GmailAccountID, w.opts.LockWait, lockRetryEvery)
	if err != nil {
		if errors.Is(err, queue.ErrLockHeld) {
			log.Info().Msg("account busy, requeueing job")
			w.requeue(ctx, entry, job, log)
		} else {
			log.Error().Err(err).Msg("failed to take account lock")
		}
		return
	}

	started := time.Now()
	err = w.runWithRecover(ctx, job)
	if relErr := lock.Release(context.Background()); relErr != nil {
		log.Warn().Err(relErr).Msg("failed to release account lock")
	}

	switch {
	case err == nil:
		log.Info().Dur("took", time.Since(started)).Msg("sync job done")
		w.ack(ctx, entry, log)
	case errors.Is(err, accountdomain.ErrAccountNotFound):
		log.Warn().Msg("account no longer exists, dropping job")
		w.ack(ctx, entry, log)
	case entry.Attempt >= w.opts.MaxAttempts:
		log.Error().Err(err).Msg("sync job out of attempts")
		w.deadLetter(ctx, entry, err.Error(), log)
	default:
		log.Warn().Err(err).Msg("sync job failed, will retry")
	}
}

func (w *SyncWorker) runWithRecover(ctx context.Context, job syncdomain.SyncJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("sync job panicked")
			w.log.Error().Interface("panic", r).Str("account_id", job.GmailAccountID).Msg("sync job panicked")
		}
	}()
	return w.runner.Run(ctx, job)
}

func (w *SyncWorker) ack(ctx context.Context, entry queue.Entry, log zerolog.Logger) {
	if err := w.stream.Ack(ctx, entry.ID); err != nil {
		log.Error().Err(err).Msg("failed to ack sync job")
	}
}

func (w *SyncWorker) requeue(ctx context.Context, entry queue.Entry, job syncdomain.SyncJob, log zerolog.Logger) {
	id, err := w.stream.Publish(ctx, job)
	if err != nil {
		log.Warn().Err(err).Msg("requeue failed, leaving job pending")
		return
	}
	log.Debug().Str("requeued_as", id).Msg("sync job requeued")
	w.ack(ctx, entry, log)
}

func (w *SyncWorker) deadLetter(ctx context.Context, entry queue.Entry, reason string, log zerolog.Logger) {
	if err := w.stream.DeadLetter(ctx, entry, reason); err != nil {
		log.Error().Err(err).Msg("failed to dead-letter sync job")
	}
}
