package delivery

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/KellyGutierrez/notifycar-sub000/internal/metrics"
)

const (
	defaultWorkers    = 3
	defaultBufferSize = 100
	deadLetterTimeout = 5 * time.Second
)

type Options struct {
	Workers   int
	QueueSize int
	// Timeout bounds a single Deliver call.
	Timeout time.Duration
}

// Worker drains a buffered queue of jobs with a fixed pool of goroutines.
type Worker struct {
	sender  Sender
	db      *gorm.DB
	logger  *zap.Logger
	metrics *metrics.Metrics
	opts    Options
	queue   chan Job
	wg      sync.WaitGroup
	// dead letters written off the request path
	letters sync.WaitGroup
}

func NewWorker(sender Sender, db *gorm.DB, logger *zap.Logger, m *metrics.Metrics, opts Options) *Worker {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultBufferSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultWebhookTimeout
	}
	return &Worker{
		sender:  sender,
		db:      db,
		logger:  logger.Named("delivery").With(zap.String("channel", sender.Name())),
		metrics: m,
		opts:    opts,
		queue:   make(chan Job, opts.QueueSize),
	}
}

func (w *Worker) Channel() string { return w.sender.Name() }

// Ready reports whether the configured channel can deliver job.
func (w *Worker) Ready(job Job) bool { return w.sender.Ready(job) }

// Start launches the pool. Non-blocking.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.opts.Workers; i++ {
		w.wg.Add(1)
		go w.run(ctx)
	}
	w.logger.Info("delivery worker started",
		zap.Int("workers", w.opts.Workers),
		zap.Int("queue_size", w.opts.QueueSize),
	)
}

// Close waits for the pool to drain and for pending dead letters. Call after
// the Start context is cancelled.
func (w *Worker) Close() {
	w.wg.Wait()
	w.letters.Wait()
	w.logger.Info("delivery worker stopped")
}

// Enqueue hands job to the pool without blocking. A full queue dead-letters
// the job in the background and returns false.
func (w *Worker) Enqueue(job Job) bool {
	select {
	case w.queue <- job:
		w.metrics.DeliveryQueueDepth.Set(float64(len(w.queue)))
		return true
	default:
		w.metrics.DeliveriesTotal.WithLabelValues(w.sender.Name(), "dropped").Inc()
		w.logger.Warn("delivery queue full, dropping job",
			zap.String("notification_id", job.Payload.NotificationID))
		w.letters.Add(1)
		go func() {
			defer w.letters.Done()
			w.deadLetter(job, ReasonQueueFull, "delivery queue full")
		}()
		return false
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			// drain what is already buffered, then exit
			for {
				select {
				case job := <-w.queue:
					w.process(job)
				default:
					return
				}
			}
		case job := <-w.queue:
			w.process(job)
		}
	}
}

func (w *Worker) process(job Job) {
	w.metrics.DeliveryQueueDepth.Set(float64(len(w.queue)))

	// the request that produced the job is long gone, so its context is not used
	ctx, cancel := context.WithTimeout(context.Background(), w.opts.Timeout)
	defer cancel()

	start := time.Now()
	err := w.sender.Deliver(ctx, job)
	w.metrics.DeliveryDuration.WithLabelValues(w.sender.Name()).Observe(time.Since(start).Seconds())

	fields := []zap.Field{
		zap.String("notification_id", job.Payload.NotificationID),
		zap.Duration("duration", time.Since(start)),
	}
	if job.URL != "" {
		fields = append(fields, zap.String("url", RedactURL(job.URL)))
	}

	if err != nil {
		w.metrics.DeliveriesTotal.WithLabelValues(w.sender.Name(), "failed").Inc()
		w.logger.Error("delivery failed", append(fields, zap.Error(err))...)
		w.deadLetter(job, ReasonDeliveryError, err.Error())
		return
	}

	w.metrics.DeliveriesTotal.WithLabelValues(w.sender.Name(), "success").Inc()
	w.logger.Info("delivery sent", fields...)
}

func (w *Worker) deadLetter(job Job, reason, errMsg string) {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		w.logger.Error("marshal dead letter payload", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deadLetterTimeout)
	defer cancel()

	f := Failure{
		NotificationID: job.Payload.NotificationID,
		Channel:        w.sender.Name(),
		URL:            RedactURL(job.URL),
		Payload:        payload,
		Reason:         reason,
		Error:          errMsg,
	}
	if err := w.db.WithContext(ctx).Create(&f).Error; err != nil {
		w.logger.Error("failed to write dead letter",
			zap.String("notification_id", job.Payload.NotificationID),
			zap.Error(err),
		)
	}
}
