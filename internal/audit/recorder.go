package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"adminpanel/internal/models"

	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// ActivitySink accepts activity records on a best-effort basis.
type ActivitySink interface {
	Activity(rec *models.ActivityLog)
}

// LoginAttemptSink accepts login attempt records on a best-effort basis.
type LoginAttemptSink interface {
	LoginAttempt(a *models.LoginAttempt)
}

type job struct {
	activity *models.ActivityLog
	attempt  *models.LoginAttempt
}

func (j job) kind() string {
	if j.attempt != nil {
		return kindLoginAttempt
	}
	return kindActivity
}

// Recorder hands records to the Store without ever returning an error to
// the caller. With a positive queue size a single background goroutine does
// the writes and a full queue drops records; with size zero writes happen
// inline. Failures are counted and logged, nothing else.
type Recorder struct {
	store   *Store
	log     *zap.Logger
	metrics *Metrics

	queue  chan job
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

func NewRecorder(store *Store, log *zap.Logger, metrics *Metrics, queueSize int) *Recorder {
	r := &Recorder{
		store:   store,
		log:     log,
		metrics: metrics,
	}
	if queueSize > 0 {
		r.queue = make(chan job, queueSize)
		r.done = make(chan struct{})
		go r.run()
	}
	return r
}

// Activity queues rec for persistence.
func (r *Recorder) Activity(rec *models.ActivityLog) {
	if rec == nil {
		return
	}
	r.submit(job{activity: rec})
}

// LoginAttempt queues a for persistence.
func (r *Recorder) LoginAttempt(a *models.LoginAttempt) {
	if a == nil {
		return
	}
	status := "failure"
	if a.Success {
		status = "success"
	}
	r.metrics.LoginAttempts.WithLabelValues(status).Inc()
	r.submit(job{attempt: a})
}

func (r *Recorder) submit(j job) {
	if r.queue == nil {
		r.write(j)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(j, "recorder closed")
		return
	}
	select {
	case r.queue <- j:
	default:
		r.drop(j, "queue full")
	}
}

func (r *Recorder) drop(j job, reason string) {
	r.metrics.RecordsDropped.WithLabelValues(j.kind()).Inc()
	r.log.Warn("audit record dropped", zap.String("kind", j.kind()), zap.String("reason", reason))
}

func (r *Recorder) run() {
	defer close(r.done)
	for j := range r.queue {
		r.write(j)
	}
}

func (r *Recorder) write(j job) {
	defer func() {
		if p := recover(); p != nil {
			r.fail(j, fmt.Errorf("panic: %v", p))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var err error
	if j.attempt != nil {
		err = r.store.AppendLoginAttempt(ctx, j.attempt)
	} else {
		err = r.store.AppendActivity(ctx, j.activity)
	}
	if err != nil {
		r.fail(j, err)
		return
	}
	r.metrics.RecordsWritten.WithLabelValues(j.kind()).Inc()
}

func (r *Recorder) fail(j job, err error) {
	r.metrics.WriteFailures.WithLabelValues(j.kind()).Inc()
	r.log.Warn("audit write failed", zap.String("kind", j.kind()), zap.Error(err))
}

// Close stops accepting records and waits for queued ones to be written or
// for ctx to expire.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	if r.queue != nil {
		close(r.queue)
	}
	r.mu.Unlock()

	if r.done == nil {
		return nil
	}
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
