package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/glec-io/lead-pipeline/pkg/logging"
)

// DispatchRecorder stores the provider message id on the lead after a
// successful send. leads.Repository satisfies it.
type DispatchRecorder interface {
	SetDispatchID(ctx context.Context, id, dispatchID string) error
}

const (
	defaultWorkerCount = 2
	defaultWaitSeconds = 2
	defaultBatchSize   = 5
	deleteTimeout      = 5 * time.Second
)

// Worker consumes email jobs from the queue and sends them.
type Worker struct {
	queue   Queue
	sender  EmailSender
	records DispatchRecorder
	logger  *logging.Logger

	workers   int
	waitSecs  int
	batchSize int
	wg        sync.WaitGroup
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*Worker)

// WithWorkerCount sets the number of consumer goroutines.
func WithWorkerCount(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.workers = n
		}
	}
}

// NewWorker creates the queue consumer. records may be nil when no lead
// correlation is needed (sales alerts only).
func NewWorker(queue Queue, sender EmailSender, records DispatchRecorder, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	w := &Worker{
		queue:     queue,
		sender:    sender,
		records:   records,
		logger:    logger,
		workers:   defaultWorkerCount,
		waitSecs:  defaultWaitSeconds,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the consumer goroutines. They exit when ctx is canceled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.run(ctx)
		}()
	}
}

// Wait blocks until all consumers have exited.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.batchSize, w.waitSecs)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue receive failed", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range messages {
			if w.process(ctx, msg.Body) {
				delCtx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
				if err := w.queue.Delete(delCtx, msg.ReceiptHandle); err != nil {
					w.logger.Error("queue delete failed", "error", err, "message_id", msg.ID)
				}
				cancel()
			}
		}
	}
}

// process handles one job; it returns true when the message should be
// deleted from the queue. Malformed payloads are deleted so they do not
// poison the queue; send failures are retried by leaving the message.
func (w *Worker) process(ctx context.Context, body string) bool {
	var payload queuePayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		w.logger.Error("dropping malformed email job", "error", err)
		return true
	}

	dispatchID, err := w.sender.Send(ctx, payload.Email)
	if err != nil {
		w.logger.Error("email send failed", "error", err, "job_id", payload.ID, "kind", payload.Kind)
		return false
	}

	if payload.Kind == jobKindLeadConfirmation && payload.LeadID != "" && w.records != nil {
		if err := w.records.SetDispatchID(ctx, payload.LeadID, dispatchID); err != nil {
			// The mail already went out; webhook events for it will not
			// match a lead, which shows up as unmatched ids in the logs.
			w.logger.Error("failed to record dispatch id", "error", err, "lead_id", payload.LeadID, "message_id", dispatchID)
		}
	}

	w.logger.Info("email job processed", "job_id", payload.ID, "kind", payload.Kind, "message_id", dispatchID)
	return true
}
