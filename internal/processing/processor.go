// Package processing runs document reviews on an in-process worker pool when
// no Redis queue is configured. Goroutines read jobs from a buffered channel.
package processing

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/RestorePortal/internal/queue"
)

// ErrQueueFull is returned when the job buffer has no room.
var ErrQueueFull = errors.New("processing queue full")

// ReviewFunc performs one document review.
type ReviewFunc func(ctx context.Context, payload queue.ReviewPayload) error

// Processor consumes review jobs. It implements queue.Dispatcher.
type Processor struct {
	review  ReviewFunc
	queue   chan queue.ReviewPayload
	workers int
	log     logrus.FieldLogger
	wg      sync.WaitGroup
}

var _ queue.Dispatcher = (*Processor)(nil)

// New builds a Processor with queue capacity tied to worker count.
func New(review ReviewFunc, workers int, log logrus.FieldLogger) *Processor {
	if workers <= 0 {
		workers = 1
	}
	return &Processor{
		review:  review,
		queue:   make(chan queue.ReviewPayload, workers*4),
		workers: workers,
		log:     log,
	}
}

// Start launches worker goroutines that run until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Wait blocks until every worker has exited.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// DispatchReview queues a job without blocking. When the buffer is full the
// job is dropped and ErrQueueFull returned.
func (p *Processor) DispatchReview(ctx context.Context, payload queue.ReviewPayload) error {
	select {
	case p.queue <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Processor) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.queue:
			if err := p.review(ctx, job); err != nil {
				p.log.WithError(err).WithField("application_id", job.ApplicationID).Warn("review job failed")
			}
		}
	}
}
