package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/domain"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/metrics"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/queue"
)

// TaskHandler runs one deferred task. Returning an error hands the message
// back to the queue, which moves it to the DLQ once attempts are exhausted.
type TaskHandler func(ctx context.Context, args domain.TaskArgs) error

// Processor is a pool of goroutines consuming queued tasks and dispatching
// them by name.
type Processor struct {
	consumer    queue.Consumer
	handlers    map[domain.TaskName]TaskHandler
	concurrency int
	metrics     *metrics.Metrics
	logger      *log.Logger
	retryDelay  time.Duration
}

func NewProcessor(
	consumer queue.Consumer,
	handlers map[domain.TaskName]TaskHandler,
	concurrency int,
	metrics *metrics.Metrics,
	logger *log.Logger,
) *Processor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Processor{
		consumer:    consumer,
		handlers:    handlers,
		concurrency: concurrency,
		metrics:     metrics,
		logger:      logger,
		retryDelay:  2 * time.Second,
	}
}

// Start blocks until ctx is cancelled and every consumer loop has returned.
func (p *Processor) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			p.consumeLoop(ctx, slot)
		}(i)
	}
	wg.Wait()
}

func (p *Processor) consumeLoop(ctx context.Context, slot int) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := p.consumer.Consume(ctx, p.processMessage)
		if err == nil || ctx.Err() != nil {
			return
		}
		p.logf("worker consume loop error slot=%d err=%v", slot, err)

		timer := time.NewTimer(p.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (p *Processor) processMessage(ctx context.Context, message domain.QueueMessage) error {
	handler, ok := p.handlers[message.Task]
	if !ok {
		p.metrics.TaskOutcome(string(message.Task), "unknown")
		return fmt.Errorf("unsupported task: %s", message.Task)
	}

	started := time.Now()
	if err := handler(ctx, message.Args); err != nil {
		p.metrics.TaskOutcome(string(message.Task), "error")
		p.logf("task failed task=%s task_id=%s report_id=%s err=%v", message.Task, message.TaskID, message.Args.ReportID, err)
		return err
	}

	p.logf("task processed task=%s task_id=%s report_id=%s lag=%s",
		message.Task, message.TaskID, message.Args.ReportID, started.Sub(message.NotBefore).Round(time.Millisecond))
	return nil
}

func (p *Processor) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}
