package queue

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/domain"
)

var ErrQueueClosed = errors.New("queue closed")

// LocalQueue is a fallback queue used when Redis is not configured.
// Tasks not yet due wait on a timer and are lost on process exit.
type LocalQueue struct {
	ch          chan domain.QueueMessage
	maxAttempts int
	logger      *log.Logger
	now         func() time.Time

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
	done   chan struct{}

	dlqMu sync.Mutex
	dlq   []domain.QueueMessage
}

func NewLocalQueue(bufferSize, maxAttempts int, logger *log.Logger) *LocalQueue {
	if bufferSize <= 0 {
		bufferSize = 512
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &LocalQueue{
		ch:          make(chan domain.QueueMessage, bufferSize),
		maxAttempts: maxAttempts,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		timers:      make(map[string]*time.Timer),
		done:        make(chan struct{}),
		dlq:         make([]domain.QueueMessage, 0),
	}
}

func (q *LocalQueue) Enqueue(ctx context.Context, message domain.QueueMessage) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}

	wait := message.NotBefore.Sub(q.now())
	if wait > 0 {
		key := message.TaskID + "/" + message.NotBefore.Format(time.RFC3339Nano)
		q.timers[key] = time.AfterFunc(wait, func() {
			q.mu.Lock()
			delete(q.timers, key)
			q.mu.Unlock()
			q.deliver(message)
		})
		q.mu.Unlock()
		return nil
	}
	q.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrQueueClosed
	case q.ch <- message:
		return nil
	}
}

func (q *LocalQueue) deliver(message domain.QueueMessage) {
	select {
	case <-q.done:
		q.logf("local queue dropped task on close task_id=%s task=%s", message.TaskID, message.Task)
	case q.ch <- message:
	}
}

// Consume may be called from several goroutines; each message goes to one of them.
func (q *LocalQueue) Consume(ctx context.Context, handler func(context.Context, domain.QueueMessage) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.done:
			return ErrQueueClosed
		case message := <-q.ch:
			err := handler(ctx, message)
			if err == nil {
				continue
			}

			message.Attempt++
			if message.Attempt >= q.maxAttempts {
				q.dlqMu.Lock()
				q.dlq = append(q.dlq, message)
				q.dlqMu.Unlock()
				q.logf("local queue moved task to DLQ task_id=%s task=%s err=%v", message.TaskID, message.Task, err)
				continue
			}

			message.NotBefore = q.now().Add(time.Duration(message.Attempt) * 500 * time.Millisecond)
			if requeueErr := q.Enqueue(ctx, message); requeueErr != nil {
				q.logf("local queue requeue failed task_id=%s err=%v", message.TaskID, requeueErr)
			}
		}
	}
}

// Pending returns the number of tasks waiting on a timer.
func (q *LocalQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.timers)
}

func (q *LocalQueue) DLQSize() int {
	q.dlqMu.Lock()
	defer q.dlqMu.Unlock()
	return len(q.dlq)
}

// Close stops pending timers and releases consumers.
func (q *LocalQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	for key, timer := range q.timers {
		timer.Stop()
		delete(q.timers, key)
	}
	close(q.done)
	return nil
}

func (q *LocalQueue) logf(format string, args ...any) {
	if q.logger != nil {
		q.logger.Printf(format, args...)
	}
}
