package queue

import (
	"context"
	"time"

	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/domain"
)

// Producer sends deferred tasks to a queue backend. Messages whose NotBefore
// lies in the future are held by the backend until due.
type Producer interface {
	Enqueue(ctx context.Context, message domain.QueueMessage) error
}

// Consumer receives due tasks and executes handlers.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, domain.QueueMessage) error) error
}

// Scheduler is what the report workflow depends on.
type Scheduler interface {
	Schedule(ctx context.Context, delay time.Duration, task domain.TaskName, args domain.TaskArgs) error
}
