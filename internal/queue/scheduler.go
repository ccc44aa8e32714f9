package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/domain"
)

// TaskScheduler turns (delay, task, args) into a queue message.
type TaskScheduler struct {
	producer Producer
	now      func() time.Time
}

func NewTaskScheduler(producer Producer) *TaskScheduler {
	return &TaskScheduler{
		producer: producer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *TaskScheduler) Schedule(ctx context.Context, delay time.Duration, task domain.TaskName, args domain.TaskArgs) error {
	if s == nil || s.producer == nil {
		return errors.New("scheduler has no producer")
	}
	if task == "" {
		return errors.New("task name is required")
	}
	if delay < 0 {
		delay = 0
	}

	now := s.now()
	message := domain.QueueMessage{
		TaskID:      uuid.NewString(),
		Task:        task,
		Args:        args,
		Attempt:     0,
		NotBefore:   now.Add(delay),
		RequestedAt: now,
	}
	if err := s.producer.Enqueue(ctx, message); err != nil {
		return fmt.Errorf("schedule %s: %w", task, err)
	}
	return nil
}
