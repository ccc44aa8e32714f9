package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/domain"
)

func TestTaskSchedulerDelaysDelivery(t *testing.T) {
	q := NewLocalQueue(8, 1, nil)
	defer q.Close()
	scheduler := NewTaskScheduler(q)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	args := domain.TaskArgs{UserID: "u1", ReportID: "r1", DownloadLink: "http://localhost:8000/static/reports/a.pdf"}
	if err := scheduler.Schedule(ctx, 150*time.Millisecond, domain.TaskSendReminder, args); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if q.Pending() != 1 {
		t.Fatalf("expected task to wait on a timer, pending=%d", q.Pending())
	}

	received := make(chan domain.QueueMessage, 1)
	go func() {
		_ = q.Consume(ctx, func(_ context.Context, message domain.QueueMessage) error {
			received <- message
			return nil
		})
	}()

	select {
	case message := <-received:
		if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
			t.Fatalf("task ran too early after %s", elapsed)
		}
		if message.Task != domain.TaskSendReminder || message.Args != args {
			t.Fatalf("unexpected message: %+v", message)
		}
		if message.TaskID == "" {
			t.Fatalf("expected task id to be set")
		}
	case <-ctx.Done():
		t.Fatalf("task was never delivered")
	}
}

func TestLocalQueueFailedTaskGoesToDLQWithoutRetry(t *testing.T) {
	q := NewLocalQueue(8, 0, nil)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu    sync.Mutex
		calls int
	)
	go func() {
		_ = q.Consume(ctx, func(context.Context, domain.QueueMessage) error {
			mu.Lock()
			calls++
			mu.Unlock()
			return errors.New("boom")
		})
	}()

	if err := q.Enqueue(ctx, domain.QueueMessage{TaskID: "t1", Task: domain.TaskConditionalCall}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for q.DLQSize() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if q.DLQSize() != 1 {
		t.Fatalf("expected one DLQ entry, got %d", q.DLQSize())
	}

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected exactly one handler call, got %d", calls)
	}
}

func TestLocalQueueCloseStopsPendingTimers(t *testing.T) {
	q := NewLocalQueue(8, 1, nil)
	scheduler := NewTaskScheduler(q)

	if err := scheduler.Schedule(context.Background(), time.Hour, domain.TaskConditionalCall, domain.TaskArgs{ReportID: "r1"}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if q.Pending() != 0 {
		t.Fatalf("expected timers to be stopped, pending=%d", q.Pending())
	}
	if err := q.Enqueue(context.Background(), domain.QueueMessage{TaskID: "late"}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed after close, got %v", err)
	}
}

func TestParseStreamMessageRoundTripsFields(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	original := domain.QueueMessage{
		TaskID:      "t1",
		Task:        domain.TaskConditionalCall,
		Args:        domain.TaskArgs{UserID: "u1", ReportID: "r1", DownloadLink: "http://x/y.pdf"},
		Attempt:     0,
		NotBefore:   now.Add(5 * time.Second),
		RequestedAt: now,
	}
	values, err := streamValues(original)
	if err != nil {
		t.Fatalf("stream values: %v", err)
	}
	values["attempt"] = "0"

	parsed, err := parseStreamMessage(redis.XMessage{ID: "1-0", Values: values})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.TaskID != original.TaskID || parsed.Task != original.Task || parsed.Args != original.Args {
		t.Fatalf("unexpected parsed message: %+v", parsed)
	}
	if !parsed.NotBefore.Equal(original.NotBefore) {
		t.Fatalf("not_before mismatch: %s", parsed.NotBefore)
	}

	delete(values, "args")
	if _, err := parseStreamMessage(redis.XMessage{ID: "2-0", Values: values}); err == nil {
		t.Fatalf("expected error for missing args")
	}
}
