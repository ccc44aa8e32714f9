package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yousraMsaouri/ChatBot-Inteligent-Assistant-de-Redaction-de-Rapports/internal/domain"
)

type StreamsConfig struct {
	Addr        string
	Password    string
	DB          int
	Stream      string
	DelayedKey  string
	DLQStream   string
	Group       string
	Consumer    string
	MaxAttempts int
	Logger      *log.Logger
}

// StreamsQueue implements Producer+Consumer backed by Redis.
// Tasks not yet due sit in a sorted set scored by NotBefore and are promoted
// into the stream by consumers.
type StreamsQueue struct {
	client      *redis.Client
	stream      string
	delayedKey  string
	dlqStream   string
	group       string
	consumer    string
	maxAttempts int
	logger      *log.Logger
	now         func() time.Time
}

func NewStreamsQueue(ctx context.Context, cfg StreamsConfig) (*StreamsQueue, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.Stream == "" {
		cfg.Stream = "report_tasks"
	}
	if cfg.DelayedKey == "" {
		cfg.DelayedKey = cfg.Stream + "_delayed"
	}
	if cfg.DLQStream == "" {
		cfg.DLQStream = cfg.Stream + "_dlq"
	}
	if cfg.Group == "" {
		cfg.Group = "report_workers"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "api-1"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	queue := &StreamsQueue{
		client:      client,
		stream:      cfg.Stream,
		delayedKey:  cfg.DelayedKey,
		dlqStream:   cfg.DLQStream,
		group:       cfg.Group,
		consumer:    cfg.Consumer,
		maxAttempts: cfg.MaxAttempts,
		logger:      cfg.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
	if err := queue.ensureGroup(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return queue, nil
}

func (q *StreamsQueue) Close() error {
	return q.client.Close()
}

func (q *StreamsQueue) Enqueue(ctx context.Context, message domain.QueueMessage) error {
	if message.NotBefore.After(q.now()) {
		encoded, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("encode delayed task: %w", err)
		}
		err = q.client.ZAdd(ctx, q.delayedKey, redis.Z{
			Score:  float64(message.NotBefore.UnixMilli()),
			Member: string(encoded),
		}).Err()
		if err != nil {
			return fmt.Errorf("enqueue delayed task: %w", err)
		}
		return nil
	}
	return q.addToStream(ctx, message)
}

func (q *StreamsQueue) addToStream(ctx context.Context, message domain.QueueMessage) error {
	values, err := streamValues(message)
	if err != nil {
		return err
	}
	if _, err := q.client.XAdd(ctx, &redis.XAddArgs{Stream: q.stream, Values: values}).Result(); err != nil {
		return fmt.Errorf("enqueue to stream: %w", err)
	}
	return nil
}

// promoteDue moves due tasks from the sorted set into the stream. ZREM decides
// which consumer wins a member, so each task is promoted once.
func (q *StreamsQueue) promoteDue(ctx context.Context) error {
	max := strconv.FormatInt(q.now().UnixMilli(), 10)
	members, err := q.client.ZRangeByScore(ctx, q.delayedKey, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    max,
		Offset: 0,
		Count:  100,
	}).Result()
	if err != nil {
		return fmt.Errorf("read delayed tasks: %w", err)
	}

	for _, member := range members {
		removed, err := q.client.ZRem(ctx, q.delayedKey, member).Result()
		if err != nil {
			return fmt.Errorf("claim delayed task: %w", err)
		}
		if removed != 1 {
			continue
		}

		var message domain.QueueMessage
		if err := json.Unmarshal([]byte(member), &message); err != nil {
			_ = q.sendToDLQ(ctx, domain.QueueMessage{}, "", fmt.Sprintf("decode delayed task: %v", err))
			continue
		}
		if err := q.addToStream(ctx, message); err != nil {
			_ = q.sendToDLQ(ctx, message, "", fmt.Sprintf("promote failed: %v", err))
		}
	}
	return nil
}

func (q *StreamsQueue) Consume(ctx context.Context, handler func(context.Context, domain.QueueMessage) error) error {
	if err := q.ensureGroup(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := q.promoteDue(ctx); err != nil {
			return err
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: q.consumer,
			Streams:  []string{q.stream, ">"},
			Count:    10,
			Block:    time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("xreadgroup: %w", err)
		}

		for _, stream := range streams {
			for _, item := range stream.Messages {
				q.handle(ctx, item, handler)
			}
		}
	}
}

func (q *StreamsQueue) handle(ctx context.Context, item redis.XMessage, handler func(context.Context, domain.QueueMessage) error) {
	message, parseErr := parseStreamMessage(item)
	if parseErr != nil {
		_ = q.sendToDLQ(ctx, domain.QueueMessage{}, item.ID, parseErr.Error())
		_ = q.ackAndDelete(ctx, item.ID)
		return
	}

	handleErr := handler(ctx, message)
	if handleErr == nil {
		_ = q.ackAndDelete(ctx, item.ID)
		return
	}

	message.Attempt++
	if message.Attempt >= q.maxAttempts {
		if q.logger != nil {
			q.logger.Printf("streams queue moved task to DLQ task_id=%s task=%s err=%v", message.TaskID, message.Task, handleErr)
		}
		_ = q.sendToDLQ(ctx, message, item.ID, handleErr.Error())
		_ = q.ackAndDelete(ctx, item.ID)
		return
	}

	message.NotBefore = q.now().Add(time.Duration(message.Attempt) * 500 * time.Millisecond)
	if requeueErr := q.Enqueue(ctx, message); requeueErr != nil {
		_ = q.sendToDLQ(ctx, message, item.ID, fmt.Sprintf("requeue failed: %v", requeueErr))
	}
	_ = q.ackAndDelete(ctx, item.ID)
}

func (q *StreamsQueue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "$").Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return fmt.Errorf("ensure stream group: %w", err)
}

func (q *StreamsQueue) ackAndDelete(ctx context.Context, streamID string) error {
	if err := q.client.XAck(ctx, q.stream, q.group, streamID).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	if err := q.client.XDel(ctx, q.stream, streamID).Err(); err != nil {
		return fmt.Errorf("xdel: %w", err)
	}
	return nil
}

func (q *StreamsQueue) sendToDLQ(ctx context.Context, message domain.QueueMessage, streamID, errorMessage string) error {
	args, _ := json.Marshal(message.Args)
	values := map[string]any{
		"stream_id": streamID,
		"task_id":   message.TaskID,
		"task":      string(message.Task),
		"args":      string(args),
		"attempt":   message.Attempt,
		"error":     errorMessage,
		"moved_at":  q.now().Format(time.RFC3339Nano),
	}
	if _, err := q.client.XAdd(ctx, &redis.XAddArgs{Stream: q.dlqStream, Values: values}).Result(); err != nil {
		return fmt.Errorf("send to dlq: %w", err)
	}
	return nil
}

func streamValues(message domain.QueueMessage) (map[string]any, error) {
	args, err := json.Marshal(message.Args)
	if err != nil {
		return nil, fmt.Errorf("encode task args: %w", err)
	}
	return map[string]any{
		"task_id":      message.TaskID,
		"task":         string(message.Task),
		"args":         string(args),
		"attempt":      message.Attempt,
		"not_before":   message.NotBefore.Format(time.RFC3339Nano),
		"requested_at": message.RequestedAt.Format(time.RFC3339Nano),
	}, nil
}

func parseStreamMessage(item redis.XMessage) (domain.QueueMessage, error) {
	getString := func(key string) (string, error) {
		value, ok := item.Values[key]
		if !ok {
			return "", fmt.Errorf("missing field %s", key)
		}
		switch casted := value.(type) {
		case string:
			return casted, nil
		case []byte:
			return string(casted), nil
		default:
			return fmt.Sprintf("%v", casted), nil
		}
	}
	getTime := func(key string) (time.Time, error) {
		raw, err := getString(key)
		if err != nil {
			return time.Time{}, err
		}
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		return parsed, nil
	}

	taskID, err := getString("task_id")
	if err != nil {
		return domain.QueueMessage{}, err
	}
	task, err := getString("task")
	if err != nil {
		return domain.QueueMessage{}, err
	}

	argsString, err := getString("args")
	if err != nil {
		return domain.QueueMessage{}, err
	}
	var args domain.TaskArgs
	if err := json.Unmarshal([]byte(argsString), &args); err != nil {
		return domain.QueueMessage{}, fmt.Errorf("invalid args: %w", err)
	}

	attemptString, err := getString("attempt")
	if err != nil {
		return domain.QueueMessage{}, err
	}
	attempt, err := strconv.Atoi(attemptString)
	if err != nil {
		return domain.QueueMessage{}, fmt.Errorf("invalid attempt: %w", err)
	}

	notBefore, err := getTime("not_before")
	if err != nil {
		return domain.QueueMessage{}, err
	}
	requestedAt, err := getTime("requested_at")
	if err != nil {
		return domain.QueueMessage{}, err
	}

	return domain.QueueMessage{
		TaskID:      taskID,
		Task:        domain.TaskName(task),
		Args:        args,
		Attempt:     attempt,
		NotBefore:   notBefore,
		RequestedAt: requestedAt,
	}, nil
}
