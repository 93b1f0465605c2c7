package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tewereus/prime-property/pkg/logger"
	"github.com/tewereus/prime-property/pkg/redis"
)

// Message is one entry read from the stream. Attempts counts delivery
// tries, a message past MaxAttempts moves to the dead letter stream.
type Message struct {
	ID        string
	Data      []byte
	Metadata  map[string]string
	Timestamp time.Time
	Attempts  int
}

// Handler processes one message. A nil return acks the message, an error
// leaves it pending so the reclaim loop redelivers it.
type Handler func(ctx context.Context, msg *Message) error

type Config struct {
	Stream       string
	Group        string
	Consumer     string
	MaxAttempts  int
	ClaimIdle    time.Duration
	PollInterval time.Duration
	BatchSize    int64
	MaxLen       int64
	DeadLetter   bool
}

// Queue is an at-least-once delivery queue on redis streams. Consumers in
// the same group share the stream, unacked messages are reclaimed after
// ClaimIdle so a crashed worker never loses a callback.
type Queue struct {
	adapter redis.RedisAdapter
	config  Config
	handler Handler
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type Stats struct {
	TotalMessages   int64
	PendingMessages int64
	ConsumerCount   int64
}

func New(adapter redis.RedisAdapter, config Config) (*Queue, error) {
	if config.Stream == "" {
		return nil, fmt.Errorf("stream name is required")
	}
	if config.Group == "" {
		config.Group = "default-group"
	}
	if config.Consumer == "" {
		config.Consumer = fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = 3
	}
	if config.ClaimIdle == 0 {
		config.ClaimIdle = 30 * time.Second
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		adapter: adapter,
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
	}

	// Group may already exist from a previous run.
	_ = q.adapter.XGroupCreateMkStream(config.Stream, config.Group, "0")

	return q, nil
}

func (q *Queue) Publish(ctx context.Context, data []byte, metadata map[string]string) (string, error) {
	values := map[string]interface{}{
		"data":      string(data),
		"timestamp": time.Now().Unix(),
		"attempts":  0,
	}
	for k, v := range metadata {
		values["meta_"+k] = v
	}

	id, err := q.adapter.XAdd(q.config.Stream, values)
	if err != nil {
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	if q.config.MaxLen > 0 {
		_ = q.adapter.XTrimApprox(q.config.Stream, q.config.MaxLen)
	}

	return id, nil
}

func (q *Queue) PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return q.Publish(ctx, jsonData, metadata)
}

// Consume starts the read and reclaim loops. It returns immediately, the
// loops run until Stop.
func (q *Queue) Consume(handler Handler) error {
	if handler == nil {
		return fmt.Errorf("message handler is required")
	}

	q.handler = handler
	q.wg.Add(1)
	go q.consumeLoop()

	return nil
}

func (q *Queue) consumeLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.readNew()
			q.reclaimIdle()
		}
	}
}

func (q *Queue) readNew() {
	messages, err := q.adapter.XReadGroup(
		q.config.Group,
		q.config.Consumer,
		q.config.Stream,
		">",
		q.config.BatchSize,
	)
	if err != nil {
		if err != redis.NilError {
			logger.Warn("Failed to read from stream", "stream", q.config.Stream, "error", err)
		}
		return
	}

	for _, streamMsg := range messages {
		q.handleMessage(q.decode(streamMsg))
	}
}

// reclaimIdle takes over messages another consumer read but never acked.
func (q *Queue) reclaimIdle() {
	pending, err := q.adapter.XPending(q.config.Stream, q.config.Group)
	if err != nil || pending == nil || pending.Count == 0 {
		return
	}

	pendingExt, err := q.adapter.XPendingExt(q.config.Stream, q.config.Group, "-", "+", 100)
	if err != nil || len(pendingExt) == 0 {
		return
	}

	var ids []string
	for _, msg := range pendingExt {
		if msg.Idle >= q.config.ClaimIdle {
			ids = append(ids, msg.ID)
		}
	}
	if len(ids) == 0 {
		return
	}

	messages, err := q.adapter.XClaim(
		q.config.Stream,
		q.config.Group,
		q.config.Consumer,
		q.config.ClaimIdle,
		ids...,
	)
	if err != nil {
		return
	}

	for _, streamMsg := range messages {
		msg := q.decode(streamMsg)
		msg.Attempts++
		q.handleMessage(msg)
	}
}

func (q *Queue) handleMessage(msg *Message) {
	if msg.Attempts >= q.config.MaxAttempts {
		q.deadLetter(msg)
		q.ack(msg.ID)
		return
	}

	ctx, cancel := context.WithTimeout(q.ctx, q.config.ClaimIdle)
	defer cancel()

	if err := q.handler(ctx, msg); err != nil {
		// Leave pending, the reclaim loop redelivers.
		return
	}

	q.ack(msg.ID)
}

func (q *Queue) ack(messageID string) {
	if err := q.adapter.XAck(q.config.Stream, q.config.Group, messageID); err != nil {
		logger.Warn("Failed to ack message", "stream", q.config.Stream, "id", messageID, "error", err)
	}
}

func (q *Queue) deadLetter(msg *Message) {
	if !q.config.DeadLetter {
		return
	}

	values := map[string]interface{}{
		"data":            string(msg.Data),
		"original_id":     msg.ID,
		"attempts":        msg.Attempts,
		"failed_at":       time.Now().Unix(),
		"original_stream": q.config.Stream,
	}
	for k, v := range msg.Metadata {
		values["meta_"+k] = v
	}

	if _, err := q.adapter.XAdd(q.config.Stream+":dlq", values); err != nil {
		logger.Error("Failed to dead-letter message", "stream", q.config.Stream, "id", msg.ID, "error", err)
	}
}

func (q *Queue) decode(streamMsg redis.StreamMessage) *Message {
	msg := &Message{
		ID:       streamMsg.ID,
		Metadata: make(map[string]string),
	}

	for k, v := range streamMsg.Values {
		switch k {
		case "data":
			if data, ok := v.(string); ok {
				msg.Data = []byte(data)
			}
		case "attempts":
			if attempts, ok := v.(string); ok {
				fmt.Sscanf(attempts, "%d", &msg.Attempts)
			}
		default:
			if len(k) > 5 && k[:5] == "meta_" {
				if val, ok := v.(string); ok {
					msg.Metadata[k[5:]] = val
				}
			}
		}
	}

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	return msg
}

func (q *Queue) Stop(timeout time.Duration) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for queue to stop")
	}
}

func (q *Queue) GetStats() (*Stats, error) {
	totalMessages, err := q.adapter.XLen(q.config.Stream)
	if err != nil {
		return nil, err
	}

	stats := &Stats{TotalMessages: totalMessages}

	if pending, err := q.adapter.XPending(q.config.Stream, q.config.Group); err == nil && pending != nil {
		stats.PendingMessages = pending.Count
		stats.ConsumerCount = int64(len(pending.Consumers))
	}

	return stats, nil
}
