package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaExecutor hands jobs to a topic. Messages are keyed by payment id so one
// payment's jobs land on one partition and are consumed in order. The handle
// completes once the broker has acknowledged the message, not when the job ran.
type KafkaExecutor struct {
	writer *kafka.Writer
	topic  string
	logger *zap.Logger
}

func NewKafkaExecutor(brokers []string, topic string, logger *zap.Logger) *KafkaExecutor {
	return &KafkaExecutor{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		topic:  topic,
		logger: logger.Named("kafka-executor"),
	}
}

func (e *KafkaExecutor) Submit(ctx context.Context, job ReconcileJob) (*JobHandle, error) {
	value, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal reconcile job: %w", err)
	}

	handle := newJobHandle()
	err = e.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(job.PaymentID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "job_id", Value: []byte(handle.ID)},
		},
	})
	if err != nil {
		e.logger.Error("failed to publish reconcile job",
			zap.String("topic", e.topic),
			zap.String("payment_id", job.PaymentID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("publish reconcile job: %w", err)
	}

	handle.complete(nil)
	return handle, nil
}

func (e *KafkaExecutor) Close() error {
	return e.writer.Close()
}

// KafkaConsumer reconciles jobs published by KafkaExecutor. Offsets are
// committed after processing (at-least-once); Reconcile tolerates repeats.
type KafkaConsumer struct {
	reader      *kafka.Reader
	reconciler  Reconciler
	logger      *zap.Logger
	maxAttempts int
	backoffBase time.Duration
}

func NewKafkaConsumer(brokers []string, groupID, topic string, reconciler Reconciler, logger *zap.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		reconciler:  reconciler,
		logger:      logger.Named("kafka-consumer"),
		maxAttempts: 3,
		backoffBase: 500 * time.Millisecond,
	}
}

func (c *KafkaConsumer) Run(ctx context.Context) error {
	c.logger.Info("starting kafka consumer",
		zap.String("topic", c.reader.Config().Topic),
		zap.String("group_id", c.reader.Config().GroupID),
	)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer context cancelled, stopping")
				return nil
			}
			c.logger.Error("failed to fetch message from kafka", zap.Error(err))
			continue
		}

		c.process(ctx, m)

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Error("failed to commit message offset",
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err),
			)
		}
	}
}

func (c *KafkaConsumer) process(ctx context.Context, m kafka.Message) {
	var job ReconcileJob
	if err := json.Unmarshal(m.Value, &job); err != nil {
		c.logger.Error("dropping undecodable reconcile job",
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Error(err),
		)
		return
	}

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err := c.reconciler.Reconcile(ctx, job)
		if err == nil {
			return
		}
		c.logger.Warn("reconcile attempt failed",
			zap.String("payment_id", job.PaymentID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == c.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoffBase * time.Duration(1<<(attempt-1))):
		}
	}
	c.logger.Error("giving up on reconcile job", zap.String("payment_id", job.PaymentID.String()))
}

func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}
