package kafka

import (
	"context"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"time"
)

// Handler harus return nil hanya jika proses sukses & boleh commit offset.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r           *kafka.Reader
	workers     int
	maxAttempts int
	backoff     time.Duration
	log         *zap.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{
		r:           r,
		workers:     workers,
		maxAttempts: 5,
		backoff:     200 * time.Millisecond,
		log:         log.With(zap.String("topic", topic), zap.String("group", group)),
	}
}

// Start blocking sampai ctx cancel. At-least-once: offset di-commit setelah handler sukses,
// atau setelah retry habis (pesan di-skip dan di-log).
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, c.workers)
	done := make(chan struct{})

	for i := 0; i < c.workers; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for m := range jobs {
				c.handle(ctx, h, m)
			}
		}()
	}
	stop := func() {
		close(jobs)
		for i := 0; i < c.workers; i++ {
			<-done
		}
	}

	// dispatcher loop
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) {
	log := c.log.With(zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))

	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err = h(ctx, m); err == nil {
			break
		}
		log.Warn("handler failed", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return // tidak commit; pesan akan dibaca ulang
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}
	if err != nil {
		log.Error("giving up on message", zap.ByteString("key", m.Key), zap.Error(err))
	}
	if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		log.Error("commit failed", zap.Error(err))
	}
}
