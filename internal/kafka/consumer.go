package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/jmehdipour/restaurant-crm/internal/logger"
)

type Config struct {
	Brokers        []string
	Topic          string
	GroupID        string
	MinBytes       int           // default 1KB
	MaxBytes       int           // default 10MB
	CommitInterval time.Duration // default 1s
	MaxWait        time.Duration // default 50ms
}

// Consumer is a thin wrapper around segmentio/kafka-go Reader.
type Consumer struct {
	r     *kafka.Reader
	topic string
}

func NewConsumer(c Config) *Consumer {
	min := c.MinBytes
	if min <= 0 {
		min = 1 << 10
	}
	max := c.MaxBytes
	if max <= 0 {
		max = 10 << 20
	}
	ci := c.CommitInterval
	if ci <= 0 {
		ci = time.Second
	}
	mw := c.MaxWait
	if mw <= 0 {
		mw = 50 * time.Millisecond
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.Brokers,
		GroupID:        c.GroupID,
		Topic:          c.Topic,
		MinBytes:       min,
		MaxBytes:       max,
		CommitInterval: ci,
		MaxWait:        mw,
	})
	return &Consumer{r: r, topic: c.Topic}
}

type Message = kafka.Message

func (c *Consumer) Fetch(ctx context.Context) (Message, error) {
	return c.r.FetchMessage(ctx)
}

func (c *Consumer) Commit(ctx context.Context, m Message) error {
	return c.r.CommitMessages(ctx, m)
}

func (c *Consumer) Close() error { return c.r.Close() }

// Handler processes one message. Returning an error leaves the offset
// uncommitted so the message is redelivered after a restart.
type Handler func(ctx context.Context, m Message) error

// Run fetches and handles messages one at a time until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, h Handler) error {
	log := logger.Named("kafka-consumer").With(zap.String("topic", c.topic))
	for {
		m, err := c.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("fetch failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}
		if err := h(ctx, m); err != nil {
			log.Error("handle failed", zap.Int64("offset", m.Offset), zap.Error(err))
			continue
		}
		if err := c.Commit(ctx, m); err != nil && ctx.Err() == nil {
			log.Warn("commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
		}
	}
}
