package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Handler must return nil only when the message was processed and its offset
// may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

const (
	minBackoff = 200 * time.Millisecond
	maxBackoff = 10 * time.Second
)

// Consumer fans messages out to workers by partition, so events sharing a
// partition key are handled in order. A failing message is retried in place
// with capped exponential backoff until it succeeds or ctx ends.
type Consumer struct {
	r       *kafka.Reader
	workers int
	log     zerolog.Logger

	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int, log zerolog.Logger) *Consumer {
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
		r:          r,
		workers:    workers,
		log:        log.With().Str("topic", topic).Str("group", group).Logger(),
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
	}
}

func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	queues := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan kafka.Message, 128)
		wg.Add(1)
		go func(id int, jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				if !c.process(ctx, id, m, h) {
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					c.log.Error().Err(err).Int64("offset", m.Offset).Msg("commit")
				}
			}
		}(i, queues[i])
	}
	stop := func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
	}

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
		case queues[workerFor(m.Partition, c.workers)] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

// process runs h until it succeeds and reports whether the offset may be
// committed. It gives up only when ctx is done.
func (c *Consumer) process(ctx context.Context, worker int, m kafka.Message, h Handler) bool {
	delay := c.minBackoff
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		c.log.Error().Err(err).
			Int("worker", worker).
			Int("partition", m.Partition).
			Int64("offset", m.Offset).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("handle message")

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
		delay = nextBackoff(delay, c.maxBackoff)
	}
}

func workerFor(partition, workers int) int {
	if partition < 0 {
		partition = -partition
	}
	return partition % workers
}

func nextBackoff(d, limit time.Duration) time.Duration {
	d *= 2
	if d > limit {
		return limit
	}
	return d
}
