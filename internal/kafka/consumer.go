package kafka

import (
	"context"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler must return nil only when the message was processed and its offset
// may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// reader is the part of *kafka.Reader the consumer uses.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       reader
	workers int

	// RetryMin and RetryMax bound the backoff between attempts at a failing
	// message.
	RetryMin, RetryMax time.Duration
}

func NewConsumer(brokers []string, group string, topics []string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, workers)
}

func newConsumer(r reader, workers int) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, RetryMin: 200 * time.Millisecond, RetryMax: 10 * time.Second}
}

// Start fetches messages and hands them to the worker pool until ctx ends.
// Each partition is served by one worker, in order, and a message is retried
// until the handler succeeds; its offset is committed only then, so a later
// commit never skips a failed message.
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
				if !c.process(ctx, id, h, m) {
					return
				}
			}
		}(i, queues[i])
	}
	defer wg.Wait()
	defer func() {
		for _, q := range queues {
			close(q)
		}
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		select {
		case queues[c.worker(m)] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Consumer) worker(m kafka.Message) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(m.Topic))
	return int((h.Sum32() + uint32(m.Partition)) % uint32(c.workers))
}

// process runs h on m until it succeeds, then commits. It returns false when
// ctx ended first.
func (c *Consumer) process(ctx context.Context, id int, h Handler, m kafka.Message) bool {
	wait := c.RetryMin
	for {
		err := h(ctx, m)
		if err == nil {
			break
		}
		log.Printf("consumer worker %d: %s/%d@%d: %v (retry in %s)", id, m.Topic, m.Partition, m.Offset, err, wait)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
		if wait *= 2; wait > c.RetryMax {
			wait = c.RetryMax
		}
	}
	if err := c.r.CommitMessages(ctx, m); err != nil {
		log.Printf("consumer worker %d: commit: %v", id, err)
	}
	return true
}
