package worker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"runtime"
	"sync"
	"time"

	"example.com/jsonblog/internal/blog"
	appkafka "example.com/jsonblog/internal/broker"
	"example.com/jsonblog/internal/logger"
	"github.com/segmentio/kafka-go"
)

var logg = logger.New()

const commitTimeout = 5 * time.Second

// Worker consumes post events from Kafka and replays them into the store
// behind its blog.Service, keeping that store a mirror of the publisher's.
type Worker struct {
	blog         *blog.Service
	reader       appkafka.KafkaReader
	workerCount  int
	jobQueueSize int
}

// New creates a new concurrent Worker using pre-initialized dependencies.
func New(svc *blog.Service, reader appkafka.KafkaReader, workerCount, jobQueueSize int) *Worker {
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if jobQueueSize <= 0 {
		jobQueueSize = workerCount * 10
	}
	return &Worker{
		blog:         svc,
		reader:       reader,
		workerCount:  workerCount,
		jobQueueSize: jobQueueSize,
	}
}

// Run starts message reading and concurrent processing. Messages with the
// same key always go to the same goroutine and are applied in the order
// they were read. Every post event carries appkafka.CollectionKey, so the
// whole collection is replayed in publish order.
//
// A message is committed only after it has been applied. When ctx is done
// the reader stops and the lanes drain what they already hold.
func (w *Worker) Run(ctx context.Context) {
	if w.workerCount <= 0 {
		w.workerCount = 1
	}
	if w.jobQueueSize <= 0 {
		w.jobQueueSize = 10
	}

	logg.Info("worker", "Starting "+fmt.Sprint(w.workerCount)+" workers with queue size "+fmt.Sprint(w.jobQueueSize))

	shards := make([]chan kafka.Message, w.workerCount)
	var wg sync.WaitGroup

	for i := range shards {
		shards[i] = make(chan kafka.Message, w.jobQueueSize)
		wg.Add(1)
		go func(jobs <-chan kafka.Message) {
			defer wg.Done()
			w.processLoop(jobs)
		}(shards[i])
	}

	w.readLoop(ctx, shards)

	for _, jobs := range shards {
		close(jobs)
	}
	wg.Wait()
	logg.Info("worker", "All workers stopped gracefully")
}

// readLoop fetches Kafka messages and pushes them to the shard owning their key.
// A message fetched but not enqueued before shutdown stays uncommitted.
func (w *Worker) readLoop(ctx context.Context, shards []chan kafka.Message) {
	var retry int
	for {
		select {
		case <-ctx.Done():
			return
		default:
			msg, err := w.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				backoff := time.Duration(math.Min(1000, math.Pow(2, float64(retry)))) * time.Millisecond
				logg.Error("worker", "Kafka read error, backing off", err)
				if !waitWithContext(ctx, backoff) {
					return
				}
				retry++
				continue
			}
			retry = 0

			if len(msg.Value) == 0 {
				if !waitWithContext(ctx, 50*time.Millisecond) {
					return
				}
				continue
			}

			if !enqueue(ctx, shards[shardFor(msg.Key, len(shards))], msg) {
				return
			}
		}
	}
}

// enqueue hands msg to its lane. A lane with free space always takes the
// message, even when ctx is already done.
func enqueue(ctx context.Context, jobs chan<- kafka.Message, msg kafka.Message) bool {
	select {
	case jobs <- msg:
		return true
	default:
	}
	for {
		select {
		case jobs <- msg:
			return true
		case <-ctx.Done():
			return false
		case <-time.After(100 * time.Millisecond):
			logg.Info("worker", "Queue full, waiting to enqueue Kafka message")
		}
	}
}

// processLoop applies queued messages until its lane is closed.
func (w *Worker) processLoop(jobs <-chan kafka.Message) {
	for msg := range jobs {
		err := w.handleMessage(msg)
		switch {
		case errors.Is(err, errInvalidEvent):
			// never applicable, commit so it is not redelivered forever
			logg.Error("worker", "Skipping invalid post event", err)
		case err != nil:
			logg.Error("worker", "Failed to apply post event", err)
			continue
		}
		w.commit(msg)
	}
}

var errInvalidEvent = errors.New("invalid post event")

// handleMessage applies a single Kafka message. Empty messages are ignored.
func (w *Worker) handleMessage(msg kafka.Message) error {
	if len(msg.Value) == 0 {
		return nil
	}
	ev, err := appkafka.DecodeEvent(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidEvent, err)
	}
	if err := w.blog.Apply(ev); err != nil {
		return fmt.Errorf("apply %s: %w", ev.Type, err)
	}
	logg.Debug("worker", "Applied "+string(ev.Type)+" for post id="+ev.Post.ID)
	return nil
}

// commit acknowledges msg. It does not use the Run context, which may
// already be done while the lanes drain.
func (w *Worker) commit(msg kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()
	if err := w.reader.CommitMessages(ctx, msg); err != nil {
		logg.Error("worker", "Failed to commit Kafka offset", err)
	}
}

func shardFor(key []byte, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write(key)
	return int(h.Sum32() % uint32(n))
}

// waitWithContext waits for duration or context cancellation.
func waitWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Close shuts down the Kafka reader.
func (w *Worker) Close() error {
	logg.Info("worker", "Closing Kafka reader")
	if err := w.reader.Close(); err != nil {
		logg.Error("worker", "Error closing Kafka reader", err)
		return err
	}
	return nil
}
