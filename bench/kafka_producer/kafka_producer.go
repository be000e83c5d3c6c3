package main

import (
	"context"
	"flag"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	appkafka "example.com/jsonblog/internal/broker"
	"example.com/jsonblog/internal/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Floods the events topic with created+liked events for a mirror worker to
// replay. Each post gets one created event followed by likesPerPost likes.
func main() {
	var kafkaBroker, topic string
	var posts, likesPerPost, batchSize, numWorkers int

	flag.StringVar(&kafkaBroker, "broker", "localhost:29092", "Kafka broker address")
	flag.StringVar(&topic, "topic", "post-events", "post events topic")
	flag.IntVar(&posts, "posts", 1000, "number of posts to create")
	flag.IntVar(&likesPerPost, "likes", 10, "like events per post")
	flag.IntVar(&batchSize, "batch", 100, "batch size for sending messages")
	flag.IntVar(&numWorkers, "workers", 4, "number of parallel goroutines")
	flag.Parse()

	// Hash balancer keeps every event of a post on one partition
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  []string{kafkaBroker},
		Topic:    topic,
		Balancer: &kafka.Hash{},
	})
	defer w.Close()

	start := time.Now()

	var successCount uint64
	var failCount uint64

	jobs := make(chan int, posts)
	var wg sync.WaitGroup

	// --- Start worker goroutines ---
	for wID := 0; wID < numWorkers; wID++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := make([]kafka.Message, 0, batchSize)

			flush := func() {
				if len(batch) == 0 {
					return
				}
				if err := w.WriteMessages(context.Background(), batch...); err != nil {
					atomic.AddUint64(&failCount, uint64(len(batch)))
					fmt.Printf("write error: %v\n", err)
				} else {
					atomic.AddUint64(&successCount, uint64(len(batch)))
				}
				batch = batch[:0]
			}

			for i := range jobs {
				post := models.Post{
					ID:      uuid.NewString(),
					Author:  "kafka_producer",
					Title:   fmt.Sprintf("kafka bench %d", i),
					Content: "replayed by the mirror worker",
				}
				events := []models.PostEvent{{Type: models.PostCreated, Post: post, At: time.Now()}}
				for n := 1; n <= likesPerPost; n++ {
					likes := n
					liked := post
					liked.Likes = &likes
					events = append(events, models.PostEvent{Type: models.PostLiked, Post: liked, At: time.Now()})
				}

				for _, ev := range events {
					msg, err := appkafka.EventMessage(ev)
					if err != nil {
						atomic.AddUint64(&failCount, 1)
						fmt.Printf("marshal error: %v\n", err)
						continue
					}
					batch = append(batch, msg)
					if len(batch) >= batchSize {
						flush()
					}
				}
			}

			// Send any remaining messages after finishing loop
			flush()
		}()
	}

	for i := 0; i < posts; i++ {
		jobs <- i
	}
	close(jobs)

	wg.Wait()

	// --- Benchmark results ---
	elapsed := time.Since(start)
	fmt.Printf("Total messages: %d\n", posts*(likesPerPost+1))
	fmt.Printf("Successful: %d, Failed: %d\n", successCount, failCount)
	fmt.Printf("Elapsed time: %s\n", elapsed)
	fmt.Printf("Throughput: %.2f msg/s\n", float64(successCount)/elapsed.Seconds())
}
