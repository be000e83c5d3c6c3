package worker

import (
	"testing"

	"example.com/jsonblog/internal/blog"
	appkafka "example.com/jsonblog/internal/broker"
	"example.com/jsonblog/internal/models"
	"example.com/jsonblog/internal/store"
	"github.com/segmentio/kafka-go"
)

func eventMessage(t *testing.T, typ models.EventType, post models.Post) kafka.Message {
	t.Helper()
	msg, err := appkafka.EventMessage(models.PostEvent{Type: typ, Post: post})
	if err != nil {
		t.Fatalf("EventMessage failed: %v", err)
	}
	return msg
}

// ---------- Positive tests ----------

func TestWorker_AppliesEvent(t *testing.T) {
	mirror := store.NewMemory()
	w := New(blog.New(mirror, nil), &appkafka.MockKafka{}, 1, 1)

	post := models.Post{ID: "100", Author: "a", Title: "t", Content: "Hello mirror!"}
	if err := w.handleMessage(eventMessage(t, models.PostCreated, post)); err != nil {
		t.Fatalf("handleMessage failed: %v", err)
	}

	posts, _ := mirror.Load()
	if len(posts) != 1 || posts[0].Content != post.Content {
		t.Fatalf("mirror not updated correctly, got: %+v", posts)
	}
}

func TestWorker_EmptyKafkaMessage(t *testing.T) {
	mirror := store.NewMemory()
	w := New(blog.New(mirror, nil), &appkafka.MockKafka{}, 1, 1)

	if err := w.handleMessage(kafka.Message{Value: nil}); err != nil {
		t.Fatalf("expected no error for empty Kafka message, got: %v", err)
	}
	if mirror.SaveCount() != 0 {
		t.Fatalf("empty message must not touch the store")
	}
}

func TestShardFor_StableAndInRange(t *testing.T) {
	for _, key := range []string{"", "a", "post-1", "6f1c2a4e-0000-4000-8000-000000000000"} {
		s := shardFor([]byte(key), 4)
		if s < 0 || s >= 4 {
			t.Fatalf("shard %d out of range", s)
		}
		if shardFor([]byte(key), 4) != s {
			t.Fatalf("shard for %q is not stable", key)
		}
	}
	if shardFor([]byte("x"), 1) != 0 {
		t.Fatalf("single shard must be 0")
	}
}

func TestNew_Defaults(t *testing.T) {
	w := New(blog.New(store.NewMemory(), nil), &appkafka.MockKafka{}, 0, 0)
	if w.workerCount <= 0 || w.jobQueueSize != w.workerCount*10 {
		t.Fatalf("unexpected defaults: workers=%d queue=%d", w.workerCount, w.jobQueueSize)
	}
}

// ---------- Negative tests ----------

func TestWorker_InvalidPostJSON(t *testing.T) {
	w := New(blog.New(store.NewMemory(), nil), &appkafka.MockKafka{}, 1, 1)

	if err := w.handleMessage(kafka.Message{Value: []byte("{invalid-json}")}); err == nil {
		t.Fatalf("expected error for invalid JSON")
	}
}

func TestWorker_StoreFail(t *testing.T) {
	w := New(blog.New(&store.MockStoreFail{}, nil), &appkafka.MockKafka{}, 1, 1)

	msg := eventMessage(t, models.PostUpdated, models.Post{ID: "1", Title: "x"})
	if err := w.handleMessage(msg); err == nil {
		t.Fatalf("expected error from failing store")
	}
}

func TestWorker_UnknownEventType(t *testing.T) {
	w := New(blog.New(store.NewMemory(), nil), &appkafka.MockKafka{}, 1, 1)

	msg := eventMessage(t, "post_archived", models.Post{ID: "1"})
	if err := w.handleMessage(msg); err == nil {
		t.Fatalf("expected error for unknown event type")
	}
}

// ---------- Commit tests ----------

func runLane(w *Worker, msgs ...kafka.Message) {
	jobs := make(chan kafka.Message, len(msgs))
	for _, m := range msgs {
		jobs <- m
	}
	close(jobs)
	w.processLoop(jobs)
}

func TestProcessLoop_CommitsAppliedAndInvalid(t *testing.T) {
	bus := &appkafka.MockKafka{}
	w := New(blog.New(store.NewMemory(), nil), bus, 1, 1)

	runLane(w,
		eventMessage(t, models.PostCreated, models.Post{ID: "1"}),
		kafka.Message{Value: []byte("{invalid-json}")},
	)

	if n := bus.CommittedCount(); n != 2 {
		t.Fatalf("expected applied and invalid messages committed, got %d", n)
	}
}

func TestProcessLoop_StoreFailureLeavesUncommitted(t *testing.T) {
	bus := &appkafka.MockKafka{}
	w := New(blog.New(&store.MockStoreFail{}, nil), bus, 1, 1)

	runLane(w, eventMessage(t, models.PostCreated, models.Post{ID: "1"}))

	if n := bus.CommittedCount(); n != 0 {
		t.Fatalf("failed apply must not be committed, got %d", n)
	}
}
