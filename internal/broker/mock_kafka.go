package appkafka

import (
	"context"
	"errors"
	"sync"

	"github.com/segmentio/kafka-go"
)

// MockKafka records written messages and serves a queue of messages to read.
// With Loopback set, written messages are also queued for reading, which
// lets a server and a worker talk in-process.
type MockKafka struct {
	mu              sync.Mutex
	WrittenMessages []kafka.Message // stores messages written via WriteMessages
	ReadMessages    []kafka.Message // queue of messages to be read via FetchMessage
	Committed       []kafka.Message // messages acknowledged via CommitMessages
	Loopback        bool
	ShouldFail      bool // flag to simulate failures during write or read operations
	Closed          bool
}

// WriteMessages simulates writing to Kafka.
func (m *MockKafka) WriteMessages(messages ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock kafka write failed")
	}
	m.WrittenMessages = append(m.WrittenMessages, messages...)
	if m.Loopback {
		m.ReadMessages = append(m.ReadMessages, messages...)
	}
	return nil
}

// Written returns a copy of the messages written so far.
func (m *MockKafka) Written() []kafka.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]kafka.Message(nil), m.WrittenMessages...)
}

// FetchMessage pops the next queued message. An empty queue returns an
// empty message, after checking ctx, so consumers can poll it.
func (m *MockKafka) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return kafka.Message{}, errors.New("mock kafka read failed")
	}
	if len(m.ReadMessages) == 0 {
		return kafka.Message{}, nil
	}
	// Take the first message from the queue and remove it
	msg := m.ReadMessages[0]
	m.ReadMessages = m.ReadMessages[1:]
	return msg, nil
}

// CommitMessages records msgs as handled.
func (m *MockKafka) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock kafka commit failed")
	}
	m.Committed = append(m.Committed, msgs...)
	return nil
}

// CommittedCount returns the number of messages committed so far.
func (m *MockKafka) CommittedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Committed)
}

// Pending returns the number of queued messages not read yet.
func (m *MockKafka) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ReadMessages)
}

func (m *MockKafka) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// MockKafkaFail always fails.
type MockKafkaFail struct{}

func (m *MockKafkaFail) WriteMessages(messages ...kafka.Message) error {
	return errors.New("mock kafka write failed")
}

func (m *MockKafkaFail) FetchMessage(ctx context.Context) (kafka.Message, error) {
	return kafka.Message{}, errors.New("mock kafka read failed")
}

func (m *MockKafkaFail) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	return errors.New("mock kafka commit failed")
}

func (m *MockKafkaFail) Close() error { return nil }
