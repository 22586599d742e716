package nats

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/devorch/internal/logger"
	"github.com/Strob0t/devorch/internal/port/messagequeue"
)

const testRunID = "run_20250601_120000_abcdef12"

// startServer runs an embedded JetStream-enabled NATS server for the test.
func startServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:           "127.0.0.1",
		Port:           -1,
		NoLog:          true,
		NoSigs:         true,
		MaxControlLine: 2048,
		JetStream:      true,
		StoreDir:       t.TempDir(),
	}
	server, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("create nats server: %v", err)
	}
	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready")
	}
	t.Cleanup(func() {
		server.Shutdown()
		server.WaitForShutdown()
	})
	return server
}

func testConnect(t *testing.T) *Queue {
	t.Helper()
	server := startServer(t)
	q, err := Connect(context.Background(), server.ClientURL(), nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		if err := q.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return q
}

// collect consumes every message on subject into a channel.
func collect(t *testing.T, q *Queue, subject string) <-chan jetstream.Msg {
	t.Helper()
	consumer, err := q.js.CreateOrUpdateConsumer(context.Background(), streamName, jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		t.Fatalf("create consumer: %v", err)
	}
	ch := make(chan jetstream.Msg, 8)
	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		_ = msg.Ack()
		ch <- msg
	})
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	t.Cleanup(cons.Stop)
	return ch
}

func receive(t *testing.T, ch <-chan jetstream.Msg) jetstream.Msg {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestQueue_PublishSubscribe(t *testing.T) {
	q := testConnect(t)
	subject := messagequeue.RunSubject(testRunID, messagequeue.EventStatus)
	want := messagequeue.RunStatusPayload{RunID: testRunID, From: "planning", Status: "executing"}
	data, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var (
		mu       sync.Mutex
		received *messagequeue.RunStatusPayload
		done     = make(chan struct{})
		once     sync.Once
	)
	stop, err := q.Subscribe(context.Background(), subject, func(_ context.Context, _ string, d []byte) error {
		var got messagequeue.RunStatusPayload
		if err := json.Unmarshal(d, &got); err != nil {
			return err
		}
		mu.Lock()
		received = &got
		mu.Unlock()
		once.Do(func() { close(done) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	if err := q.Publish(context.Background(), subject, data); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	mu.Lock()
	defer mu.Unlock()
	if received == nil || *received != want {
		t.Errorf("got %+v, want %+v", received, want)
	}
}

func TestQueue_RunIDPropagation(t *testing.T) {
	q := testConnect(t)
	subject := messagequeue.RunSubject(testRunID, messagequeue.EventTask)

	var (
		mu       sync.Mutex
		gotRunID string
		done     = make(chan struct{})
		once     sync.Once
	)
	stop, err := q.Subscribe(context.Background(), subject, func(ctx context.Context, _ string, _ []byte) error {
		mu.Lock()
		gotRunID = logger.RunID(ctx)
		mu.Unlock()
		once.Do(func() { close(done) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	ctx := logger.WithRunID(context.Background(), testRunID)
	if err := q.Publish(ctx, subject, []byte(`{"run_id":"x","task_id":"task_01_analyze"}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotRunID != testRunID {
		t.Errorf("run ID = %q, want %q", gotRunID, testRunID)
	}
}

func TestQueue_PublishRejectsInvalidPayload(t *testing.T) {
	q := testConnect(t)
	err := q.Publish(context.Background(), messagequeue.RunSubject(testRunID, messagequeue.EventPhase), []byte("not-json"))
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestQueue_InvalidMessageGoesToDLQ(t *testing.T) {
	q := testConnect(t)
	ctx := context.Background()
	subject := messagequeue.RunSubject(testRunID, messagequeue.EventCompleted)

	dlq := collect(t, q, subject+".dlq")

	called := make(chan struct{}, 1)
	stop, err := q.Subscribe(ctx, subject, func(context.Context, string, []byte) error {
		called <- struct{}{}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	// Bypass Publish validation to simulate a foreign producer.
	if _, err := q.js.Publish(ctx, subject, []byte("not-json")); err != nil {
		t.Fatalf("raw publish: %v", err)
	}

	msg := receive(t, dlq)
	if string(msg.Data()) != "not-json" {
		t.Errorf("DLQ data = %q", msg.Data())
	}
	select {
	case <-called:
		t.Error("handler must not see invalid payloads")
	default:
	}
}

func TestQueue_RetryExhaustionGoesToDLQ(t *testing.T) {
	q := testConnect(t)
	ctx := context.Background()
	subject := messagequeue.RunSubject(testRunID, messagequeue.EventCreated)

	dlq := collect(t, q, subject+".dlq")

	var (
		mu    sync.Mutex
		calls int
	)
	stop, err := q.Subscribe(ctx, subject, func(context.Context, string, []byte) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return errors.New("handler always fails")
	})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer stop()

	msg := &nats.Msg{Subject: subject, Data: []byte(`{"run_id":"r","goal":"g"}`), Header: nats.Header{}}
	msg.Header.Set(headerRunID, testRunID)
	if _, err := q.js.PublishMsg(ctx, msg); err != nil {
		t.Fatalf("PublishMsg: %v", err)
	}

	got := receive(t, dlq)
	if got.Headers().Get(headerRunID) != testRunID {
		t.Errorf("DLQ message lost run ID header: %v", got.Headers())
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != maxDeliver {
		t.Errorf("handler calls = %d, want %d", calls, maxDeliver)
	}
}

func TestQueue_IsConnectedAndDrain(t *testing.T) {
	q := testConnect(t)
	if !q.IsConnected() {
		t.Fatal("IsConnected() = false after Connect, want true")
	}
	if err := q.Drain(); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for q.IsConnected() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if q.IsConnected() {
		t.Error("connection should close after Drain")
	}
}
