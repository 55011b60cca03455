package requestlog

import (
	"context"
	"log/slog"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nulpointcorp/llm-gateway/internal/data"
)

type fakeSink struct {
	mu     sync.Mutex
	rows   []data.RequestLog
	closed bool
}

func (f *fakeSink) insert(ctx context.Context, table string, batch []data.RequestLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, batch...)
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSink) rowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type countingDrops struct {
	n int64
	mu sync.Mutex
}

func (c *countingDrops) IncRequestLogDropped() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingDrops) count() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLogFlushesOnTicker(t *testing.T) {
	sink := &fakeSink{}
	l := newWithSink(context.Background(), sink, 16, silentLogger())
	defer l.Close()

	l.Log(data.RequestLog{VirtualKeyID: uuid.New(), DeploymentID: uuid.New(), AttemptNumber: 0})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sink.rowCount() == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected 1 row flushed, got %d", sink.rowCount())
}

func TestLogFlushesOnBatchSize(t *testing.T) {
	sink := &fakeSink{}
	l := newWithSink(context.Background(), sink, 1000, silentLogger())
	defer l.Close()

	for i := 0; i < batchSize; i++ {
		l.Log(data.RequestLog{VirtualKeyID: uuid.New(), DeploymentID: uuid.New(), AttemptNumber: i})
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sink.rowCount() >= batchSize {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d rows flushed, got %d", batchSize, sink.rowCount())
}

func TestLogDropsWhenChannelFull(t *testing.T) {
	drops := &countingDrops{}
	sink := &fakeSink{}
	l := newWithSink(context.Background(), sink, 1, silentLogger(), WithDropCounter(drops))
	defer l.Close()

	// Fill the single-slot channel, then overflow it before the worker can drain.
	for i := 0; i < 50; i++ {
		l.Log(data.RequestLog{VirtualKeyID: uuid.New(), DeploymentID: uuid.New(), AttemptNumber: i})
	}

	if drops.count() == 0 {
		t.Error("expected at least one dropped record with a full channel")
	}
}

func TestLogAssignsIDWhenMissing(t *testing.T) {
	sink := &fakeSink{}
	l := newWithSink(context.Background(), sink, 16, silentLogger())
	defer l.Close()

	rec := data.RequestLog{VirtualKeyID: uuid.New(), DeploymentID: uuid.New()}
	if rec.ID != uuid.Nil {
		t.Fatal("test fixture should start with a nil ID")
	}
	l.Log(rec)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sink.rowCount() == 1 {
			sink.mu.Lock()
			got := sink.rows[0].ID
			sink.mu.Unlock()
			if got == uuid.Nil {
				t.Error("expected a generated ID, got nil")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("record was never flushed")
}

func TestCloseFlushesRemainingRecords(t *testing.T) {
	sink := &fakeSink{}
	l := newWithSink(context.Background(), sink, 16, silentLogger())

	l.Log(data.RequestLog{VirtualKeyID: uuid.New(), DeploymentID: uuid.New()})
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if sink.rowCount() != 1 {
		t.Fatalf("expected 1 row flushed on close, got %d", sink.rowCount())
	}
	if !sink.closed {
		t.Error("expected sink to be closed")
	}
}
