// Package requestlog is the usage & request logger (C7): every upstream
// attempt the proxy pipeline makes is appended to a bounded channel and
// drained in the background into ClickHouse in batches. The enqueue side
// never blocks: a full channel drops the record and counts it, rather
// than making the hot path wait for a free slot.
package requestlog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"

	"github.com/nulpointcorp/llm-gateway/internal/data"
)

const (
	batchSize     = 100
	flushInterval = time.Second
)

// DropCounter is the narrow metrics slice this package drives —
// satisfied by *metrics.Registry.
type DropCounter interface {
	IncRequestLogDropped()
}

type noopDropCounter struct{}

func (noopDropCounter) IncRequestLogDropped() {}

// inserter performs the actual batch write. Satisfied by *chSink in
// production; tests substitute a fake to exercise the channel/batching
// logic without a live ClickHouse server.
type inserter interface {
	insert(ctx context.Context, table string, batch []data.RequestLog) error
	Close() error
}

// chSink adapts a clickhouse.Conn to the inserter interface.
type chSink struct {
	conn clickhouse.Conn
}

func (s *chSink) Close() error { return s.conn.Close() }

func (s *chSink) insert(ctx context.Context, table string, batch []data.RequestLog) error {
	stmt := fmt.Sprintf(`INSERT INTO %s (
		id, virtual_key_id, deployment_id, connection_id, attempt_number,
		method, path, model, input_tokens, output_tokens, cost_usd,
		http_status, error, cached, request_ts, response_ts
	)`, table)

	b, err := s.conn.PrepareBatch(ctx, stmt)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, rec := range batch {
		var connectionID string
		if rec.ConnectionID != nil {
			connectionID = rec.ConnectionID.String()
		}
		var costUSD float64
		if rec.CostUSD != nil {
			costUSD = *rec.CostUSD
		}
		if err := b.Append(
			rec.ID.String(),
			rec.VirtualKeyID.String(),
			rec.DeploymentID.String(),
			connectionID,
			uint32(rec.AttemptNumber),
			rec.Method,
			rec.Path,
			rec.Model,
			uint32(rec.InputTokens),
			uint32(rec.OutputTokens),
			costUSD,
			uint16(rec.HTTPStatus),
			rec.Error,
			rec.Cached,
			rec.RequestTS,
			rec.ResponseTS,
		); err != nil {
			return fmt.Errorf("append row: %w", err)
		}
	}

	return b.Send()
}

// Logger owns the bounded channel and the background ClickHouse writer.
type Logger struct {
	ch        chan data.RequestLog
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	sink  inserter
	drops DropCounter

	baseCtx context.Context
	log     *slog.Logger
	table   string
}

// Option configures a Logger.
type Option func(*Logger)

// WithDropCounter wires a metrics sink for dropped-record counting.
func WithDropCounter(d DropCounter) Option {
	return func(l *Logger) { l.drops = d }
}

// WithTablePrefix overrides the default "llmur_" table prefix applied to
// the ClickHouse table name (request_logs), matching the Postgres
// table-prefix convention this build carries throughout.
func WithTablePrefix(prefix string) Option {
	return func(l *Logger) { l.table = prefix + "request_logs" }
}

// New dials ClickHouse at dsn and starts the background batch writer.
// capacity is the request_log.channel_capacity config value (default
// 1024); it bounds how many attempts may be buffered before new ones are
// dropped.
func New(ctx context.Context, dsn string, capacity int, slogger *slog.Logger, opts ...Option) (*Logger, error) {
	if ctx == nil {
		return nil, fmt.Errorf("requestlog: context must not be nil")
	}
	if capacity < 1 {
		capacity = 1024
	}

	opt, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("requestlog: parse dsn: %w", err)
	}
	conn, err := clickhouse.Open(opt)
	if err != nil {
		return nil, fmt.Errorf("requestlog: open: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("requestlog: ping: %w", err)
	}

	return newWithSink(ctx, &chSink{conn: conn}, capacity, slogger, opts...), nil
}

// newWithSink builds a Logger around an already-constructed inserter —
// the real ClickHouse sink in New, or a fake in tests.
func newWithSink(ctx context.Context, sink inserter, capacity int, slogger *slog.Logger, opts ...Option) *Logger {
	if capacity < 1 {
		capacity = 1024
	}
	l := &Logger{
		ch:      make(chan data.RequestLog, capacity),
		done:    make(chan struct{}),
		sink:    sink,
		drops:   noopDropCounter{},
		baseCtx: ctx,
		log:     slogger,
		table:   "llmur_request_logs",
	}
	for _, o := range opts {
		o(l)
	}

	l.wg.Add(1)
	go l.run()

	return l
}

// Log enqueues rec for batched insertion. Non-blocking: when the channel
// is full the record is dropped and counted rather than waiting for room,
// since the proxy hot path must never block on logging.
func (l *Logger) Log(rec data.RequestLog) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	select {
	case l.ch <- rec:
	default:
		l.drops.IncRequestLogDropped()
		l.log.Warn("request log dropped, channel full", slog.Int("capacity", cap(l.ch)))
	}
}

// Close stops the background writer after flushing whatever is queued.
func (l *Logger) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	l.wg.Wait()
	return l.sink.Close()
}

func (l *Logger) run() {
	defer l.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]data.RequestLog, 0, batchSize)

	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := l.sink.insert(ctx, l.table, batch); err != nil {
			l.log.Error("request log batch insert failed", slog.String("error", err.Error()), slog.Int("rows", len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case rec := <-l.ch:
			batch = append(batch, rec)
			if len(batch) >= batchSize {
				flush(l.baseCtx)
			}

		case <-ticker.C:
			flush(l.baseCtx)

		case <-l.done:
			for {
				select {
				case rec := <-l.ch:
					batch = append(batch, rec)
					if len(batch) >= batchSize {
						flush(l.baseCtx)
					}
				default:
					flush(l.baseCtx)
					return
				}
			}
		}
	}
}

